package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/reqflow/internal/audit"
	"github.com/xela07ax/reqflow/internal/infra"
	"github.com/xela07ax/reqflow/internal/repository/postgres"
	"github.com/xela07ax/reqflow/internal/repository/redis"
	"github.com/xela07ax/reqflow/internal/requests"
	"github.com/xela07ax/reqflow/internal/transport"
	"github.com/xela07ax/reqflow/internal/transport/telegram"
	"github.com/xela07ax/reqflow/internal/users"
	"github.com/xela07ax/reqflow/internal/workflows/friend"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Контекст жизни процесса: SIGINT/SIGTERM останавливают long polling
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(appCtx, cfg, logger); err != nil {
		logger.Fatal("reqbot stopped with error", zap.Error(err))
	}
	logger.Info("reqbot exited properly")
}

func run(ctx context.Context, cfg *infra.Config, logger *zap.Logger) error {
	// 1. Инфраструктура
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return errors.Join(errors.New("database unreachable"), err)
	}

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	// 3. Журнал решений: данные полетят в базу пачками
	journal := audit.NewJournal(postgres.NewJournalRepo(db), logger,
		cfg.Journal.BufferSize, cfg.Journal.BatchSize, cfg.Journal.FlushInterval)
	journal.Start()
	defer journal.Stop()

	// 4. Хранилище ожидающих заявок, поднимаем снимок из Redis
	metrics := requests.NewMetrics(reg)
	store := requests.NewStore(redis.NewRequestRepo(rdb, logger), metrics, logger)
	if err := store.Init(ctx); err != nil {
		return err
	}

	// 5. Транспорт: Telegram за лимитером, ретраями и Circuit Breaker
	tg, err := telegram.New(cfg.Telegram, logger)
	if err != nil {
		return err
	}
	sender := transport.NewReliable(tg, cfg.Transport, reg, logger)

	// 6. Ядро
	identities := postgres.NewIdentityRepo(db)
	registry := requests.NewRegistry(logger)
	if _, err := friend.Register(registry, postgres.NewFriendRepo(db), logger); err != nil {
		return err
	}
	engine := requests.NewEngine(store, registry, identities, sender, journal, metrics, logger)

	// Порядок важен: профиль -> ответы на заявки -> команды
	pipeline := requests.Pipeline{
		users.NewRecorder(identities, logger),
		requests.NewDispatcher(engine, logger),
		friend.NewCommand(engine, sender, logger),
	}

	logger.Info("reqbot started",
		zap.Int("pending", store.Len()),
		zap.Strings("tags", registry.Tags()),
		zap.String("metrics", cfg.Metrics.Addr))

	serveErr := tg.Serve(ctx, pipeline)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown failed", zap.Error(err))
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	return nil
}
