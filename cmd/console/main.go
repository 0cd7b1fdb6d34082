package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/reqflow/internal/console/handler"
	"github.com/xela07ax/reqflow/internal/console/server"
	"github.com/xela07ax/reqflow/internal/console/service"
	"github.com/xela07ax/reqflow/internal/infra"
	"github.com/xela07ax/reqflow/internal/infra/auth"
	"github.com/xela07ax/reqflow/internal/repository/postgres"
	"github.com/xela07ax/reqflow/internal/repository/redis"
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

	// 1. Инициализация ресурсов
	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		logger.Fatal("database config", zap.Error(err))
	}
	defer db.Close()

	// Проверяем соединение с таймаутом
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	cancel()

	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("console needs auth private key", zap.Error(err))
	}

	// 2. Слои (Dependency Injection)
	journalRepo := postgres.NewJournalRepo(db)
	authService := service.NewAuthService(postgres.NewUserRepo(db), privateKey, cfg.Auth.TokenTTL, logger)
	requestService := service.NewRequestService(redis.NewRequestRepo(rdb, logger), journalRepo, logger)
	journalService := service.NewJournalService(journalRepo)

	srvHandler := server.NewConsoleServer(
		logger,
		authService,
		handler.NewAuthHandler(authService),
		handler.NewRequestHandler(requestService, logger),
		handler.NewJournalHandler(journalService, logger),
	)

	// 3. Запуск сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srvHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("console API stopping")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("console API exited properly")
}
