// Package transport оборачивает отправку уведомлений в rate limit, circuit breaker и повторы.
// Движок заявок сам ничего не повторяет: вся надежность доставки живет здесь.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/reqflow/internal/infra"
	"github.com/xela07ax/reqflow/internal/requests"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const attemptTimeout = 10 * time.Second

// Reliable реализует requests.Sender поверх другого Sender.
// Каждый получатель отправляется отдельно: сбой одного не повторяет доставку остальным.
type Reliable struct {
	next     requests.Sender
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
	delay    time.Duration
	metrics  *Metrics
	logger   *zap.Logger
}

func NewReliable(next requests.Sender, cfg infra.TransportConfig, reg prometheus.Registerer, logger *zap.Logger) *Reliable {
	w := &Reliable{
		next:     next,
		attempts: cfg.Attempts,
		delay:    cfg.RetryDelay,
		metrics:  NewMetrics(reg),
		logger:   logger.Named("reliable-sender"),
	}
	if w.attempts == 0 {
		w.attempts = 3
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	w.limiter = rate.NewLimiter(limit, max(cfg.RateBurst, 1))

	w.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telegram-api",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Через сколько CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Более 5 ошибок подряд: открываемся
			return counts.ConsecutiveFailures > 5
		},
		// Заблокировавший бота пользователь: не авария API
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			w.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			w.logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	w.metrics.CircuitBreakerState.WithLabelValues("telegram-api").Set(0)

	return w
}

func (w *Reliable) Send(ctx context.Context, peers []int64, msg requests.Message) error {
	var errs []error
	for _, peer := range peers {
		if err := w.sendOne(ctx, peer, msg); err != nil {
			errs = append(errs, fmt.Errorf("peer %d: %w", peer, err))
		}
	}
	return errors.Join(errs...)
}

func (w *Reliable) sendOne(ctx context.Context, peer int64, msg requests.Message) error {
	if err := w.limiter.Wait(ctx); err != nil {
		w.metrics.Deliveries.WithLabelValues("failed").Inc()
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.attempts),
			retry.Delay(w.delay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool { return !IsPermanent(err) }),
			retry.OnRetry(func(n uint, err error) {
				w.metrics.Retries.Inc()
				w.logger.Debug("retrying notification", zap.Int64("peer_id", peer), zap.Uint("attempt", n+1), zap.Error(err))
			}),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Мессенджер сам сказал, сколько ждать
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		return nil, r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
			defer cancel()
			return w.next.Send(tCtx, []int64{peer}, msg)
		})
	})

	switch {
	case err == nil:
		w.metrics.Deliveries.WithLabelValues("ok").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		w.metrics.Deliveries.WithLabelValues("rejected").Inc()
	default:
		w.metrics.Deliveries.WithLabelValues("failed").Inc()
	}
	return err
}

// State: текущее состояние breaker, для health-проверок.
func (w *Reliable) State() gobreaker.State {
	return w.cb.State()
}
