// Package users запоминает профили тех, кто пишет боту, чтобы движок мог подставить Source.
package users

import (
	"context"
	"sync"

	"github.com/xela07ax/reqflow/internal/domain"
	"github.com/xela07ax/reqflow/internal/requests"
	"go.uber.org/zap"
)

type Saver interface {
	Upsert(ctx context.Context, ident domain.Identity) error
}

// Recorder: первое звено конвейера. Пишет профиль только когда он изменился,
// чтобы не ходить в базу на каждое сообщение.
type Recorder struct {
	repo   Saver
	logger *zap.Logger

	mu   sync.Mutex
	seen map[int64]domain.Identity
}

func NewRecorder(repo Saver, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger.Named("user-recorder"),
		seen:   make(map[int64]domain.Identity),
	}
}

func (r *Recorder) Handle(ctx context.Context, evt *requests.Event, next requests.NextFunc) error {
	if evt.From != nil && evt.From.ID != 0 && r.changed(*evt.From) {
		if err := r.repo.Upsert(ctx, *evt.From); err != nil {
			// Профиль второстепенен: событие обрабатываем дальше
			r.logger.Warn("identity not saved", zap.Int64("user_id", evt.From.ID), zap.Error(err))
			r.forget(evt.From.ID)
		}
	}
	if next == nil {
		return nil
	}
	return next(ctx)
}

func (r *Recorder) changed(ident domain.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.seen[ident.ID]; ok && prev == ident {
		return false
	}
	r.seen[ident.ID] = ident
	return true
}

func (r *Recorder) forget(id int64) {
	r.mu.Lock()
	delete(r.seen, id)
	r.mu.Unlock()
}
