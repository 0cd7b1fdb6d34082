package requests

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Workflow: пара действий, которую модуль регистрирует под своим тегом.
type Workflow interface {
	Accept(ctx context.Context, res *Resolution) error
	Deny(ctx context.Context, res *Resolution) error
}

type ActionFunc func(ctx context.Context, res *Resolution) error

// Actions собирает Workflow из двух функций.
type Actions struct {
	OnAccept ActionFunc
	OnDeny   ActionFunc
}

func (a Actions) Accept(ctx context.Context, res *Resolution) error { return a.OnAccept(ctx, res) }
func (a Actions) Deny(ctx context.Context, res *Resolution) error   { return a.OnDeny(ctx, res) }

// Registry: тег -> Workflow. Наполняется явными вызовами Register при сборке приложения.
type Registry struct {
	mu     sync.RWMutex
	tags   map[string]Workflow
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tags:   make(map[string]Workflow),
		logger: logger.Named("tag-registry"),
	}
}

// Register привязывает workflow к тегу. Повторная регистрация не фатальна:
// пишем предупреждение и перетираем, побеждает последняя.
func (r *Registry) Register(tag string, wf Workflow) error {
	if tag == "" {
		return ErrEmptyTag
	}
	if err := validateWorkflow(wf); err != nil {
		return fmt.Errorf("register %q: %w", tag, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tags[tag]; exists {
		r.logger.Warn("tag already registered, overwriting", zap.String("tag", tag))
	}
	r.tags[tag] = wf
	return nil
}

func (r *Registry) Unregister(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tags, tag)
}

func (r *Registry) Lookup(tag string) (Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.tags[tag]
	return wf, ok
}

// Tags: отсортированный список зарегистрированных тегов.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.tags))
	for tag := range r.tags {
		out = append(out, tag)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func validateWorkflow(wf Workflow) error {
	switch v := wf.(type) {
	case nil:
		return ErrInvalidWorkflow
	case Actions:
		if v.OnAccept == nil || v.OnDeny == nil {
			return ErrInvalidWorkflow
		}
	case *Actions:
		if v == nil || v.OnAccept == nil || v.OnDeny == nil {
			return ErrInvalidWorkflow
		}
	}
	return nil
}
