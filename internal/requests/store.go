package requests

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xela07ax/reqflow/internal/domain"
	"go.uber.org/zap"
)

// Persister: плагин персистентности, за которым хранилище переживает рестарт процесса.
// Реализация: repository/redis.RequestRepo.
type Persister interface {
	// Load возвращает сохраненный снимок; пустой срез, если ничего нет.
	Load(ctx context.Context) ([]domain.Request, error)
	Put(ctx context.Context, req domain.Request) error
	Delete(ctx context.Context, code string) error
}

// Store: единственный источник правды об ожидающих заявках.
// Все мутации идут под одним мьютексом (single-writer), поэтому снятие заявки
// перед разрешением видно любому последующему поиску.
type Store struct {
	mu      sync.Mutex
	items   map[string]domain.Request // code -> Request
	persist Persister
	alloc   *Allocator
	metrics *Metrics
	logger  *zap.Logger
}

func NewStore(persist Persister, metrics *Metrics, logger *zap.Logger) *Store {
	if persist == nil {
		persist = nopPersister{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Store{
		items:   make(map[string]domain.Request),
		persist: persist,
		alloc:   NewAllocator(),
		metrics: metrics,
		logger:  logger.With(zap.String("mod", "request-store")),
	}
}

// Init загружает снимок заявок при старте.
func (s *Store) Init(ctx context.Context) error {
	loaded, err := s.persist.Load(ctx)
	if err != nil {
		return fmt.Errorf("load pending requests: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range loaded {
		if _, dup := s.items[req.Code]; dup {
			s.logger.Warn("duplicate code in snapshot, keeping first", zap.String("code", req.Code))
			continue
		}
		s.items[req.Code] = req
	}
	s.metrics.Pending.Set(float64(len(s.items)))
	s.logger.Info("pending requests restored", zap.Int("count", len(s.items)))
	return nil
}

// create выделяет код и вставляет заявку за один захват блокировки.
// Если персистентность не приняла запись, вставка откатывается.
func (s *Store) create(ctx context.Context, build func(code string) domain.Request) (domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, attempts := s.alloc.Allocate(func(c string) bool {
		_, ok := s.items[c]
		return ok
	})
	s.metrics.AllocationAttempts.Observe(float64(attempts))

	req := build(code)
	req.Code = code
	s.items[code] = req

	if err := s.persist.Put(ctx, req); err != nil {
		delete(s.items, code)
		return domain.Request{}, fmt.Errorf("persist request %s: %w", code, err)
	}
	s.metrics.Pending.Set(float64(len(s.items)))
	return req.Clone(), nil
}

// Take атомарно снимает заявку с кодом code, если match ее признает.
// Возвращает false, если заявки уже нет (или код успели переиспользовать под другую).
func (s *Store) Take(ctx context.Context, code string, match func(*domain.Request) bool) (domain.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.items[code]
	if !ok || (match != nil && !match(&req)) {
		return domain.Request{}, false
	}
	delete(s.items, code)
	s.metrics.Pending.Set(float64(len(s.items)))

	// Память авторитетна: заявка уже снята, даже если плагин не записал удаление.
	if err := s.persist.Delete(ctx, code); err != nil {
		s.logger.Error("failed to persist request removal", zap.String("code", code), zap.Error(err))
	}
	return req, true
}

// Remove снимает заявку без проверок.
func (s *Store) Remove(ctx context.Context, code string) bool {
	_, ok := s.Take(ctx, code, nil)
	return ok
}

func (s *Store) FindByCode(code string) (domain.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.items[code]
	if !ok {
		return domain.Request{}, false
	}
	return req.Clone(), true
}

// FindBy возвращает самую раннюю заявку, удовлетворяющую pred.
// Порядок (CreatedTime, Code) делает выбор детерминированным при нескольких совпадениях.
func (s *Store) FindBy(pred func(*domain.Request) bool) (domain.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found domain.Request
		ok    bool
	)
	for _, req := range s.items {
		if !pred(&req) {
			continue
		}
		if !ok || before(&req, &found) {
			found, ok = req, true
		}
	}
	if !ok {
		return domain.Request{}, false
	}
	return found.Clone(), true
}

// Snapshot: копия всех ожидающих заявок, отсортированная по времени создания.
func (s *Store) Snapshot() []domain.Request {
	s.mu.Lock()
	out := make([]domain.Request, 0, len(s.items))
	for _, req := range s.items {
		out = append(out, req.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return before(&out[i], &out[j]) })
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func before(a, b *domain.Request) bool {
	if a.CreatedTime != b.CreatedTime {
		return a.CreatedTime < b.CreatedTime
	}
	return a.Code < b.Code
}

type nopPersister struct{}

func (nopPersister) Load(context.Context) ([]domain.Request, error) { return nil, nil }
func (nopPersister) Put(context.Context, domain.Request) error      { return nil }
func (nopPersister) Delete(context.Context, string) error           { return nil }
