package requests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xela07ax/reqflow/internal/audit"
	"github.com/xela07ax/reqflow/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type sent struct {
	peers []int64
	msg   Message
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (s *fakeSender) Send(_ context.Context, peers []int64, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{peers: append([]int64(nil), peers...), msg: msg})
	return s.err
}

func (s *fakeSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

type fakeUsers struct {
	users map[int64]*domain.Identity
	err   error
}

func (u *fakeUsers) GetIdentity(_ context.Context, id int64) (*domain.Identity, error) {
	if u.err != nil {
		return nil, u.err
	}
	if ident, ok := u.users[id]; ok {
		return ident, nil
	}
	return nil, errors.New("not found")
}

type fakeAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *fakeAuditor) Log(e audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *fakeAuditor) all() []audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Event(nil), a.events...)
}

type memPersister struct {
	mu        sync.Mutex
	items     map[string]domain.Request
	putErr    error
	deleteErr error
	puts      int
	deletes   int
}

func newMemPersister(reqs ...domain.Request) *memPersister {
	p := &memPersister{items: make(map[string]domain.Request)}
	for _, r := range reqs {
		p.items[r.Code] = r
	}
	return p
}

func (p *memPersister) Load(context.Context) ([]domain.Request, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Request, 0, len(p.items))
	for _, r := range p.items {
		out = append(out, r)
	}
	return out, nil
}

func (p *memPersister) Put(_ context.Context, r domain.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.puts++
	if p.putErr != nil {
		return p.putErr
	}
	p.items[r.Code] = r
	return nil
}

func (p *memPersister) Delete(_ context.Context, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes++
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.items, code)
	return nil
}

func (p *memPersister) has(code string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.items[code]
	return ok
}

// recorder: workflow, который запоминает вызовы.
type recorder struct {
	mu      sync.Mutex
	accepts []*Resolution
	denies  []*Resolution
	err     error
	reply   string
}

func (r *recorder) Accept(ctx context.Context, res *Resolution) error {
	r.mu.Lock()
	r.accepts = append(r.accepts, res)
	r.mu.Unlock()
	if r.reply != "" {
		_ = res.Notify.SendResult(ctx, Message{Text: r.reply})
	}
	return r.err
}

func (r *recorder) Deny(ctx context.Context, res *Resolution) error {
	r.mu.Lock()
	r.denies = append(r.denies, res)
	r.mu.Unlock()
	return r.err
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accepts), len(r.denies)
}

type fixture struct {
	store    *Store
	tags     *Registry
	engine   *Engine
	sender   *fakeSender
	users    *fakeUsers
	auditor  *fakeAuditor
	persist  *memPersister
	metrics  *Metrics
	logs     *observer.ObservedLogs
	workflow *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	f := &fixture{
		sender:   &fakeSender{},
		users:    &fakeUsers{users: map[int64]*domain.Identity{200: {ID: 200, FirstName: "Ира"}}},
		auditor:  &fakeAuditor{},
		persist:  newMemPersister(),
		metrics:  NewMetrics(nil),
		logs:     logs,
		workflow: &recorder{},
	}
	f.store = NewStore(f.persist, f.metrics, logger)
	f.tags = NewRegistry(logger)
	f.engine = NewEngine(f.store, f.tags, f.users, f.sender, f.auditor, f.metrics, logger)
	if err := f.tags.Register("friend", f.workflow); err != nil {
		t.Fatalf("register: %v", err)
	}
	return f
}

// fixedCodes подменяет генератор на заданную последовательность, затем на случайный.
func fixedCodes(codes ...string) func() string {
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return randomCode()
		}
		c := codes[0]
		codes = codes[1:]
		return c
	}
}
