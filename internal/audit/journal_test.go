package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/reqflow/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type memStorage struct {
	mu      sync.Mutex
	batches [][]Event
	err     error
	block   chan struct{}
}

func (s *memStorage) WriteBatch(_ context.Context, events []Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, events)
	return s.err
}

func (s *memStorage) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func (s *memStorage) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func TestJournal_DrainOnStop(t *testing.T) {
	repo := &memStorage{}
	j := NewJournal(repo, zaptest.NewLogger(t), 100, 10, time.Hour)
	j.Start()

	for i := 0; i < 25; i++ {
		j.Log(Event{Code: "aZ", Tag: "friend", Outcome: domain.OutcomeAccepted})
	}
	j.Stop()

	events := repo.events()
	require.Len(t, events, 25)
	assert.Equal(t, 3, repo.batchCount(), "two full batches and the remainder")
	for _, e := range events {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.ResolvedAt.IsZero())
	}
}

func TestJournal_FlushByTimer(t *testing.T) {
	repo := &memStorage{}
	j := NewJournal(repo, zaptest.NewLogger(t), 100, 100, 10*time.Millisecond)
	j.Start()
	defer j.Stop()

	j.Log(Event{ID: "fixed", Code: "b1"})

	require.Eventually(t, func() bool { return len(repo.events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "fixed", repo.events()[0].ID)
}

func TestJournal_StopIsIdempotentAndDropsLateEvents(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	repo := &memStorage{}
	j := NewJournal(repo, zap.New(core), 10, 10, time.Hour)
	j.Start()

	j.Stop()
	j.Stop()
	j.Log(Event{Code: "late"})

	assert.Empty(t, repo.events())
	assert.Equal(t, 1, logs.FilterMessage("journal event dropped: journal is stopped").Len())
}

func TestJournal_OverflowSheds(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	repo := &memStorage{block: make(chan struct{})}
	j := NewJournal(repo, zap.New(core), 1, 1, time.Hour)
	j.Start()

	// Первое событие застревает в WriteBatch, второе занимает буфер, дальше: сброс
	j.Log(Event{Code: "a1"})
	require.Eventually(t, func() bool { return len(j.ch) == 0 }, time.Second, time.Millisecond)
	j.Log(Event{Code: "a2"})
	j.Log(Event{Code: "a3"})

	assert.Equal(t, 1, logs.FilterMessage("journal_buffer_overflow").Len())
	close(repo.block)
	j.Stop()
	assert.Len(t, repo.events(), 2)
}

func TestJournal_WriteErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	repo := &memStorage{err: errors.New("db down")}
	j := NewJournal(repo, zap.New(core), 10, 10, time.Hour)
	j.Start()

	j.Log(Event{Code: "aZ"})
	j.Stop()

	assert.Equal(t, 1, logs.FilterMessage("journal flush failed").Len())
}
