package audit

/*
Файл journal.go: журнал разрешенных заявок (кто, что, каким исходом).

- Non-blocking: Log никогда не ждет БД, события уходят в буферизованный канал.
  Задержки записи не влияют на обработку входящих сообщений бота.
- Batching: воркер копит события и пишет пачкой по таймеру или по достижении batchSize.
- Drain: Stop закрывает вход, воркер вычитывает остаток и делает финальный flush.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняется журнал.
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

type Auditor interface {
	Log(event Event)
}

type Journal struct {
	ch            chan Event
	repo          StorageInterface
	logger        *zap.Logger
	batchSize     int
	flushInterval time.Duration
	wg            sync.WaitGroup

	// closeMu защищает ch от отправки после close: Log держит RLock, Stop берет Lock.
	closeMu sync.RWMutex
	closed  bool
}

func NewJournal(repo StorageInterface, logger *zap.Logger, bufferSize, batchSize int, flushInterval time.Duration) *Journal {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Journal{
		ch:            make(chan Event, bufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "journal")),
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop запирает вход и ждет, пока воркер все допишет.
func (j *Journal) Stop() {
	j.closeMu.Lock()
	if j.closed {
		j.closeMu.Unlock()
		return
	}
	j.closed = true
	j.logger.Info("stopping journal: closing channel and flushing buffer...")
	close(j.ch)
	j.closeMu.Unlock()

	j.wg.Wait()
	j.logger.Info("journal stopped gracefully")
}

func (j *Journal) Log(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.ResolvedAt.IsZero() {
		event.ResolvedAt = time.Now()
	}

	j.closeMu.RLock()
	defer j.closeMu.RUnlock()
	if j.closed {
		j.logger.Warn("journal event dropped: journal is stopped", zap.String("code", event.Code))
		return
	}

	// Load shedding: при переполнении не блокируем обработку событий бота
	select {
	case j.ch <- event:
	default:
		j.logger.Error("journal_buffer_overflow",
			zap.String("code", event.Code),
			zap.String("tag", event.Tag),
			zap.String("outcome", string(event.Outcome)),
		)
	}
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]Event, 0, j.batchSize)
	ticker := time.NewTicker(j.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: к моменту финального flush контекст приложения уже отменен
		if err := j.repo.WriteBatch(context.Background(), batch); err != nil {
			j.logger.Error("journal flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = make([]Event, 0, j.batchSize)
	}

	for {
		select {
		case event, ok := <-j.ch:
			if !ok {
				flush()
				j.logger.Info("journal worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= j.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
