package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xela07ax/reqflow/internal/audit"
	"github.com/xela07ax/reqflow/internal/domain"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("request not found")

// historyLimit: сколько прошлых решений по коду показываем рядом с заявкой.
const historyLimit = 20

// PendingReader: снимок ожидающих заявок (Redis, который пишет бот).
type PendingReader interface {
	Load(ctx context.Context) ([]domain.Request, error)
	Get(ctx context.Context, code string) (*domain.Request, error)
}

// JournalReader: журнал уже разрешенных заявок.
type JournalReader interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
	ListByCode(ctx context.Context, code string, limit int) ([]audit.Event, error)
}

// RequestDetails: заявка и то, чем заканчивались прежние заявки с тем же кодом.
type RequestDetails struct {
	Request *domain.Request `json:"request,omitempty"`
	History []audit.Event   `json:"history"`
}

// RequestService только читает: решения по заявкам принимаются в чате, не в консоли.
type RequestService struct {
	pending PendingReader
	journal JournalReader
	logger  *zap.Logger
}

func NewRequestService(pending PendingReader, journal JournalReader, logger *zap.Logger) *RequestService {
	return &RequestService{
		pending: pending,
		journal: journal,
		logger:  logger.Named("request-service"),
	}
}

// ListPending возвращает ожидающие заявки, старые первыми.
func (s *RequestService) ListPending(ctx context.Context) ([]domain.Request, error) {
	list, err := s.pending.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("request_service: load pending: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedTime != list[j].CreatedTime {
			return list[i].CreatedTime < list[j].CreatedTime
		}
		return list[i].Code < list[j].Code
	})
	return list, nil
}

// GetRequest ищет код среди ожидающих и в журнале.
// Код, которого нет ни там ни там, дает ErrNotFound.
func (s *RequestService) GetRequest(ctx context.Context, code string) (*RequestDetails, error) {
	req, err := s.pending.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("request_service: get %s: %w", code, err)
	}

	history, err := s.journal.ListByCode(ctx, code, historyLimit)
	if err != nil {
		// Без журнала заявка все равно полезна
		s.logger.Warn("journal unavailable", zap.String("code", code), zap.Error(err))
		history = nil
	}

	if req == nil && len(history) == 0 {
		return nil, ErrNotFound
	}
	if history == nil {
		history = []audit.Event{}
	}
	return &RequestDetails{Request: req, History: history}, nil
}
