package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/reqflow/internal/audit"
)

const (
	DefaultJournalLimit = 50
	MaxJournalLimit     = 500
)

type JournalService struct {
	repo JournalReader
}

func NewJournalService(repo JournalReader) *JournalService {
	return &JournalService{repo: repo}
}

// Recent отдает последние решения. limit <= 0 означает значение по умолчанию.
func (s *JournalService) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	switch {
	case limit <= 0:
		limit = DefaultJournalLimit
	case limit > MaxJournalLimit:
		limit = MaxJournalLimit
	}

	events, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("journal_service: failed to fetch: %w", err)
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}
