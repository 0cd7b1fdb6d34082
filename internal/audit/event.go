package audit

import (
	"time"

	"github.com/xela07ax/reqflow/internal/domain"
)

// Event: запись журнала о том, чем закончилась заявка.
type Event struct {
	ID          string         `json:"id"`      // UUID записи
	Code        string         `json:"code"`    // Код на момент разрешения (потом переиспользуется)
	Tag         string         `json:"tag"`     // Какой workflow
	Outcome     domain.Outcome `json:"outcome"` // ACCEPTED / DENIED / WITHDRAWN
	RequesterID int64          `json:"requester_id"`
	SourceID    int64          `json:"source_id,omitempty"`
	ResolverID  int64          `json:"resolver_id"` // Кто нажал / ответил
	PeerID      int64          `json:"peer_id"`     // В какой беседе
	CreatedTime int64          `json:"created_time"`
	ResolvedAt  time.Time      `json:"resolved_at"`
	Error       string         `json:"error,omitempty"` // Ошибка действия workflow, если была
}
