package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/xela07ax/reqflow/internal/audit"
	"go.uber.org/zap"
)

type JournalService interface {
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

type JournalHandler struct {
	service JournalService
	logger  *zap.Logger
}

func NewJournalHandler(s JournalService, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{service: s, logger: logger}
}

// Recent: GET /v1/journal?limit=...
func (h *JournalHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("journal fetch failed", zap.Error(err))
		http.Error(w, "failed to fetch journal", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
