package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/reqflow/internal/console/service"
	"github.com/xela07ax/reqflow/internal/domain"
	"go.uber.org/zap"
)

// RequestService Описываем, что нам нужно от сервиса
type RequestService interface {
	ListPending(ctx context.Context) ([]domain.Request, error)
	GetRequest(ctx context.Context, code string) (*service.RequestDetails, error)
}

type RequestHandler struct {
	service RequestService
	logger  *zap.Logger
}

func NewRequestHandler(s RequestService, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{service: s, logger: logger}
}

// List: GET /v1/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPending(r.Context())
	if err != nil {
		h.logger.Error("list pending failed", zap.Error(err))
		http.Error(w, "failed to list requests", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []domain.Request{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Get: GET /v1/requests/{code}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	details, err := h.service.GetRequest(r.Context(), code)
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("get request failed", zap.String("code", code), zap.Error(err))
		http.Error(w, "failed to get request", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
