package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/reqflow/internal/audit"
	"github.com/xela07ax/reqflow/internal/console/handler"
	"github.com/xela07ax/reqflow/internal/console/service"
	"github.com/xela07ax/reqflow/internal/domain"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type stubPending []domain.Request

func (s stubPending) Load(context.Context) ([]domain.Request, error) {
	return append([]domain.Request(nil), s...), nil
}

func (s stubPending) Get(_ context.Context, code string) (*domain.Request, error) {
	for i := range s {
		if s[i].Code == code {
			r := s[i]
			return &r, nil
		}
	}
	return nil, nil
}

type stubJournal []audit.Event

func (s stubJournal) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	if limit < len(s) {
		return s[:limit], nil
	}
	return s, nil
}

func (s stubJournal) ListByCode(_ context.Context, code string, _ int) ([]audit.Event, error) {
	var out []audit.Event
	for _, e := range s {
		if e.Code == code {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubUsers map[string]*domain.User

func (s stubUsers) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	return s[username], nil
}

func newTestServer(t *testing.T) *ConsoleServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	users := stubUsers{
		"reader": {ID: "1", Username: "reader", PasswordHash: string(hash), Scopes: map[string]bool{ScopeRequestsRead: true}},
		"nobody": {ID: "2", Username: "nobody", PasswordHash: string(hash), Scopes: map[string]bool{}},
	}
	pending := stubPending{
		{Code: "bb", Tag: "friend", RequesterID: 200, CreatedTime: 20, Peers: []int64{100}},
		{Code: "aZ", Tag: "friend", RequesterID: 300, CreatedTime: 10, Peers: []int64{100}},
	}
	journal := stubJournal{
		{ID: "e1", Code: "aZ", Outcome: domain.OutcomeDenied, ResolvedAt: time.Unix(100, 0).UTC()},
		{ID: "e2", Code: "xx", Outcome: domain.OutcomeAccepted, ResolvedAt: time.Unix(90, 0).UTC()},
	}

	authSvc := service.NewAuthService(users, key, time.Hour, logger)
	return NewConsoleServer(
		logger,
		authSvc,
		handler.NewAuthHandler(authSvc),
		handler.NewRequestHandler(service.NewRequestService(pending, journal, logger), logger),
		handler.NewJournalHandler(service.NewJournalService(journal), logger),
	)
}

func login(t *testing.T, s http.Handler, user, pass string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Username: user, Password: pass})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		return rec, ""
	}
	var tok domain.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tok))
	return rec, tok.AccessToken
}

func get(s http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestConsole_Health(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, get(s, "/health", "").Code)
}

func TestConsole_Login(t *testing.T) {
	s := newTestServer(t)

	rec, tok := login(t, s, "reader", "pw")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, tok)

	rec, _ = login(t, s, "reader", "nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsole_ProtectedRoutes(t *testing.T) {
	s := newTestServer(t)
	_, reader := login(t, s, "reader", "pw")
	_, nobody := login(t, s, "nobody", "pw")

	assert.Equal(t, http.StatusUnauthorized, get(s, "/v1/requests", "").Code)
	assert.Equal(t, http.StatusForbidden, get(s, "/v1/requests", nobody).Code)

	t.Run("list pending oldest first", func(t *testing.T) {
		rec := get(s, "/v1/requests", reader)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []domain.Request
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
		require.Len(t, list, 2)
		assert.Equal(t, "aZ", list[0].Code)
	})

	t.Run("details", func(t *testing.T) {
		rec := get(s, "/v1/requests/aZ", reader)
		require.Equal(t, http.StatusOK, rec.Code)
		var d service.RequestDetails
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&d))
		require.NotNil(t, d.Request)
		assert.EqualValues(t, 300, d.Request.RequesterID)
		require.Len(t, d.History, 1)
		assert.Equal(t, domain.OutcomeDenied, d.History[0].Outcome)
	})

	t.Run("unknown code", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(s, "/v1/requests/zz", reader).Code)
	})

	t.Run("journal", func(t *testing.T) {
		rec := get(s, "/v1/journal?limit=1", reader)
		require.Equal(t, http.StatusOK, rec.Code)
		var events []audit.Event
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
		require.Len(t, events, 1)
		assert.Equal(t, "e1", events[0].ID)

		assert.Equal(t, http.StatusBadRequest, get(s, "/v1/journal?limit=abc", reader).Code)
	})
}
