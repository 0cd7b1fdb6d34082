package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/reqflow/internal/console/handler"
	"github.com/xela07ax/reqflow/internal/infra/auth"
	"go.uber.org/zap"
)

// ScopeRequestsRead открывает чтение заявок и журнала.
const ScopeRequestsRead = "requests.read"

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Проверка токенов (RS256); AuthService реализует ее через встроенный BaseValidator
	authValidator auth.TokenValidator

	authHandler    *handler.AuthHandler    // /auth/token
	requestHandler *handler.RequestHandler // /v1/requests
	journalHandler *handler.JournalHandler // /v1/journal
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	requestH *handler.RequestHandler,
	journalH *handler.JournalHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:         chi.NewRouter(),
		logger:         logger.Named("console-api"),
		authValidator:  validator,
		authHandler:    authH,
		requestHandler: requestH,
		journalHandler: journalH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	// Публичные роуты
	r.Group(func(r chi.Router) {
		r.Post("/auth/token", s.authHandler.Login)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// Защищенный периметр
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))
		r.Use(auth.RequireScope(ScopeRequestsRead))

		r.Route("/v1/requests", func(r chi.Router) {
			r.Get("/", s.requestHandler.List)
			r.Get("/{code}", s.requestHandler.Get)
		})
		r.Get("/v1/journal", s.journalHandler.Recent)
	})
}

// accessLog пишет каждый запрос в zap вместо стандартного log из middleware.Logger.
func (s *ConsoleServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
