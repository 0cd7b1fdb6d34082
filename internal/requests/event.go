package requests

import (
	"context"
	"strings"

	"github.com/xela07ax/reqflow/internal/domain"
)

// Event: входящее событие хоста, уже нормализованное транспортом.
type Event struct {
	UserID int64 // Кто написал / нажал
	PeerID int64 // Беседа, в которой это произошло
	Text   string

	Payload *domain.ButtonPayload // Не nil, если пришла кнопка с {"req": ...}
	Reply   *Reply                // Сообщение, на которое ответили

	From *domain.Identity // Профиль отправителя, если транспорт его знает

	// Answered выставляется, когда по событию уже отправлен ответ.
	Answered bool
}

// Reply: сообщение, на которое пользователь ответил.
type Reply struct {
	MessageID int64
	FromBot   bool // Автор: сам бот
	Text      string
}

type NextFunc func(ctx context.Context) error

// Handler: звено конвейера обработки входящих событий.
type Handler interface {
	Handle(ctx context.Context, evt *Event, next NextFunc) error
}

type HandlerFunc func(ctx context.Context, evt *Event, next NextFunc) error

func (f HandlerFunc) Handle(ctx context.Context, evt *Event, next NextFunc) error {
	return f(ctx, evt, next)
}

// Pipeline прогоняет событие по звеньям по порядку; каждое решает, звать ли next.
type Pipeline []Handler

func (p Pipeline) Handle(ctx context.Context, evt *Event, next NextFunc) error {
	return p.run(ctx, evt, 0, next)
}

func (p Pipeline) run(ctx context.Context, evt *Event, i int, next NextFunc) error {
	if i == len(p) {
		if next == nil {
			return nil
		}
		return next(ctx)
	}
	return p[i].Handle(ctx, evt, func(ctx context.Context) error {
		return p.run(ctx, evt, i+1, next)
	})
}

// Token: распознанный ответ текстом.
type Token int

const (
	TokenAffirmative Token = iota + 1
	TokenNegative
	TokenCancel
)

var tokens = map[string]Token{
	"+":      TokenAffirmative,
	"1":      TokenAffirmative,
	"да":     TokenAffirmative,
	"-":      TokenNegative,
	"0":      TokenNegative,
	"нет":    TokenNegative,
	"отмена": TokenCancel,
}

// ParseToken сравнивает текст без учета регистра с фиксированным словарем.
func ParseToken(text string) (Token, bool) {
	t, ok := tokens[strings.ToLower(strings.TrimSpace(text))]
	return t, ok
}

func (t Token) String() string {
	switch t {
	case TokenAffirmative:
		return "affirmative"
	case TokenNegative:
		return "negative"
	case TokenCancel:
		return "cancel"
	}
	return "unknown"
}
