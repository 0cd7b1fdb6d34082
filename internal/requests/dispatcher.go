package requests

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Dispatcher: звено конвейера, которое забирает себе кнопки {"req": ...}
// и текстовые ответы на сообщения бота. Все остальное проходит дальше по next.
type Dispatcher struct {
	engine *Engine
	logger *zap.Logger
}

func NewDispatcher(engine *Engine, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{engine: engine, logger: logger.Named("dispatcher")}
}

// Handle классифицирует событие: сначала кнопка, потом ответ токеном.
// Кнопка приоритетнее, даже если сообщение заодно похоже на текстовый ответ.
// next вызывается всегда: обработка заявки не прерывает остальной конвейер хоста.
func (d *Dispatcher) Handle(ctx context.Context, evt *Event, next NextFunc) error {
	var err error
	switch {
	case evt.Payload != nil:
		err = d.engine.HandleButton(ctx, evt, evt.Payload)
	case d.isTokenReply(evt):
		err = d.engine.HandleTextReply(ctx, evt, evt.Reply)
	}
	if err != nil {
		d.logger.Error("request handling failed",
			zap.Int64("user_id", evt.UserID),
			zap.Int64("peer_id", evt.PeerID),
			zap.Error(err))
	}

	if next == nil {
		return err
	}
	return errors.Join(err, next(ctx))
}

func (d *Dispatcher) isTokenReply(evt *Event) bool {
	if evt.Reply == nil || !evt.Reply.FromBot {
		return false
	}
	_, ok := ParseToken(evt.Text)
	return ok
}
