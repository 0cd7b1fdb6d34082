// Package telegram связывает Bot API с движком заявок:
// входящие updates превращаются в requests.Event, исходящие requests.Message: в sendMessage.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/xela07ax/reqflow/internal/domain"
	"github.com/xela07ax/reqflow/internal/infra"
	"github.com/xela07ax/reqflow/internal/requests"
	"github.com/xela07ax/reqflow/internal/transport"
	"go.uber.org/zap"
)

var ErrNoToken = errors.New("telegram: token is required")

type Adapter struct {
	client  BotClient
	handler atomic.Pointer[requests.Handler]
	botID   atomic.Int64
	logger  *zap.Logger
}

// New создает бота с обработчиком по умолчанию; сеть не трогает до Serve.
func New(cfg infra.TelegramConfig, logger *zap.Logger) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	a := &Adapter{logger: logger.Named("telegram")}

	b, err := bot.New(cfg.Token,
		bot.WithSkipGetMe(),
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			a.onUpdate(ctx, update)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	a.client = &realBotClient{bot: b}
	return a, nil
}

func newWithClient(client BotClient, logger *zap.Logger) *Adapter {
	return &Adapter{client: client, logger: logger.Named("telegram")}
}

// Serve узнает id бота (нужен, чтобы отличать ответы на его сообщения) и слушает updates до отмены ctx.
func (a *Adapter) Serve(ctx context.Context, h requests.Handler) error {
	me, err := a.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: getMe: %w", err)
	}
	a.botID.Store(me.ID)
	a.handler.Store(&h)

	a.logger.Info("long polling started", zap.Int64("bot_id", me.ID), zap.String("username", me.Username))
	a.client.Start(ctx)
	a.logger.Info("long polling stopped")
	return nil
}

func (a *Adapter) onUpdate(ctx context.Context, update *models.Update) {
	hp := a.handler.Load()
	if hp == nil {
		return
	}
	evt := a.toEvent(update)
	if evt == nil {
		return
	}

	if err := (*hp).Handle(ctx, evt, nil); err != nil {
		a.logger.Error("update handling failed",
			zap.Int64("update_id", update.ID),
			zap.Int64("user_id", evt.UserID),
			zap.Error(err))
	}

	// Кнопку нужно "отпустить", иначе клиент покажет часики
	if cq := update.CallbackQuery; cq != nil {
		if _, err := a.client.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID}); err != nil {
			a.logger.Debug("answer callback failed", zap.String("callback_id", cq.ID), zap.Error(err))
		}
	}
}

// toEvent нормализует update. nil: событие не для нас (каналы, правки, служебные).
func (a *Adapter) toEvent(update *models.Update) *requests.Event {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		evt := &requests.Event{
			UserID: cq.From.ID,
			PeerID: cq.From.ID,
			From:   identityOf(&cq.From),
		}
		if m := cq.Message.Message; m != nil {
			evt.PeerID = m.Chat.ID
		}
		var env domain.ButtonEnvelope
		if err := json.Unmarshal([]byte(cq.Data), &env); err == nil && env.Req != nil {
			evt.Payload = env.Req
		}
		return evt

	case update.Message != nil:
		m := update.Message
		if m.From == nil {
			return nil
		}
		evt := &requests.Event{
			UserID: m.From.ID,
			PeerID: m.Chat.ID,
			Text:   m.Text,
			From:   identityOf(m.From),
		}
		if evt.Text == "" {
			evt.Text = m.Caption
		}
		if r := m.ReplyToMessage; r != nil {
			text := r.Text
			if text == "" {
				text = r.Caption
			}
			evt.Reply = &requests.Reply{
				MessageID: int64(r.ID),
				FromBot:   r.From != nil && r.From.ID == a.botID.Load(),
				Text:      text,
			}
		}
		return evt
	}
	return nil
}

// Send реализует requests.Sender. Цвета кнопок Telegram не поддерживает, они отбрасываются.
func (a *Adapter) Send(ctx context.Context, peers []int64, msg requests.Message) error {
	var errs []error
	for _, peer := range peers {
		if err := a.sendOne(ctx, peer, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Adapter) sendOne(ctx context.Context, chatID int64, msg requests.Message) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   msg.Text,
	}
	if len(msg.Buttons) > 0 {
		kb, err := keyboard(msg.Buttons)
		if err != nil {
			return transport.Permanent(err)
		}
		params.ReplyMarkup = kb
	}
	if _, err := a.client.SendMessage(ctx, params); err != nil {
		return classify(fmt.Errorf("send message to %d: %w", chatID, err))
	}

	for _, att := range msg.Attachments {
		_, err := a.client.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID: chatID,
			Photo:  &models.InputFileString{Data: att},
		})
		if err != nil {
			// Текст уже доставлен; повтор продублировал бы его, поэтому вложения не повторяем
			a.logger.Warn("attachment not delivered", zap.Int64("chat_id", chatID), zap.String("attachment", att), zap.Error(err))
		}
	}
	return nil
}

func keyboard(buttons []requests.Button) (*models.InlineKeyboardMarkup, error) {
	row := make([]models.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		data, err := json.Marshal(domain.ButtonEnvelope{Req: &b.Payload})
		if err != nil {
			return nil, fmt.Errorf("encode button %q: %w", b.Label, err)
		}
		// Bot API ограничивает callback_data 64 байтами
		if len(data) > 64 {
			return nil, fmt.Errorf("button %q: callback data is %d bytes, limit 64", b.Label, len(data))
		}
		row = append(row, models.InlineKeyboardButton{Text: b.Label, CallbackData: string(data)})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{row}}, nil
}

// classify переводит ошибки Bot API в язык transport.Reliable.
func classify(err error) error {
	var tooMany *bot.TooManyRequestsError
	switch {
	case errors.As(err, &tooMany):
		return &transport.ThrottleError{RetryAfter: time.Duration(tooMany.RetryAfter) * time.Second, Err: err}
	case errors.Is(err, bot.ErrorForbidden), errors.Is(err, bot.ErrorBadRequest), errors.Is(err, bot.ErrorUnauthorized):
		return transport.Permanent(err)
	}
	return err
}

func identityOf(u *models.User) *domain.Identity {
	return &domain.Identity{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}
