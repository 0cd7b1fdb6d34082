// Package friend: пример модуля заявок: "добавь меня в друзья".
// Регистрирует тег "friend" и команду /friend <id>.
package friend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xela07ax/reqflow/internal/domain"
	"github.com/xela07ax/reqflow/internal/requests"
	"go.uber.org/zap"
)

const Tag = "friend"

// Friendships: где хранится результат принятой заявки.
type Friendships interface {
	AddFriends(ctx context.Context, a, b int64) error
}

type Workflow struct {
	friends Friendships
	logger  *zap.Logger
}

// Register подключает тег к реестру.
func Register(reg *requests.Registry, friends Friendships, logger *zap.Logger) (*Workflow, error) {
	w := &Workflow{friends: friends, logger: logger.With(zap.String("mod", "workflow-friend"))}
	if err := reg.Register(Tag, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Accept без профиля источника не дружит: неизвестно, кого добавлять в уведомление.
func (w *Workflow) Accept(ctx context.Context, res *requests.Resolution) error {
	if res.SourceErr != nil {
		return fmt.Errorf("source profile: %w", res.SourceErr)
	}
	if err := w.friends.AddFriends(ctx, res.Request.RequesterID, res.Request.SourceID); err != nil {
		return fmt.Errorf("add friends: %w", err)
	}
	return res.Notify.SendResult(ctx, requests.Message{
		Text: fmt.Sprintf("✅ %s и %s теперь друзья.", resolverName(res), sourceName(res)),
	})
}

// Deny переживает отсутствие профиля: отказ можно сообщить и без имени.
func (w *Workflow) Deny(ctx context.Context, res *requests.Resolution) error {
	if res.SourceErr != nil {
		w.logger.Warn("deny without source profile", zap.String("code", res.Request.Code), zap.Error(res.SourceErr))
	}
	return res.Notify.SendBuilder(requests.Message{}).
		Line(fmt.Sprintf("❌ %s отклонил(а) заявку в друзья от %s.", resolverName(res), sourceName(res))).
		Answer(ctx)
}

func sourceName(res *requests.Resolution) string {
	if res.Source != nil {
		return res.Source.DisplayName()
	}
	return (&domain.Identity{ID: res.Request.SourceID}).DisplayName()
}

func resolverName(res *requests.Resolution) string {
	if res.Event != nil && res.Event.From != nil {
		return res.Event.From.DisplayName()
	}
	return (&domain.Identity{ID: res.Request.RequesterID}).DisplayName()
}

// Command: звено конвейера для "/friend <id>". Чужие сообщения отдает дальше.
type Command struct {
	engine *requests.Engine
	sender requests.Sender
	logger *zap.Logger
}

func NewCommand(engine *requests.Engine, sender requests.Sender, logger *zap.Logger) *Command {
	return &Command{engine: engine, sender: sender, logger: logger.With(zap.String("mod", "command-friend"))}
}

func (c *Command) Handle(ctx context.Context, evt *requests.Event, next requests.NextFunc) error {
	target, ok, usage := parseCommand(evt.Text)
	if !ok {
		if next == nil {
			return nil
		}
		return next(ctx)
	}
	evt.Answered = true

	if usage != "" {
		return c.reply(ctx, evt, usage)
	}
	if target == evt.UserID {
		return c.reply(ctx, evt, "🤔 Нельзя отправить заявку самому себе.")
	}

	created, err := c.engine.CreateRequest(ctx, requests.NewRequest{
		Tag:         Tag,
		RequesterID: target,
		SourceID:    evt.UserID,
		Peer:        evt.PeerID,
		Text:        fmt.Sprintf("%s хочет добавить вас в друзья.", senderName(evt)),
	})
	if err != nil {
		c.logger.Error("friend request not created", zap.Int64("user_id", evt.UserID), zap.Int64("target", target), zap.Error(err))
		return errors.Join(err, c.reply(ctx, evt, "⚠ Не удалось отправить заявку, попробуйте позже."))
	}
	return c.reply(ctx, evt, "📨 Заявка отправлена."+created.Tip)
}

func (c *Command) reply(ctx context.Context, evt *requests.Event, text string) error {
	return c.sender.Send(ctx, []int64{evt.PeerID}, requests.Message{Text: text})
}

// parseCommand: ok: это наша команда; usage непуст, если аргумент кривой.
func parseCommand(text string) (target int64, ok bool, usage string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, false, ""
	}
	// В группах Telegram дописывает @botname
	cmd, _, _ := strings.Cut(fields[0], "@")
	if cmd != "/friend" {
		return 0, false, ""
	}
	if len(fields) != 2 {
		return 0, true, "Использование: /friend <id>"
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, true, "Использование: /friend <id>"
	}
	return id, true, ""
}

func senderName(evt *requests.Event) string {
	if evt.From != nil {
		return evt.From.DisplayName()
	}
	return (&domain.Identity{ID: evt.UserID}).DisplayName()
}
