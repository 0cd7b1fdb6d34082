package requests

import (
	"context"
	"strings"

	"github.com/xela07ax/reqflow/internal/domain"
)

// Color: подсказка транспорту, как раскрасить кнопку. Транспорт вправе ее игнорировать.
type Color string

const (
	ColorPositive  Color = "positive"
	ColorNegative  Color = "negative"
	ColorPrimary   Color = "primary"
	ColorSecondary Color = "secondary"
)

type Button struct {
	Label   string
	Color   Color
	Payload domain.ButtonPayload // возвращается транспортом дословно как {"req": ...}
}

// Message: исходящее уведомление.
type Message struct {
	Text        string
	Attachments []string
	Buttons     []Button
}

// Sender: контракт транспорта. Повторы и ошибки доставки: его забота.
type Sender interface {
	Send(ctx context.Context, peers []int64, msg Message) error
}

// Notifier отдается действию workflow вместе с заявкой и знает, кому слать результат.
type Notifier interface {
	// SendResult отправляет сообщение всем peers и помечает событие как отвеченное.
	SendResult(ctx context.Context, msg Message) error
	// SendBuilder начинает сообщение, которое можно дополнить перед Answer.
	SendBuilder(msg Message) *Builder
}

type peerNotifier struct {
	sender Sender
	evt    *Event
	peers  []int64
}

func (n *peerNotifier) SendResult(ctx context.Context, msg Message) error {
	n.evt.Answered = true
	return n.sender.Send(ctx, n.peers, msg)
}

func (n *peerNotifier) SendBuilder(msg Message) *Builder {
	b := NewBuilder(n.sender, msg)
	b.evt = n.evt
	b.peers = n.peers
	return b
}

// Builder: накопитель сообщения в духе message builder хост-бота.
type Builder struct {
	sender Sender
	evt    *Event
	peers  []int64
	msg    Message
}

func NewBuilder(sender Sender, msg Message) *Builder {
	return &Builder{sender: sender, msg: msg}
}

// Line дописывает строку через перевод строки.
func (b *Builder) Line(s string) *Builder {
	if b.msg.Text == "" {
		b.msg.Text = s
	} else {
		b.msg.Text += "\n" + s
	}
	return b
}

func (b *Builder) Lines(lines ...string) *Builder {
	if len(lines) == 0 {
		return b
	}
	return b.Line(strings.Join(lines, "\n"))
}

func (b *Builder) Attach(attachments ...string) *Builder {
	b.msg.Attachments = append(b.msg.Attachments, attachments...)
	return b
}

func (b *Builder) Keyboard(buttons ...Button) *Builder {
	b.msg.Buttons = append(b.msg.Buttons, buttons...)
	return b
}

func (b *Builder) Message() Message {
	return b.msg
}

// Send отправляет в peers; без аргументов: в беседы, к которым привязан builder.
func (b *Builder) Send(ctx context.Context, peers ...int64) error {
	if len(peers) == 0 {
		peers = b.peers
	}
	return b.sender.Send(ctx, peers, b.msg)
}

// Answer: Send по привязанным беседам с пометкой события как отвеченного.
func (b *Builder) Answer(ctx context.Context) error {
	if b.evt != nil {
		b.evt.Answered = true
	}
	return b.sender.Send(ctx, b.peers, b.msg)
}
