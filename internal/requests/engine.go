package requests

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/reqflow/internal/audit"
	"github.com/xela07ax/reqflow/internal/domain"
	"go.uber.org/zap"
)

const (
	createdHint   = "💡 Вы можете ответить на это сообщение символом +/- чтобы принять или отклонить эту заявку."
	cancelTip     = `💡 Вы можете отменить эту заявку, переслав это сообщение с текстом "отмена".`
	withdrawnText = "⭕ Вы отменили свою заявку."
)

// IdentityResolver: сервис профилей пользователей.
type IdentityResolver interface {
	GetIdentity(ctx context.Context, userID int64) (*domain.Identity, error)
}

// NewRequest: то, что workflow передает при создании заявки.
type NewRequest struct {
	Tag         string
	RequesterID int64 // Кого спрашиваем
	SourceID    int64 // От чьего имени (0: сам за себя)
	Peer        int64 // Беседа-источник; по умолчанию беседа SourceID, затем RequesterID
	Text        string
	Attachments []string
	Payload     map[string]any
}

type Created struct {
	Code string
	// Tip: подсказка для SourceID о том, как отозвать заявку (код уже внутри).
	Tip string
}

// Resolution: все, что получает действие workflow при разрешении заявки.
type Resolution struct {
	Event   *Event
	Request domain.Request
	Action  domain.Action
	Payload map[string]any

	// Source: профиль SourceID. Если поиск не удался, Source == nil, а причина в SourceErr:
	// решать, можно ли продолжать без него, должно само действие.
	Source    *domain.Identity
	SourceErr error

	Peers  []int64
	Notify Notifier
}

// Engine: конечный автомат заявки: PENDING -> ACCEPTED | DENIED | WITHDRAWN.
// Каждый переход начинается со снятия заявки из Store, так что второй претендент ее уже не найдет.
type Engine struct {
	store   *Store
	tags    *Registry
	users   IdentityResolver
	sender  Sender
	auditor audit.Auditor
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewEngine(store *Store, tags *Registry, users IdentityResolver, sender Sender, auditor audit.Auditor, metrics *Metrics, logger *zap.Logger) *Engine {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Engine{
		store:   store,
		tags:    tags,
		users:   users,
		sender:  sender,
		auditor: auditor,
		metrics: metrics,
		logger:  logger.Named("resolution-engine"),
		now:     time.Now,
	}
}

// CreateRequest заводит заявку и отправляет RequesterID уведомление с кнопками.
// Ошибка доставки уведомления не отменяет заявку: повторы: забота транспорта.
func (e *Engine) CreateRequest(ctx context.Context, nr NewRequest) (Created, error) {
	if nr.Tag == "" {
		return Created{}, ErrEmptyTag
	}
	if nr.RequesterID == 0 {
		return Created{}, ErrNoRequester
	}
	// Заявка не может существовать раньше своего тега
	if _, ok := e.tags.Lookup(nr.Tag); !ok {
		return Created{}, fmt.Errorf("%w: %s", ErrUnknownTag, nr.Tag)
	}

	origin := nr.Peer
	if origin == 0 {
		origin = nr.SourceID
	}
	if origin == 0 {
		origin = nr.RequesterID
	}

	req, err := e.store.create(ctx, func(code string) domain.Request {
		return domain.Request{
			RequesterID: nr.RequesterID,
			SourceID:    nr.SourceID,
			Code:        code,
			Tag:         nr.Tag,
			CreatedTime: e.now().Unix(),
			Peers:       []int64{origin},
			Payload:     nr.Payload,
		}
	})
	if err != nil {
		return Created{}, err
	}
	e.metrics.Created.WithLabelValues(req.Tag).Inc()

	e.logger.Info("request created",
		zap.String("code", req.Code),
		zap.String("tag", req.Tag),
		zap.Int64("requester_id", req.RequesterID),
		zap.Int64("source_id", req.SourceID))

	err = NewBuilder(e.sender, Message{}).
		Lines(
			fmt.Sprintf("📬 %s (%s)", nr.Text, req.Code),
			fmt.Sprintf("\n%s (%s)", createdHint, req.Code),
		).
		Attach(nr.Attachments...).
		Keyboard(
			Button{Label: "Принять", Color: ColorPositive, Payload: domain.ButtonPayload{Code: req.Code, Action: domain.ActionAccept}},
			Button{Label: "Отклонить", Color: ColorNegative, Payload: domain.ButtonPayload{Code: req.Code, Action: domain.ActionDeny}},
		).
		Send(ctx, req.RequesterID)
	if err != nil {
		e.metrics.NotificationFailed.WithLabelValues("created").Inc()
		e.logger.Warn("request notification not delivered",
			zap.String("code", req.Code),
			zap.Int64("requester_id", req.RequesterID),
			zap.Error(err))
	}

	return Created{
		Code: req.Code,
		Tip:  fmt.Sprintf("\n%s (%s)", cancelTip, req.Code),
	}, nil
}

// HandleButton обрабатывает нажатие кнопки {"req": {code, action}}.
// Нажать может только RequesterID; чужое нажатие молча игнорируется, чтобы не раскрывать валидность кода.
func (e *Engine) HandleButton(ctx context.Context, evt *Event, payload *domain.ButtonPayload) error {
	if payload == nil {
		return nil
	}
	req, ok := e.store.FindByCode(payload.Code)
	if !ok || evt.UserID != req.RequesterID {
		e.logger.Debug("button ignored", zap.String("code", payload.Code), zap.Int64("user_id", evt.UserID))
		return nil
	}
	if !payload.Action.Valid() {
		e.logger.Debug("button with unknown action ignored", zap.String("code", payload.Code), zap.String("action", string(payload.Action)))
		return nil
	}
	return e.resolve(ctx, evt, req, payload.Action)
}

// HandleTextReply обрабатывает текстовый ответ на сообщение бота.
// Заявка ищется по подстроке "(code)" в тексте сообщения, на которое ответили.
func (e *Engine) HandleTextReply(ctx context.Context, evt *Event, reply *Reply) error {
	if reply == nil || !reply.FromBot {
		return nil
	}
	token, ok := ParseToken(evt.Text)
	if !ok {
		return nil
	}

	req, ok := e.store.FindBy(func(r *domain.Request) bool {
		return strings.Contains(reply.Text, "("+r.Code+")")
	})
	if !ok {
		return nil
	}

	switch {
	case evt.UserID == req.RequesterID:
		action := domain.ActionDeny
		if token == TokenAffirmative {
			action = domain.ActionAccept
		}
		return e.resolve(ctx, evt, req, action)

	case req.HasSource() && evt.UserID == req.SourceID:
		if token != TokenCancel {
			return nil
		}
		return e.withdraw(ctx, evt, req)
	}
	return nil
}

// resolve: общий путь accept/deny. Сначала снимаем заявку, потом все остальное.
func (e *Engine) resolve(ctx context.Context, evt *Event, found domain.Request, action domain.Action) error {
	req, ok := e.store.Take(ctx, found.Code, sameRequest(&found))
	if !ok {
		e.logger.Debug("request already resolved", zap.String("code", found.Code))
		return nil
	}

	res := &Resolution{
		Event:   evt,
		Request: req,
		Action:  action,
		Payload: req.Payload,
	}
	if res.Payload == nil {
		res.Payload = make(map[string]any)
	}

	if req.HasSource() {
		if e.users == nil {
			res.SourceErr = ErrNoIdentityResolver
		} else {
			res.Source, res.SourceErr = e.users.GetIdentity(ctx, req.SourceID)
		}
		if res.SourceErr != nil {
			e.logger.Warn("source identity lookup failed",
				zap.String("code", req.Code),
				zap.Int64("source_id", req.SourceID),
				zap.Error(res.SourceErr))
		}
	}

	peers := append([]int64(nil), req.Peers...)
	if len(peers) == 0 || peers[0] != evt.PeerID {
		peers = append(peers, evt.PeerID)
	}
	// Workflow мог заранее положить свой список получателей в payload
	if custom, ok := peersFromPayload(res.Payload); ok {
		peers = custom
	}
	res.Peers = peers
	res.Notify = &peerNotifier{sender: e.sender, evt: evt, peers: peers}

	wf, ok := e.tags.Lookup(req.Tag)
	if !ok {
		// Нарушение инварианта: заявка пережила свой workflow. В development-сборке паникуем.
		e.logger.DPanic("request references unregistered tag",
			zap.String("code", req.Code),
			zap.String("tag", req.Tag))
		return fmt.Errorf("%w: %s", ErrUnknownTag, req.Tag)
	}

	var err error
	if action == domain.ActionAccept {
		err = wf.Accept(ctx, res)
	} else {
		err = wf.Deny(ctx, res)
	}

	outcome := domain.OutcomeOf(action)
	e.record(req, evt, outcome, err)
	e.logger.Info("request resolved",
		zap.String("code", req.Code),
		zap.String("tag", req.Tag),
		zap.String("outcome", string(outcome)),
		zap.Int64("resolver_id", evt.UserID),
		zap.Error(err))

	if err != nil {
		return fmt.Errorf("%s %s (%s): %w", req.Tag, action, req.Code, err)
	}
	return nil
}

// withdraw: отзыв заявки третьим лицом. Действие workflow не вызывается.
func (e *Engine) withdraw(ctx context.Context, evt *Event, found domain.Request) error {
	req, ok := e.store.Take(ctx, found.Code, sameRequest(&found))
	if !ok {
		return nil
	}
	e.record(req, evt, domain.OutcomeWithdrawn, nil)
	e.logger.Info("request withdrawn",
		zap.String("code", req.Code),
		zap.String("tag", req.Tag),
		zap.Int64("source_id", req.SourceID))

	evt.Answered = true
	if err := e.sender.Send(ctx, []int64{evt.PeerID}, Message{Text: withdrawnText}); err != nil {
		e.metrics.NotificationFailed.WithLabelValues("withdrawn").Inc()
		return fmt.Errorf("withdraw confirmation (%s): %w", req.Code, err)
	}
	return nil
}

func (e *Engine) record(req domain.Request, evt *Event, outcome domain.Outcome, actionErr error) {
	e.metrics.Resolved.WithLabelValues(req.Tag, strings.ToLower(string(outcome))).Inc()
	if e.auditor == nil {
		return
	}
	event := audit.Event{
		Code:        req.Code,
		Tag:         req.Tag,
		Outcome:     outcome,
		RequesterID: req.RequesterID,
		SourceID:    req.SourceID,
		ResolverID:  evt.UserID,
		PeerID:      evt.PeerID,
		CreatedTime: req.CreatedTime,
		ResolvedAt:  e.now(),
	}
	if actionErr != nil {
		event.Error = actionErr.Error()
	}
	e.auditor.Log(event)
}

// sameRequest защищает от гонки "нашли: освободили: код переиспользовали: сняли чужую".
func sameRequest(found *domain.Request) func(*domain.Request) bool {
	return func(cur *domain.Request) bool {
		return cur.RequesterID == found.RequesterID &&
			cur.SourceID == found.SourceID &&
			cur.Tag == found.Tag &&
			cur.CreatedTime == found.CreatedTime
	}
}

// peersFromPayload понимает и []int64, и то, во что JSON превращает массив чисел.
func peersFromPayload(payload map[string]any) ([]int64, bool) {
	raw, ok := payload["peers"]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case []int64:
		if len(v) == 0 {
			return nil, false
		}
		return append([]int64(nil), v...), true
	case []any:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				out = append(out, int64(n))
			case int64:
				out = append(out, n)
			case int:
				out = append(out, int64(n))
			default:
				return nil, false
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}
