package domain

import "strconv"

// Action: решение по заявке, приходящее из кнопки.
type Action string

const (
	ActionAccept Action = "accept"
	ActionDeny   Action = "deny"
)

// Valid проверяет, что action входит в пару accept/deny.
func (a Action) Valid() bool {
	return a == ActionAccept || a == ActionDeny
}

// Request: ожидающая решения заявка.
// Живет в хранилище от создания до первого (и единственного) разрешения.
type Request struct {
	RequesterID int64  `json:"requester_id"`        // Кто должен принять/отклонить
	SourceID    int64  `json:"source_id,omitempty"` // От чьего имени создана (0: сам за себя)
	Code        string `json:"code"`                // 2 символа, уникален среди ожидающих
	Tag         string `json:"tag"`                 // Ключ в реестре workflow
	CreatedTime int64  `json:"created_time"`        // epoch seconds

	// Peers: беседы, куда уйдет результат. Первый элемент всегда беседа-источник.
	Peers []int64 `json:"peers"`

	// Payload принадлежит workflow, движок его не интерпретирует.
	Payload map[string]any `json:"payload,omitempty"`
}

// HasSource сообщает, создана ли заявка от имени третьего лица.
func (r *Request) HasSource() bool {
	return r.SourceID != 0
}

// Clone возвращает копию, не разделяющую Peers с оригиналом.
func (r Request) Clone() Request {
	c := r
	c.Peers = append([]int64(nil), r.Peers...)
	if r.Payload != nil {
		c.Payload = make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			c.Payload[k] = v
		}
	}
	return c
}

// ButtonPayload: то, что кнопка возвращает при нажатии, дословно.
// На проводе: {"req": {"code": "aZ", "action": "accept"}}.
type ButtonPayload struct {
	Code   string `json:"code"`
	Action Action `json:"action"`
}

// ButtonEnvelope: обертка `req`, по которой диспетчер узнает свои кнопки.
type ButtonEnvelope struct {
	Req *ButtonPayload `json:"req,omitempty"`
}

// Identity: профиль пользователя, который подставляется в Resolution.Source.
type Identity struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName: имя для текста уведомлений.
func (i *Identity) DisplayName() string {
	switch {
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	case i.Username != "":
		return "@" + i.Username
	}
	return "id" + strconv.FormatInt(i.ID, 10)
}
