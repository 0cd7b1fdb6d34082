package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Accumulates(t *testing.T) {
	s := &fakeSender{}
	b := NewBuilder(s, Message{Text: "первая"}).
		Line("вторая").
		Lines("третья", "четвертая").
		Lines().
		Attach("photo1").
		Keyboard(Button{Label: "Ок"})

	assert.Equal(t, "первая\nвторая\nтретья\nчетвертая", b.Message().Text)
	assert.Equal(t, []string{"photo1"}, b.Message().Attachments)
	assert.Len(t, b.Message().Buttons, 1)

	require.NoError(t, b.Send(context.Background(), 5, 6))
	out := s.all()
	require.Len(t, out, 1)
	assert.Equal(t, []int64{5, 6}, out[0].peers)
}

func TestPeerNotifier(t *testing.T) {
	s := &fakeSender{}
	evt := &Event{UserID: 1}
	n := &peerNotifier{sender: s, evt: evt, peers: []int64{10, 20}}

	b := n.SendBuilder(Message{}).Line("Заявка принята")
	require.NoError(t, b.Send(context.Background()))
	assert.False(t, evt.Answered, "plain Send does not mark the event")

	require.NoError(t, b.Answer(context.Background()))
	assert.True(t, evt.Answered)

	evt.Answered = false
	require.NoError(t, n.SendResult(context.Background(), Message{Text: "итог"}))
	assert.True(t, evt.Answered)

	out := s.all()
	require.Len(t, out, 3)
	for _, m := range out {
		assert.Equal(t, []int64{10, 20}, m.peers)
	}
	assert.Equal(t, "итог", out[2].msg.Text)
}
