package requests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/reqflow/internal/domain"
	"go.uber.org/zap/zaptest"
)

func TestDispatcher_AlwaysCallsNext(t *testing.T) {
	tests := []struct {
		name string
		evt  *Event
	}{
		{name: "plain message", evt: &Event{UserID: 100, PeerID: 100, Text: "привет"}},
		{name: "button", evt: &Event{UserID: 100, PeerID: 100, Payload: &domain.ButtonPayload{Code: "aZ", Action: domain.ActionAccept}}},
		{name: "token reply", evt: &Event{UserID: 100, PeerID: 100, Text: "+", Reply: replyTo("aZ")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			createFriend(t, f, "aZ", NewRequest{RequesterID: 100, SourceID: 200})
			d := NewDispatcher(f.engine, zaptest.NewLogger(t))

			called := false
			err := d.Handle(context.Background(), tc.evt, func(context.Context) error {
				called = true
				return nil
			})
			require.NoError(t, err)
			assert.True(t, called)
		})
	}
}

func TestDispatcher_ButtonTakesPrecedence(t *testing.T) {
	f := newFixture(t)
	createFriend(t, f, "aZ", NewRequest{RequesterID: 100, SourceID: 200})
	d := NewDispatcher(f.engine, zaptest.NewLogger(t))

	// Кнопка говорит accept, текст говорит "-": побеждает кнопка
	evt := &Event{
		UserID:  100,
		PeerID:  100,
		Text:    "-",
		Payload: &domain.ButtonPayload{Code: "aZ", Action: domain.ActionAccept},
		Reply:   replyTo("aZ"),
	}
	require.NoError(t, d.Handle(context.Background(), evt, nil))

	accepts, denies := f.workflow.counts()
	assert.Equal(t, 1, accepts)
	assert.Equal(t, 0, denies)
}

func TestDispatcher_ErrorsAreJoined(t *testing.T) {
	f := newFixture(t)
	f.workflow.err = errors.New("action failed")
	createFriend(t, f, "aZ", NewRequest{RequesterID: 100})
	d := NewDispatcher(f.engine, zaptest.NewLogger(t))

	nextErr := errors.New("next failed")
	evt := &Event{UserID: 100, PeerID: 100, Payload: &domain.ButtonPayload{Code: "aZ", Action: domain.ActionDeny}}
	err := d.Handle(context.Background(), evt, func(context.Context) error { return nextErr })

	assert.ErrorIs(t, err, f.workflow.err)
	assert.ErrorIs(t, err, nextErr)
}

func TestDispatcher_NonBotReplyIsNotConsumed(t *testing.T) {
	f := newFixture(t)
	createFriend(t, f, "aZ", NewRequest{RequesterID: 100})
	d := NewDispatcher(f.engine, zaptest.NewLogger(t))

	evt := &Event{UserID: 100, PeerID: 100, Text: "+", Reply: &Reply{FromBot: false, Text: "(aZ)"}}
	require.NoError(t, d.Handle(context.Background(), evt, nil))

	accepts, _ := f.workflow.counts()
	assert.Zero(t, accepts)
	assert.Equal(t, 1, f.store.Len())
}
