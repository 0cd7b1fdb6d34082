package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func noop(context.Context, *Resolution) error { return nil }

func TestRegistry_RegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		wf      Workflow
		wantErr error
	}{
		{name: "empty tag", tag: "", wf: &recorder{}, wantErr: ErrEmptyTag},
		{name: "nil workflow", tag: "friend", wf: nil, wantErr: ErrInvalidWorkflow},
		{name: "missing deny", tag: "friend", wf: Actions{OnAccept: noop}, wantErr: ErrInvalidWorkflow},
		{name: "missing accept", tag: "friend", wf: &Actions{OnDeny: noop}, wantErr: ErrInvalidWorkflow},
		{name: "complete actions", tag: "friend", wf: Actions{OnAccept: noop, OnDeny: noop}},
		{name: "struct workflow", tag: "friend", wf: &recorder{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry(zaptest.NewLogger(t))
			err := r.Register(tc.tag, tc.wf)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				_, ok := r.Lookup(tc.tag)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			_, ok := r.Lookup(tc.tag)
			assert.True(t, ok)
		})
	}
}

func TestRegistry_DuplicateWarnsAndOverwrites(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRegistry(zap.New(core))

	first, second := &recorder{}, &recorder{}
	require.NoError(t, r.Register("friend", first))
	require.NoError(t, r.Register("friend", second))

	wf, ok := r.Lookup("friend")
	require.True(t, ok)
	assert.Same(t, second, wf)
	assert.Equal(t, 1, logs.FilterMessage("tag already registered, overwriting").Len())
}

func TestRegistry_UnregisterAndTags(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, r.Register("friend", &recorder{}))
	require.NoError(t, r.Register("clan", &recorder{}))
	assert.Equal(t, []string{"clan", "friend"}, r.Tags())

	r.Unregister("friend")
	_, ok := r.Lookup("friend")
	assert.False(t, ok)
	assert.Equal(t, []string{"clan"}, r.Tags())
}
