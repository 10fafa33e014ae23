package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has(KindSyncSnapshot))
	assert.Nil(t, r.Get(KindSyncSnapshot))

	boom := errors.New("boom")
	r.Register(KindSyncSnapshot, HandlerFunc(func(ctx context.Context, payload json.RawMessage) error {
		return boom
	}))
	r.Register(KindAddInstrument, HandlerFunc(func(ctx context.Context, payload json.RawMessage) error {
		return nil
	}))

	require.True(t, r.Has(KindSyncSnapshot))
	assert.ErrorIs(t, r.Get(KindSyncSnapshot).Handle(context.Background(), nil), boom)
	assert.Equal(t, []Kind{KindAddInstrument, KindSyncSnapshot}, r.Kinds())
}

func TestRegistry_ReplaceHandler(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Register(KindBackfillHistory, HandlerFunc(func(context.Context, json.RawMessage) error {
		calls += 1
		return nil
	}))
	r.Register(KindBackfillHistory, HandlerFunc(func(context.Context, json.RawMessage) error {
		calls += 10
		return nil
	}))

	require.NoError(t, r.Get(KindBackfillHistory).Handle(context.Background(), nil))
	assert.Equal(t, 10, calls)
	assert.Len(t, r.Kinds(), 1)
}

func TestKindDescription(t *testing.T) {
	assert.NotEqual(t, string(KindAddInstrument), KindAddInstrument.Description())
	assert.Equal(t, "custom", Kind("custom").Description())
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusPending.Valid())
	assert.False(t, Status("done").Valid())
}
