package research

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
	testingpkg "github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/testing"
)

var testStart = time.Date(2024, 6, 11, 14, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *Repository, *clock.Fake) {
	t.Helper()
	db := testingpkg.NewTestDB(t, "core")
	repo := NewRepository(db.Conn())
	clk := clock.NewFake(testStart)
	return NewManager(repo, clk, zerolog.Nop()), repo, clk
}

func TestCreate(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	ticket, err := m.Create(ctx, "AAPL", RiskScanRequest{Symbol: "AAPL", Reason: "stale"})
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, StatusPending, ticket.Status)
	assert.Equal(t, testStart, ticket.CreatedAt)

	stored, err := m.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", stored.Subject)
	assert.JSONEq(t, `{"symbol":"AAPL","reason":"stale"}`, string(stored.Payload))
	assert.Empty(t, stored.Result)
	assert.Empty(t, stored.Error)
}

func TestCreate_InvalidPayload(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Create(context.Background(), "AAPL", []byte("{nope"))
	assert.True(t, domain.IsPermanent(err))
}

func TestCreate_StorageErrorPropagates(t *testing.T) {
	db := testingpkg.NewTestDB(t, "core")
	m := NewManager(NewRepository(db.Conn()), clock.NewFake(testStart), zerolog.Nop())
	require.NoError(t, db.Conn().Close())

	_, err := m.Create(context.Background(), "AAPL", nil)
	require.Error(t, err)
	assert.True(t, domain.IsStorage(err))
}

func TestLifecycle_Complete(t *testing.T) {
	m, _, clk := newTestManager(t)
	ctx := context.Background()

	ticket, err := m.Create(ctx, "AAPL", nil)
	require.NoError(t, err)

	clk.Advance(time.Second)
	claimed, err := m.Claim(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, claimed.Status)
	assert.Equal(t, clk.Now(), claimed.UpdatedAt)

	done, err := m.Complete(ctx, ticket.ID, map[string]string{"rating": "low"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.JSONEq(t, `{"rating":"low"}`, string(done.Result))
	assert.Empty(t, done.Error)
}

func TestLifecycle_Fail(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	ticket, _ := m.Create(ctx, "AAPL", nil)
	_, err := m.Claim(ctx, ticket.ID)
	require.NoError(t, err)

	failed, err := m.Fail(ctx, ticket.ID, "provider exploded")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "provider exploded", failed.Error)
	assert.Empty(t, failed.Result)
}

func TestInvalidTransitions(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	ticket, _ := m.Create(ctx, "AAPL", nil)

	// Pending tickets cannot complete or fail
	_, err := m.Complete(ctx, ticket.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Fail(ctx, ticket.ID, "x")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Claim(ctx, ticket.ID)
	require.NoError(t, err)

	// Double claim
	_, err = m.Claim(ctx, ticket.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = m.Complete(ctx, ticket.ID, json.RawMessage(`{"ok":true}`))
	require.NoError(t, err)

	// Terminal tickets are immutable
	_, err = m.Fail(ctx, ticket.ID, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Claim(ctx, ticket.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, _ := m.Get(ctx, ticket.ID)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Empty(t, stored.Error)
}

func TestTransitions_UnknownTicket(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Claim(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestReapStuck(t *testing.T) {
	m, _, clk := newTestManager(t)
	ctx := context.Background()

	pending, _ := m.Create(ctx, "AAPL", nil)
	processing, _ := m.Create(ctx, "MSFT", nil)
	_, err := m.Claim(ctx, processing.ID)
	require.NoError(t, err)

	done, _ := m.Create(ctx, "SAP.DE", nil)
	_, _ = m.Claim(ctx, done.ID)
	_, err = m.Complete(ctx, done.ID, nil)
	require.NoError(t, err)

	clk.Advance(15 * time.Minute)
	fresh, _ := m.Create(ctx, "MC.PA", nil)

	// Exactly at the timeout nothing is older than the cutoff yet
	clk.Advance(5 * time.Minute)
	assert.Equal(t, 0, m.ReapStuck(ctx, 20*time.Minute))

	clk.Advance(time.Millisecond)
	assert.Equal(t, 2, m.ReapStuck(ctx, 20*time.Minute))

	for _, id := range []string{pending.ID, processing.ID} {
		tk, err := m.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, tk.Status)
		assert.Equal(t, ReapTimeoutMessage, tk.Error)
	}

	completed, _ := m.Get(ctx, done.ID)
	assert.Equal(t, StatusCompleted, completed.Status)
	untouched, _ := m.Get(ctx, fresh.ID)
	assert.Equal(t, StatusPending, untouched.Status)
}

func TestReapStuck_Idempotent(t *testing.T) {
	m, _, clk := newTestManager(t)
	ctx := context.Background()

	for _, s := range []string{"AAPL", "MSFT", "SAP.DE"} {
		_, err := m.Create(ctx, s, nil)
		require.NoError(t, err)
	}
	clk.Advance(time.Hour)

	assert.Equal(t, 3, m.ReapStuck(ctx, 20*time.Minute))
	assert.Equal(t, 0, m.ReapStuck(ctx, 20*time.Minute))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats[StatusFailed])
	assert.Equal(t, 0, stats[StatusPending])
}

func TestReapStuck_ScanFailureReturnsZero(t *testing.T) {
	db := testingpkg.NewTestDB(t, "core")
	m := NewManager(NewRepository(db.Conn()), clock.NewFake(testStart), zerolog.Nop())
	require.NoError(t, db.Conn().Close())

	assert.Equal(t, 0, m.ReapStuck(context.Background(), time.Minute))
}

func TestLatestCompletedAt(t *testing.T) {
	m, _, clk := newTestManager(t)
	ctx := context.Background()

	_, ok, err := m.LatestCompletedAt(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)

	first, _ := m.Create(ctx, "AAPL", nil)
	_, _ = m.Claim(ctx, first.ID)
	_, err = m.Complete(ctx, first.ID, nil)
	require.NoError(t, err)
	firstDone := clk.Now()

	// A later failure does not count as an analysis
	clk.Advance(time.Hour)
	second, _ := m.Create(ctx, "AAPL", nil)
	_, _ = m.Claim(ctx, second.ID)
	_, err = m.Fail(ctx, second.ID, "nope")
	require.NoError(t, err)

	at, ok, err := m.LatestCompletedAt(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, firstDone, at)
}

func TestListAndTerminalSince(t *testing.T) {
	m, _, clk := newTestManager(t)
	ctx := context.Background()

	a, _ := m.Create(ctx, "AAPL", nil)
	_, _ = m.Claim(ctx, a.ID)
	_, _ = m.Complete(ctx, a.ID, nil)

	clk.Advance(time.Hour)
	b, _ := m.Create(ctx, "MSFT", nil)

	all, err := m.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "newest first")

	pending, err := m.List(ctx, StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	terminal, err := m.ListTerminalSince(ctx, testStart)
	require.NoError(t, err)
	require.Len(t, terminal, 1)
	assert.Equal(t, a.ID, terminal[0].ID)

	terminal, err = m.ListTerminalSince(ctx, clk.Now())
	require.NoError(t, err)
	assert.Empty(t, terminal)
}
