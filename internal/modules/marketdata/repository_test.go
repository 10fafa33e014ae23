package marketdata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

func setupHistoryTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE snapshots (
			symbol TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		);
		CREATE TABLE candles (
			symbol TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			bar_count INTEGER NOT NULL,
			first_time INTEGER NOT NULL,
			last_time INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRepo(t *testing.T) *Repository {
	clk := clock.NewFake(time.Date(2024, 6, 11, 14, 0, 0, 0, time.UTC))
	return NewRepository(setupHistoryTestDB(t), clk, zerolog.Nop())
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetSnapshot(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrNoData)

	snap := &domain.Snapshot{Symbol: "AAPL", Price: 190.5, PreviousClose: 189}
	require.NoError(t, repo.SaveSnapshot(ctx, snap))
	assert.False(t, snap.FetchedAt.IsZero(), "fetched_at defaults to now")

	snap2 := &domain.Snapshot{Symbol: "AAPL", Price: 191.25, FetchedAt: snap.FetchedAt.Add(time.Minute)}
	require.NoError(t, repo.SaveSnapshot(ctx, snap2))

	got, err := repo.GetSnapshot(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 191.25, got.Price)
	assert.True(t, got.FetchedAt.Equal(snap2.FetchedAt))
}

func TestSaveSnapshot_RequiresSymbol(t *testing.T) {
	err := newTestRepo(t).SaveSnapshot(context.Background(), &domain.Snapshot{})
	assert.True(t, domain.IsPermanent(err))
}

func TestSaveCandles_Merges(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.SaveCandles(ctx, "AAPL", []domain.Candle{
		{Time: 300, Close: 3},
		{Time: 100, Close: 1},
		{Time: 200, Close: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.SaveCandles(ctx, "AAPL", []domain.Candle{
		{Time: 300, Close: 3.5},
		{Time: 400, Close: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	candles, err := repo.GetCandles(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, candles, 4)
	assert.Equal(t, int64(100), candles[0].Time)
	assert.Equal(t, 3.5, candles[2].Close, "newer bar replaces the stored one")
	assert.Equal(t, int64(400), candles[3].Time)
}

func TestSaveCandles_Empty(t *testing.T) {
	repo := newTestRepo(t)
	n, err := repo.SaveCandles(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.GetCandles(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSaveCandles_CapsSeries(t *testing.T) {
	repo := newTestRepo(t)
	candles := make([]domain.Candle, maxStoredBars+10)
	for i := range candles {
		candles[i] = domain.Candle{Time: int64(i + 1), Close: float64(i)}
	}

	n, err := repo.SaveCandles(context.Background(), "AAPL", candles)
	require.NoError(t, err)
	assert.Equal(t, maxStoredBars, n)

	stored, err := repo.GetCandles(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(11), stored[0].Time, "oldest bars are dropped")
}
