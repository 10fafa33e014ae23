// Package marketdata persists the latest snapshot and the daily candle series per
// instrument in history.db.
package marketdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// ErrNoData is returned when nothing is stored for a symbol
var ErrNoData = errors.New("no market data stored")

// maxStoredBars caps one series at roughly ten years of trading days
const maxStoredBars = 2520

// Repository reads and writes snapshots and candles
type Repository struct {
	db    *sql.DB
	clock clock.Clock
	log   zerolog.Logger
}

// NewRepository creates a market data repository over history.db
func NewRepository(db *sql.DB, clk clock.Clock, log zerolog.Logger) *Repository {
	if clk == nil {
		clk = clock.System{}
	}
	return &Repository{
		db:    db,
		clock: clk,
		log:   log.With().Str("repo", "marketdata").Logger(),
	}
}

// SaveSnapshot replaces the stored snapshot for its symbol
func (r *Repository) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil || snap.Symbol == "" {
		return domain.NewPermanentError("save snapshot", errors.New("snapshot without symbol"))
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = r.clock.Now()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return domain.NewPermanentError("save snapshot", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (symbol, data, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`,
		snap.Symbol, string(data), snap.FetchedAt.UnixMilli())
	if err != nil {
		return domain.NewStorageError("save snapshot", err)
	}
	return nil
}

// GetSnapshot returns the stored snapshot for symbol
func (r *Repository) GetSnapshot(ctx context.Context, symbol string) (*domain.Snapshot, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE symbol = ?`, symbol).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, domain.NewStorageError("get snapshot", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", symbol, err)
	}
	return &snap, nil
}

// SaveCandles merges candles into the stored series. Bars with the same time are
// replaced by the newer value. Returns the stored bar count.
func (r *Repository) SaveCandles(ctx context.Context, symbol string, candles []domain.Candle) (int, error) {
	if symbol == "" {
		return 0, domain.NewPermanentError("save candles", errors.New("symbol is required"))
	}
	if len(candles) == 0 {
		return 0, nil
	}

	existing, err := r.GetCandles(ctx, symbol)
	if err != nil && !errors.Is(err, ErrNoData) {
		return 0, err
	}

	merged := mergeCandles(existing, candles)
	if len(merged) > maxStoredBars {
		merged = merged[len(merged)-maxStoredBars:]
	}

	blob, err := msgpack.Marshal(merged)
	if err != nil {
		return 0, domain.NewPermanentError("encode candles", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO candles (symbol, data, bar_count, first_time, last_time, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			data = excluded.data,
			bar_count = excluded.bar_count,
			first_time = excluded.first_time,
			last_time = excluded.last_time,
			updated_at = excluded.updated_at`,
		symbol, blob, len(merged), merged[0].Time, merged[len(merged)-1].Time, r.clock.Now().UnixMilli())
	if err != nil {
		return 0, domain.NewStorageError("save candles", err)
	}

	r.log.Debug().
		Str("symbol", symbol).
		Int("received", len(candles)).
		Int("stored", len(merged)).
		Msg("Candles saved")
	return len(merged), nil
}

// GetCandles returns the stored series for symbol, oldest first
func (r *Repository) GetCandles(ctx context.Context, symbol string) ([]domain.Candle, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM candles WHERE symbol = ?`, symbol).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, domain.NewStorageError("get candles", err)
	}

	var candles []domain.Candle
	if err := msgpack.Unmarshal(blob, &candles); err != nil {
		return nil, fmt.Errorf("failed to decode candles for %s: %w", symbol, err)
	}
	return candles, nil
}

func mergeCandles(existing, incoming []domain.Candle) []domain.Candle {
	byTime := make(map[int64]domain.Candle, len(existing)+len(incoming))
	for _, c := range existing {
		byTime[c.Time] = c
	}
	for _, c := range incoming {
		byTime[c.Time] = c
	}

	merged := make([]domain.Candle, 0, len(byTime))
	for _, c := range byTime {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time < merged[j].Time })
	return merged
}
