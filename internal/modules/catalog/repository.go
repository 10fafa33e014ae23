// Package catalog stores the instruments the sync scheduler tracks.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// ErrInstrumentNotFound is returned when no instrument has the requested symbol
var ErrInstrumentNotFound = errors.New("instrument not found")

// Instrument is one catalog row
type Instrument struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Symbol    string    `json:"symbol"`
	Exchange  string    `json:"exchange"`
	Name      string    `json:"name"`
	Tracked   bool      `json:"tracked"`
}

// Target converts the instrument to a sync target
func (i Instrument) Target() domain.SyncTarget {
	return domain.SyncTarget{Symbol: i.Symbol, Exchange: i.Exchange, Name: i.Name}
}

const instrumentColumns = `symbol, exchange, name, tracked, created_at, updated_at`

// Repository reads and writes the instruments table in core.db
type Repository struct {
	db    *sql.DB
	clock clock.Clock
	log   zerolog.Logger
}

// NewRepository creates a catalog repository
func NewRepository(db *sql.DB, clk clock.Clock, log zerolog.Logger) *Repository {
	if clk == nil {
		clk = clock.System{}
	}
	return &Repository{
		db:    db,
		clock: clk,
		log:   log.With().Str("repo", "catalog").Logger(),
	}
}

// NormalizeSymbol upper-cases and trims a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ListTracked returns tracked instruments ordered by symbol
func (r *Repository) ListTracked(ctx context.Context) ([]domain.SyncTarget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+instrumentColumns+` FROM instruments WHERE tracked = 1 ORDER BY symbol ASC`)
	if err != nil {
		return nil, domain.NewStorageError("list tracked instruments", err)
	}
	defer rows.Close()

	var targets []domain.SyncTarget
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan instrument", err)
		}
		targets = append(targets, inst.Target())
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate instruments", err)
	}
	return targets, nil
}

// Get returns the instrument for symbol
func (r *Repository) Get(ctx context.Context, symbol string) (*Instrument, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+instrumentColumns+` FROM instruments WHERE symbol = ?`, NormalizeSymbol(symbol))
	inst, err := scanInstrument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInstrumentNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get instrument", err)
	}
	return inst, nil
}

// Upsert inserts or updates an instrument and marks it tracked.
// An empty exchange or name keeps the stored value.
func (r *Repository) Upsert(ctx context.Context, target domain.SyncTarget) error {
	symbol := NormalizeSymbol(target.Symbol)
	if symbol == "" {
		return domain.NewPermanentError("upsert instrument", errors.New("symbol is required"))
	}
	now := r.clock.Now().UnixMilli()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO instruments (symbol, exchange, name, tracked, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			exchange = CASE WHEN excluded.exchange = '' THEN instruments.exchange ELSE excluded.exchange END,
			name = CASE WHEN excluded.name = '' THEN instruments.name ELSE excluded.name END,
			tracked = 1,
			updated_at = excluded.updated_at`,
		symbol, strings.TrimSpace(target.Exchange), strings.TrimSpace(target.Name), now, now,
	)
	if err != nil {
		return domain.NewStorageError("upsert instrument", err)
	}

	r.log.Debug().Str("symbol", symbol).Msg("Instrument upserted")
	return nil
}

// SetTracked toggles whether the scheduler syncs symbol
func (r *Repository) SetTracked(ctx context.Context, symbol string, tracked bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE instruments SET tracked = ?, updated_at = ? WHERE symbol = ?`,
		boolToInt(tracked), r.clock.Now().UnixMilli(), NormalizeSymbol(symbol))
	if err != nil {
		return domain.NewStorageError("set instrument tracked", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError("set instrument tracked", err)
	}
	if n == 0 {
		return ErrInstrumentNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstrument(s scanner) (*Instrument, error) {
	var (
		inst      Instrument
		tracked   int
		createdAt int64
		updatedAt int64
	)
	if err := s.Scan(&inst.Symbol, &inst.Exchange, &inst.Name, &tracked, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	inst.Tracked = tracked == 1
	inst.CreatedAt = time.UnixMilli(createdAt).UTC()
	inst.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &inst, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
