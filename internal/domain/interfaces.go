package domain

import "context"

// MarketDataProvider fetches prices and history for an instrument.
// A rate-limited call returns an error matching ErrRateLimited.
type MarketDataProvider interface {
	FetchSnapshot(ctx context.Context, symbol string) (*Snapshot, error)
	FetchHistory(ctx context.Context, symbol string, days int) ([]Candle, error)
}

// AnalysisProvider generates an analysis for a prompt
type AnalysisProvider interface {
	Name() string
	GenerateAnalysis(ctx context.Context, prompt string) (*Analysis, error)
}

// InstrumentCatalog lists the instruments the scheduler syncs.
type InstrumentCatalog interface {
	ListTracked(ctx context.Context) ([]SyncTarget, error)
}
