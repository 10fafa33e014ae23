// Package jobs holds the periodic sync entry points (full sync, snapshot sync,
// risk scan) and the request queue handlers that re-run their deferred work.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/research"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/queue"
)

// ReasonAllMarketsClosed is reported when a snapshot sync is skipped up front
const ReasonAllMarketsClosed = "All markets closed"

// Config holds the pacing and window knobs of the sync jobs
type Config struct {
	FullSyncDelay     time.Duration
	SnapshotSyncDelay time.Duration
	RiskScanDelay     time.Duration
	HistoryDays       int
	StalenessWindow   time.Duration
}

// DefaultConfig returns the standard pacing
func DefaultConfig() Config {
	return Config{
		FullSyncDelay:     1500 * time.Millisecond,
		SnapshotSyncDelay: 500 * time.Millisecond,
		RiskScanDelay:     2 * time.Second,
		HistoryDays:       365,
		StalenessWindow:   14 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FullSyncDelay < 0 {
		c.FullSyncDelay = 0
	}
	if c.SnapshotSyncDelay < 0 {
		c.SnapshotSyncDelay = 0
	}
	if c.RiskScanDelay < 0 {
		c.RiskScanDelay = 0
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = d.HistoryDays
	}
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = d.StalenessWindow
	}
	return c
}

// SleepFunc pauses between targets. It returns early with ctx's error on cancellation.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real pacing sleep
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SyncDeps contains the collaborators of the sync jobs
type SyncDeps struct {
	Catalog    domain.InstrumentCatalog
	MarketData domain.MarketDataProvider
	Store      MarketDataStoreInterface
	Gate       MarketGateInterface
	Queue      EnqueuerInterface
	Tickets    TicketServiceInterface
	Processor  TicketProcessorInterface
	Clock      clock.Clock
	Sleep      SleepFunc
}

// SyncService walks the tracked instruments sequentially with fixed pacing.
// Targets are never processed in parallel.
type SyncService struct {
	deps SyncDeps
	cfg  Config
	log  zerolog.Logger
}

// NewSyncService creates the sync service
func NewSyncService(deps SyncDeps, cfg Config, log zerolog.Logger) *SyncService {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Sleep == nil {
		deps.Sleep = Sleep
	}
	return &SyncService{
		deps: deps,
		cfg:  cfg.withDefaults(),
		log:  log.With().Str("component", "sync_service").Logger(),
	}
}

// FullSyncResult counts the outcome of RunFullSync
type FullSyncResult struct {
	Total    int `json:"total"`
	Success  int `json:"success"`
	Failed   int `json:"failed"`
	Deferred int `json:"deferred"` // Retryable failures handed to the queue
}

// SnapshotSyncResult counts the outcome of RunSnapshotSync
type SnapshotSyncResult struct {
	Skipped             bool   `json:"skipped"`
	Reason              string `json:"reason,omitempty"`
	Total               int    `json:"total"`
	Success             int    `json:"success"`
	Failed              int    `json:"failed"`
	SkippedMarketClosed int    `json:"skipped_market_closed"`
	Deferred            int    `json:"deferred"`
}

// RiskScanResult counts the outcome of RunRiskScan
type RiskScanResult struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RunFullSync fetches a snapshot and history backfill for every tracked target.
// A per-target failure is logged and the loop continues; retryable failures are queued.
func (s *SyncService) RunFullSync(ctx context.Context) (FullSyncResult, error) {
	var result FullSyncResult

	targets, err := s.deps.Catalog.ListTracked(ctx)
	if err != nil {
		return result, err
	}
	result.Total = len(targets)
	s.log.Info().Int("targets", len(targets)).Msg("Starting full sync")

	for i, target := range targets {
		if i > 0 {
			if err := s.deps.Sleep(ctx, s.cfg.FullSyncDelay); err != nil {
				return result, err
			}
		}

		deferred, err := s.syncTarget(ctx, target)
		switch {
		case err == nil:
			result.Success++
		case deferred:
			result.Deferred++
		default:
			result.Failed++
		}
	}

	s.log.Info().
		Int("total", result.Total).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Int("deferred", result.Deferred).
		Msg("Full sync finished")
	return result, nil
}

// syncTarget runs the snapshot and backfill for one target. deferred reports
// whether a failed step was queued for retry.
func (s *SyncService) syncTarget(ctx context.Context, target domain.SyncTarget) (deferred bool, err error) {
	log := s.log.With().Str("symbol", target.Symbol).Logger()

	snapErr := s.fetchAndStoreSnapshot(ctx, target.Symbol)
	if snapErr != nil {
		log.Warn().Err(snapErr).Msg("Snapshot sync failed")
		if s.deferIfRetryable(ctx, snapErr, queue.KindSyncSnapshot, SymbolPayload{Symbol: target.Symbol}) {
			deferred = true
		}
	}

	histErr := s.fetchAndStoreHistory(ctx, target.Symbol, s.cfg.HistoryDays)
	if histErr != nil {
		log.Warn().Err(histErr).Msg("History backfill failed")
		payload := BackfillPayload{Symbol: target.Symbol, Days: s.cfg.HistoryDays}
		if s.deferIfRetryable(ctx, histErr, queue.KindBackfillHistory, payload) {
			deferred = true
		}
	}

	if snapErr != nil {
		return deferred, snapErr
	}
	return deferred, histErr
}

// RunSnapshotSync refreshes snapshots for targets whose market is open.
// Unless forced, a run where every market is closed is skipped without listing targets.
func (s *SyncService) RunSnapshotSync(ctx context.Context, force bool) (SnapshotSyncResult, error) {
	var result SnapshotSyncResult

	if !force && !s.deps.Gate.IsAnyOpen(ctx) {
		s.log.Info().Msg("All markets closed, skipping snapshot sync")
		return SnapshotSyncResult{Skipped: true, Reason: ReasonAllMarketsClosed}, nil
	}

	targets, err := s.deps.Catalog.ListTracked(ctx)
	if err != nil {
		return result, err
	}
	result.Total = len(targets)

	fetched := 0
	for _, target := range targets {
		if !force && !s.deps.Gate.IsOpen(ctx, target.Symbol, target.Exchange) {
			result.SkippedMarketClosed++
			continue
		}

		if fetched > 0 {
			if err := s.deps.Sleep(ctx, s.cfg.SnapshotSyncDelay); err != nil {
				return result, err
			}
		}
		fetched++

		if err := s.fetchAndStoreSnapshot(ctx, target.Symbol); err != nil {
			result.Failed++
			s.log.Warn().Err(err).Str("symbol", target.Symbol).Msg("Snapshot sync failed")
			if s.deferIfRetryable(ctx, err, queue.KindSyncSnapshot, SymbolPayload{Symbol: target.Symbol}) {
				result.Deferred++
			}
			continue
		}
		result.Success++
	}

	s.log.Info().
		Bool("force", force).
		Int("total", result.Total).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Int("skipped_market_closed", result.SkippedMarketClosed).
		Msg("Snapshot sync finished")
	return result, nil
}

// IsStale reports whether an analysis finished at last is due again at now.
// The boundary is inclusive; no analysis at all is stale.
func IsStale(last time.Time, ok bool, now time.Time, window time.Duration) bool {
	if !ok {
		return true
	}
	return now.Sub(last) >= window
}

// RunRiskScan creates and processes a risk ticket inline for every target whose
// latest analysis is stale. Per-target failures never abort the scan.
func (s *SyncService) RunRiskScan(ctx context.Context) (RiskScanResult, error) {
	var result RiskScanResult

	targets, err := s.deps.Catalog.ListTracked(ctx)
	if err != nil {
		return result, err
	}
	result.Total = len(targets)

	processed := 0
	for _, target := range targets {
		log := s.log.With().Str("symbol", target.Symbol).Logger()

		last, ok, err := s.deps.Tickets.LatestCompletedAt(ctx, target.Symbol)
		if err != nil {
			log.Error().Err(err).Msg("Failed to look up latest analysis")
			result.Failed++
			continue
		}
		if !IsStale(last, ok, s.deps.Clock.Now(), s.cfg.StalenessWindow) {
			result.Skipped++
			continue
		}

		if processed > 0 {
			if err := s.deps.Sleep(ctx, s.cfg.RiskScanDelay); err != nil {
				return result, err
			}
		}
		processed++

		reason := "no previous analysis"
		if ok {
			reason = "analysis from " + last.Format(time.RFC3339) + " is stale"
		}
		ticket, err := s.deps.Tickets.Create(ctx, target.Symbol, research.RiskScanRequest{
			Symbol:   target.Symbol,
			Exchange: target.Exchange,
			Reason:   reason,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create risk ticket")
			result.Failed++
			continue
		}

		if _, err := s.deps.Processor.Process(ctx, ticket.ID); err != nil {
			log.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("Risk analysis failed")
			result.Failed++
			continue
		}
		result.Processed++
	}

	s.log.Info().
		Int("total", result.Total).
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Risk scan finished")
	return result, nil
}

func (s *SyncService) fetchAndStoreSnapshot(ctx context.Context, symbol string) error {
	snap, err := s.deps.MarketData.FetchSnapshot(ctx, symbol)
	if err != nil {
		return err
	}
	return s.deps.Store.SaveSnapshot(ctx, snap)
}

func (s *SyncService) fetchAndStoreHistory(ctx context.Context, symbol string, days int) error {
	candles, err := s.deps.MarketData.FetchHistory(ctx, symbol, days)
	if err != nil {
		return err
	}
	_, err = s.deps.Store.SaveCandles(ctx, symbol, candles)
	return err
}

// deferIfRetryable queues kind for a rate-limited or transient failure
func (s *SyncService) deferIfRetryable(ctx context.Context, err error, kind queue.Kind, payload any) bool {
	if !domain.IsRetryable(err) || s.deps.Queue == nil {
		return false
	}
	item, qerr := s.deps.Queue.Enqueue(ctx, kind, payload)
	if qerr != nil {
		s.log.Error().Err(qerr).Str("kind", string(kind)).Msg("Failed to queue retry")
		return false
	}
	s.log.Info().Str("item_id", item.ID).Str("kind", string(kind)).Msg("Deferred to request queue")
	return true
}
