// Package di wires the service: databases, clients, the calendar gate, the queue,
// the ticket manager, sync jobs, and the scheduler.
package di

import (
	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clients/finnhub"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clients/marketstatus"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/database"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/gateway"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/jobs"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/catalog"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/market_hours"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/marketdata"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/research"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/queue"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/reliability"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/scheduler"
)

// Container holds every long-lived dependency
type Container struct {
	Clock clock.Clock

	// Databases
	CoreDB    *database.DB // catalog, request queue, research tickets
	HistoryDB *database.DB // snapshots and candle history

	// Repositories
	CatalogRepo    *catalog.Repository
	MarketDataRepo *marketdata.Repository
	QueueRepo      *queue.Repository
	TicketRepo     *research.Repository

	// Clients
	FinnhubClient *finnhub.Client
	StatusStream  *marketstatus.Client // nil when no stream URL is configured
	Analyzer      *gateway.AnalyzerChain

	// Services
	MarketGate      *market_hours.Gate
	QueueRegistry   *queue.Registry
	QueueManager    *queue.Manager
	TicketManager   *research.Manager
	TicketProcessor *research.Processor
	SyncService     *jobs.SyncService
	ArchiveService  *reliability.ArchiveService
	Scheduler       *scheduler.Scheduler

	log zerolog.Logger
}

// Close releases clients and databases
func (c *Container) Close() {
	if c.StatusStream != nil {
		_ = c.StatusStream.Stop()
	}
	for _, db := range []*database.DB{c.CoreDB, c.HistoryDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			c.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to close database")
		}
	}
}
