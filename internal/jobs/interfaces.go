package jobs

import (
	"context"
	"time"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/research"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/queue"
)

// MarketGateInterface is the calendar gate as seen by the sync jobs
type MarketGateInterface interface {
	IsOpen(ctx context.Context, symbol, exchange string) bool
	IsAnyOpen(ctx context.Context) bool
}

// EnqueuerInterface defers retryable work to the request queue
type EnqueuerInterface interface {
	Enqueue(ctx context.Context, kind queue.Kind, payload any) (*queue.Item, error)
}

// MarketDataStoreInterface persists sync results
type MarketDataStoreInterface interface {
	SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error
	SaveCandles(ctx context.Context, symbol string, candles []domain.Candle) (int, error)
}

// CatalogWriterInterface adds instruments to the catalog
type CatalogWriterInterface interface {
	Upsert(ctx context.Context, target domain.SyncTarget) error
}

// TicketServiceInterface is the part of the ticket manager the risk scan uses
type TicketServiceInterface interface {
	Create(ctx context.Context, subject string, payload any) (*research.Ticket, error)
	LatestCompletedAt(ctx context.Context, subject string) (time.Time, bool, error)
}

// TicketProcessorInterface runs a ticket to completion
type TicketProcessorInterface interface {
	Process(ctx context.Context, ticketID string) (*research.Ticket, error)
}
