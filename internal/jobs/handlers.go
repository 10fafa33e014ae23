package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/queue"
)

// SymbolPayload is the payload of sync_snapshot items
type SymbolPayload struct {
	Symbol string `json:"symbol"`
}

// BackfillPayload is the payload of backfill_history items
type BackfillPayload struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days,omitempty"`
}

// AddInstrumentPayload is the payload of add_instrument items
type AddInstrumentPayload struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange,omitempty"`
	Name     string `json:"name,omitempty"`
}

// HandlerDeps contains the collaborators of the queue handlers
type HandlerDeps struct {
	MarketData  domain.MarketDataProvider
	Store       MarketDataStoreInterface
	Catalog     CatalogWriterInterface
	HistoryDays int
}

// RegisterQueueHandlers binds every queue kind to its handler
func RegisterQueueHandlers(registry *queue.Registry, deps *HandlerDeps) {
	// add_instrument: validate the symbol with a live quote, then track it
	registry.Register(queue.KindAddInstrument, queue.HandlerFunc(func(ctx context.Context, raw json.RawMessage) error {
		var p AddInstrumentPayload
		if err := decodePayload(raw, &p); err != nil {
			return err
		}

		snap, err := deps.MarketData.FetchSnapshot(ctx, p.Symbol)
		if err != nil {
			return fmt.Errorf("validate %s: %w", p.Symbol, err)
		}
		if err := deps.Catalog.Upsert(ctx, domain.SyncTarget{Symbol: p.Symbol, Exchange: p.Exchange, Name: p.Name}); err != nil {
			return err
		}
		return deps.Store.SaveSnapshot(ctx, snap)
	}))

	// sync_snapshot: refresh one snapshot
	registry.Register(queue.KindSyncSnapshot, queue.HandlerFunc(func(ctx context.Context, raw json.RawMessage) error {
		var p SymbolPayload
		if err := decodePayload(raw, &p); err != nil {
			return err
		}

		snap, err := deps.MarketData.FetchSnapshot(ctx, p.Symbol)
		if err != nil {
			return err
		}
		return deps.Store.SaveSnapshot(ctx, snap)
	}))

	// backfill_history: fetch and merge daily candles
	registry.Register(queue.KindBackfillHistory, queue.HandlerFunc(func(ctx context.Context, raw json.RawMessage) error {
		var p BackfillPayload
		if err := decodePayload(raw, &p); err != nil {
			return err
		}
		days := p.Days
		if days <= 0 {
			days = deps.HistoryDays
		}

		candles, err := deps.MarketData.FetchHistory(ctx, p.Symbol, days)
		if err != nil {
			return err
		}
		_, err = deps.Store.SaveCandles(ctx, p.Symbol, candles)
		return err
	}))
}

type symbolPayload interface {
	symbol() string
	normalize()
}

func (p *SymbolPayload) symbol() string        { return p.Symbol }
func (p *SymbolPayload) normalize()            { p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol)) }
func (p *BackfillPayload) symbol() string      { return p.Symbol }
func (p *BackfillPayload) normalize()          { p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol)) }
func (p *AddInstrumentPayload) symbol() string { return p.Symbol }
func (p *AddInstrumentPayload) normalize()     { p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol)) }

// decodePayload rejects malformed payloads permanently; a retry cannot fix them
func decodePayload(raw json.RawMessage, into symbolPayload) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return domain.NewPermanentError("decode payload", err)
	}
	into.normalize()
	if into.symbol() == "" {
		return domain.NewPermanentError("decode payload", errors.New("symbol is required"))
	}
	return nil
}
