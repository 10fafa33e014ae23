package market_hours

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// DefaultLiveTimeout bounds a single live status lookup
const DefaultLiveTimeout = 5 * time.Second

// LiveStatus is an authoritative answer from a live provider
type LiveStatus struct {
	Session Session
	IsOpen  bool
}

// LiveSource reports the current status of a region from an external provider
type LiveSource interface {
	Name() string
	MarketStatus(ctx context.Context, region domain.Region) (LiveStatus, error)
}

// Gate answers whether a market is open. It never returns an error: any live
// source failure falls back to the trading calendar.
type Gate struct {
	live        LiveSource
	cache       *StatusCache
	clock       clock.Clock
	group       singleflight.Group
	liveTimeout time.Duration
	log         zerolog.Logger
}

// NewGate creates a calendar gate. live may be nil, in which case every answer is a fallback.
func NewGate(live LiveSource, cache *StatusCache, clk clock.Clock, liveTimeout time.Duration, log zerolog.Logger) *Gate {
	if clk == nil {
		clk = clock.System{}
	}
	if cache == nil {
		cache = NewStatusCache(DefaultCacheTTL, clk)
	}
	if liveTimeout <= 0 {
		liveTimeout = DefaultLiveTimeout
	}
	return &Gate{
		live:        live,
		cache:       cache,
		clock:       clk,
		liveTimeout: liveTimeout,
		log:         log.With().Str("component", "market_gate").Logger(),
	}
}

// Status returns the market status for a symbol or region name.
// Concurrent lookups that resolve to the same region share one upstream call.
func (g *Gate) Status(ctx context.Context, symbolOrRegion, exchangeHint string) MarketStatus {
	region := ResolveRegion(symbolOrRegion, exchangeHint)
	key := "region:" + string(region)

	if status, ok := g.cache.Get(key); ok {
		return status
	}

	v, _, _ := g.group.Do(key, func() (interface{}, error) {
		// A caller that lost the race to a just-finished flight sees the fresh entry
		if status, ok := g.cache.Get(key); ok {
			return status, nil
		}
		status := g.lookup(ctx, region)
		g.cache.Set(key, status)
		return status, nil
	})

	return v.(MarketStatus)
}

// IsOpen reports whether the market for symbol is in any trading session
func (g *Gate) IsOpen(ctx context.Context, symbol, exchange string) bool {
	return g.Status(ctx, symbol, exchange).IsOpen
}

// Regions returns the status of every modeled region
func (g *Gate) Regions(ctx context.Context) []MarketStatus {
	return []MarketStatus{
		g.Status(ctx, string(domain.RegionUS), ""),
		g.Status(ctx, string(domain.RegionEU), ""),
	}
}

// IsAnyOpen reports whether any modeled region is open. OTHER shares the EU calendar.
func (g *Gate) IsAnyOpen(ctx context.Context) bool {
	for _, status := range g.Regions(ctx) {
		if status.IsOpen {
			return true
		}
	}
	return false
}

func (g *Gate) lookup(ctx context.Context, region domain.Region) MarketStatus {
	now := g.clock.Now()

	if g.live == nil {
		return FallbackStatus(region, now)
	}

	// The flight may outlive the caller that started it
	liveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.liveTimeout)
	defer cancel()

	live, err := g.live.MarketStatus(liveCtx, region)
	if err != nil {
		status := FallbackStatus(region, now)
		g.log.Warn().Err(err).
			Str("region", string(region)).
			Str("source", g.live.Name()).
			Str("fallback_session", string(status.Session)).
			Msg("Live market status unavailable, using trading calendar")
		return status
	}

	session := live.Session
	if session == "" {
		session = SessionClosed
		if live.IsOpen {
			session = SessionRegular
		}
	}

	return MarketStatus{
		CheckedAt: now,
		Region:    region,
		Session:   session,
		Source:    g.live.Name(),
		IsOpen:    live.IsOpen,
		Fallback:  false,
	}
}
