package market_hours

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clients/finnhub"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clients/marketstatus"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// ErrNoLiveData is returned by a source that has nothing to say about a region
var ErrNoLiveData = errors.New("no live market data")

// ChainSource asks each source in order and returns the first answer
type ChainSource struct {
	sources []LiveSource
}

// NewChainSource skips nil sources
func NewChainSource(sources ...LiveSource) *ChainSource {
	c := &ChainSource{}
	for _, s := range sources {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

func (c *ChainSource) Name() string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *ChainSource) MarketStatus(ctx context.Context, region domain.Region) (LiveStatus, error) {
	if len(c.sources) == 0 {
		return LiveStatus{}, ErrNoLiveData
	}

	var errs []error
	for _, s := range c.sources {
		status, err := s.MarketStatus(ctx, region)
		if err == nil {
			return status, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return LiveStatus{}, errors.Join(errs...)
}

// finnhubStatusAPI is the part of the Finnhub client the gate needs
type finnhubStatusAPI interface {
	MarketStatus(ctx context.Context, exchange string) (*finnhub.MarketStatus, error)
}

// FinnhubSource reads /stock/market-status
type FinnhubSource struct {
	api finnhubStatusAPI
}

func NewFinnhubSource(api finnhubStatusAPI) *FinnhubSource {
	return &FinnhubSource{api: api}
}

func (s *FinnhubSource) Name() string { return "finnhub" }

func (s *FinnhubSource) MarketStatus(ctx context.Context, region domain.Region) (LiveStatus, error) {
	var exchange string
	switch region {
	case domain.RegionUS:
		exchange = "US"
	case domain.RegionEU:
		exchange = "DE"
	default:
		return LiveStatus{}, fmt.Errorf("region %s: %w", region, ErrNoLiveData)
	}

	status, err := s.api.MarketStatus(ctx, exchange)
	if err != nil {
		return LiveStatus{}, err
	}
	if status.Holiday != nil && *status.Holiday != "" {
		return LiveStatus{Session: SessionClosed, IsOpen: false}, nil
	}

	session := SessionClosed
	if status.Session != nil {
		switch *status.Session {
		case "pre-market":
			session = SessionPre
		case "regular":
			session = SessionRegular
		case "post-market":
			session = SessionPost
		}
	}
	if status.IsOpen && session == SessionClosed {
		session = SessionRegular
	}
	session = regionSession(region, session)
	return LiveStatus{Session: session, IsOpen: session.IsOpen()}, nil
}

// streamCache is the read side of the websocket status stream
type streamCache interface {
	Status(code string) (marketstatus.ExchangeStatus, bool)
	IsStale() bool
}

// regionExchangeCodes are the MICs consulted per region, primary venue first
var regionExchangeCodes = map[domain.Region][]string{
	domain.RegionUS: {"XNYS", "XNAS"},
	domain.RegionEU: {"XETR", "XPAR", "XLON", "XAMS", "XMIL"},
}

// StreamSource answers from the websocket status cache
type StreamSource struct {
	cache streamCache
}

func NewStreamSource(cache streamCache) *StreamSource {
	return &StreamSource{cache: cache}
}

func (s *StreamSource) Name() string { return "stream" }

// MarketStatus reports the region open if any of its venues is trading.
// A stale cache is an error so the chain moves on.
func (s *StreamSource) MarketStatus(_ context.Context, region domain.Region) (LiveStatus, error) {
	if s.cache.IsStale() {
		return LiveStatus{}, fmt.Errorf("stream cache stale: %w", ErrNoLiveData)
	}

	codes, ok := regionExchangeCodes[region]
	if !ok {
		return LiveStatus{}, fmt.Errorf("region %s: %w", region, ErrNoLiveData)
	}

	found := false
	best := SessionClosed
	for _, code := range codes {
		m, ok := s.cache.Status(code)
		if !ok {
			continue
		}
		found = true
		session := regionSession(region, streamSession(m.Status))
		if sessionRank(session) > sessionRank(best) {
			best = session
		}
	}
	if !found {
		return LiveStatus{}, fmt.Errorf("region %s not in stream cache: %w", region, ErrNoLiveData)
	}
	return LiveStatus{Session: best, IsOpen: best.IsOpen()}, nil
}

func streamSession(status string) Session {
	switch status {
	case marketstatus.StatusOpen:
		return SessionRegular
	case marketstatus.StatusPreOpen:
		return SessionPre
	case marketstatus.StatusPostClose:
		return SessionPost
	default:
		return SessionClosed
	}
}

// regionSession drops extended hours outside the US, matching the calendar
func regionSession(region domain.Region, s Session) Session {
	if region != domain.RegionUS && (s == SessionPre || s == SessionPost) {
		return SessionClosed
	}
	return s
}

// sessionRank orders sessions so regular beats extended hours
func sessionRank(s Session) int {
	switch s {
	case SessionRegular:
		return 3
	case SessionPre, SessionPost:
		return 2
	default:
		return 0
	}
}
