// Package finnhub is a thin Finnhub REST client: quotes, daily candles and exchange
// market status, with responses mapped onto the gateway error taxonomy.
package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/gateway"
)

const (
	// DefaultBaseURL is the Finnhub v1 API root
	DefaultBaseURL = "https://finnhub.io/api/v1"
	defaultTimeout = 15 * time.Second
)

// Client talks to the Finnhub REST API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger
}

// NewClient creates a Finnhub client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.With().Str("client", "finnhub").Logger(),
	}
}

// quoteResponse is /quote
type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// candleResponse is /stock/candle, parallel arrays
type candleResponse struct {
	Status string    `json:"s"`
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Time   []int64   `json:"t"`
	Volume []float64 `json:"v"`
}

// MarketStatus is /stock/market-status
type MarketStatus struct {
	Exchange string  `json:"exchange"`
	Holiday  *string `json:"holiday"`
	IsOpen   bool    `json:"isOpen"`
	Session  *string `json:"session"` // "pre-market", "regular", "post-market" or null
	Timezone string  `json:"timezone"`
	T        int64   `json:"t"`
}

// FetchSnapshot returns the latest quote for symbol
func (c *Client) FetchSnapshot(ctx context.Context, symbol string) (*domain.Snapshot, error) {
	op := "finnhub quote " + symbol

	var q quoteResponse
	if err := c.get(ctx, op, "/quote", url.Values{"symbol": {symbol}}, &q); err != nil {
		return nil, err
	}

	// Finnhub answers unknown symbols with an all-zero quote
	if q.Current == 0 && q.Timestamp == 0 {
		return nil, domain.NewPermanentError(op, domain.ErrNotFound)
	}

	return &domain.Snapshot{
		FetchedAt:     c.now(),
		Symbol:        symbol,
		Price:         q.Current,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		High:          q.High,
		Low:           q.Low,
		Open:          q.Open,
		PreviousClose: q.PreviousClose,
		Timestamp:     q.Timestamp,
	}, nil
}

// FetchHistory returns up to days of daily candles, oldest first
func (c *Client) FetchHistory(ctx context.Context, symbol string, days int) ([]domain.Candle, error) {
	op := "finnhub candles " + symbol
	if days <= 0 {
		days = 365
	}

	to := c.now()
	from := to.AddDate(0, 0, -days)
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {fmt.Sprint(from.Unix())},
		"to":         {fmt.Sprint(to.Unix())},
	}

	var r candleResponse
	if err := c.get(ctx, op, "/stock/candle", params, &r); err != nil {
		return nil, err
	}

	if r.Status == "no_data" {
		return nil, domain.NewPermanentError(op, domain.ErrNotFound)
	}
	if r.Status != "ok" {
		return nil, domain.NewTransientError(op, fmt.Errorf("unexpected status %q", r.Status))
	}

	n := len(r.Time)
	if len(r.Open) != n || len(r.High) != n || len(r.Low) != n || len(r.Close) != n || len(r.Volume) != n {
		return nil, domain.NewTransientError(op, errors.New("candle arrays have mismatched lengths"))
	}

	candles := make([]domain.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = domain.Candle{
			Time:   r.Time[i],
			Open:   r.Open[i],
			High:   r.High[i],
			Low:    r.Low[i],
			Close:  r.Close[i],
			Volume: r.Volume[i],
		}
	}
	return candles, nil
}

// MarketStatus returns the live status of an exchange ("US", "L", "DE", ...).
// Non-US exchanges are restricted on most plans and come back as permanent errors.
func (c *Client) MarketStatus(ctx context.Context, exchange string) (*MarketStatus, error) {
	op := "finnhub market status " + exchange

	var status MarketStatus
	if err := c.get(ctx, op, "/stock/market-status", url.Values{"exchange": {exchange}}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	if c.apiKey == "" {
		return domain.NewPermanentError(op, fmt.Errorf("api key not configured: %w", domain.ErrRestricted))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return domain.NewPermanentError(op, err)
	}
	req.Header.Set("X-Finnhub-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gateway.ClassifyTransport(ctx, op, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Finnhub request")

	if err := gateway.CheckResponse(op, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewTransientError(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
