// Package marketstatus keeps a live cache of exchange statuses pushed over a websocket feed.
package marketstatus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay = 5 * time.Second
	maxReconnectDelay  = 5 * time.Minute

	// CacheStaleThreshold is how long a cache without updates is still trusted
	CacheStaleThreshold = 5 * time.Minute
)

// Client subscribes to the "markets" channel and caches the latest status per exchange
type Client struct {
	url        string
	httpClient *http.Client
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	log zerolog.Logger
	now func() time.Time

	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool

	cache      map[string]ExchangeStatus
	lastUpdate time.Time
	cacheMu    sync.RWMutex
}

// newHTTP1Client forces HTTP/1.1; the websocket upgrade fails when ALPN picks h2.
func newHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:   &tls.Config{NextProtos: []string{"http/1.1"}},
			ForceAttemptHTTP2: false,
		},
	}
}

// NewClient creates a client for the given websocket URL. Nothing connects until Start.
func NewClient(url string, log zerolog.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: newHTTP1Client(),
		log:        log.With().Str("component", "market_status_stream").Logger(),
		now:        time.Now,
		cache:      make(map[string]ExchangeStatus),
		stopChan:   make(chan struct{}),
	}
}

// Start connects and launches the read loop. A failed first connection is
// returned but retried in the background.
func (c *Client) Start() error {
	c.log.Info().Str("url", c.url).Msg("Starting market status stream")

	if err := c.connect(); err != nil {
		c.log.Warn().Err(err).Msg("Initial connection failed, retrying in background")
		go c.reconnectLoop()
		return err
	}

	c.mu.RLock()
	ctx := c.connCtx
	c.mu.RUnlock()
	go c.readMessages(ctx)
	return nil
}

// Stop closes the connection and ends any reconnect loop. Safe to call twice.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	close(c.stopChan)
	return c.disconnect()
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{HTTPClient: c.httpClient})
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	if err := subscribe(connCtx, conn); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		return fmt.Errorf("failed to subscribe to markets: %w", err)
	}

	c.conn = conn
	c.connCtx = connCtx
	c.cancelFunc = connCancel
	c.connected = true

	c.log.Info().Msg("Connected to market status stream")
	return nil
}

func (c *Client) disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close(websocket.StatusNormalClosure, "")
	if c.cancelFunc != nil {
		c.cancelFunc()
		c.cancelFunc = nil
	}
	c.conn = nil
	c.connCtx = nil
	c.connected = false

	if err != nil {
		c.log.Debug().Err(err).Msg("Websocket close was not clean")
	}
	return nil
}

func subscribe(ctx context.Context, conn *websocket.Conn) error {
	data, err := json.Marshal([]string{"markets"})
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (c *Client) readMessages(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		stopped := c.stopped
		c.mu.Unlock()
		if !stopped {
			go c.reconnectLoop()
		}
	}()

	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil || ctx == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				c.log.Info().Int("status", int(status)).Msg("Stream closed")
			case ctx.Err() != nil:
				c.log.Debug().Msg("Read cancelled")
			default:
				c.log.Error().Err(err).Msg("Unexpected stream read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		if err := c.handleMessage(message); err != nil {
			c.log.Error().Err(err).Msg("Failed to handle stream message")
		}
	}
}

// handleMessage applies one ["channel", payload] frame to the cache
func (c *Client) handleMessage(message []byte) error {
	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return fmt.Errorf("failed to parse frame: %w", err)
	}
	if len(frame) < 2 {
		return fmt.Errorf("frame too short: %d elements", len(frame))
	}

	var channel string
	if err := json.Unmarshal(frame[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}
	if channel != "markets" {
		return nil
	}

	var data wsMarketData
	if err := json.Unmarshal(frame[1], &data); err != nil {
		return fmt.Errorf("failed to parse market data: %w", err)
	}
	if len(data.Markets) == 0 {
		return nil
	}

	now := c.now()
	markets, errs := transformMarkets(data.Markets, now)
	for _, err := range errs {
		c.log.Warn().Err(err).Msg("Dropped market entry")
	}

	c.cacheMu.Lock()
	for code, m := range markets {
		c.cache[code] = m
	}
	c.lastUpdate = now
	c.cacheMu.Unlock()

	c.log.Debug().Int("market_count", len(markets)).Msg("Market status cache updated")
	return nil
}

func (c *Client) reconnectLoop() {
	c.mu.Lock()
	if c.reconnecting || c.stopped {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	for attempt := 1; ; attempt++ {
		delay := reconnectDelay(attempt)
		c.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("Reconnecting to market status stream")

		select {
		case <-time.After(delay):
		case <-c.stopChan:
			return
		}

		if err := c.connect(); err != nil {
			c.log.Error().Err(err).Int("attempt", attempt).Msg("Reconnection failed")
			continue
		}

		c.mu.RLock()
		ctx := c.connCtx
		c.mu.RUnlock()
		go c.readMessages(ctx)
		return
	}
}

func reconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := baseReconnectDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return delay
}

// Status returns the cached status for an exchange code
func (c *Client) Status(code string) (ExchangeStatus, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	m, ok := c.cache[code]
	return m, ok
}

// IsStale reports whether the cache is empty or older than CacheStaleThreshold
func (c *Client) IsStale() bool {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	if c.lastUpdate.IsZero() {
		return true
	}
	return c.now().Sub(c.lastUpdate) > CacheStaleThreshold
}

// IsConnected reports the current connection state
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
