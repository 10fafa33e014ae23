// Package reliability exports an audit trail of finished background work to object storage.
package reliability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/research"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/queue"
)

// ArchiveWindow is how far back each export looks
const ArchiveWindow = 24 * time.Hour

// Uploader stores an object under key
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
}

// QueueSource lists finished queue items
type QueueSource interface {
	ListTerminalSince(ctx context.Context, since time.Time) ([]*queue.Item, error)
}

// TicketSource lists finished tickets
type TicketSource interface {
	ListTerminalSince(ctx context.Context, since time.Time) ([]*research.Ticket, error)
}

// ExportResult reports what one export wrote
type ExportResult struct {
	Skipped    bool     `json:"skipped,omitempty"`
	QueueItems int      `json:"queue_items"`
	Tickets    int      `json:"tickets"`
	Keys       []string `json:"keys,omitempty"`
}

// ArchiveService writes terminal queue items and tickets as NDJSON. Rows are never deleted.
type ArchiveService struct {
	uploader Uploader
	queue    QueueSource
	tickets  TicketSource
	prefix   string
	clock    clock.Clock
	log      zerolog.Logger
}

// NewArchiveService creates the service. A nil uploader makes Export a no-op.
func NewArchiveService(uploader Uploader, queueSrc QueueSource, tickets TicketSource, prefix string, clk clock.Clock, log zerolog.Logger) *ArchiveService {
	if clk == nil {
		clk = clock.System{}
	}
	return &ArchiveService{
		uploader: uploader,
		queue:    queueSrc,
		tickets:  tickets,
		prefix:   prefix,
		clock:    clk,
		log:      log.With().Str("service", "archive").Logger(),
	}
}

// Export uploads the last ArchiveWindow of finished work, one object per source
func (s *ArchiveService) Export(ctx context.Context) (ExportResult, error) {
	var result ExportResult
	if s.uploader == nil {
		s.log.Debug().Msg("Archive not configured, skipping export")
		result.Skipped = true
		return result, nil
	}

	now := s.clock.Now()
	since := now.Add(-ArchiveWindow)
	stamp := now.Format("2006-01-02-150405")

	items, err := s.queue.ListTerminalSince(ctx, since)
	if err != nil {
		return result, fmt.Errorf("list queue items: %w", err)
	}
	if len(items) > 0 {
		key := s.key("queue-items", stamp)
		if err := upload(ctx, s.uploader, key, items); err != nil {
			return result, err
		}
		result.QueueItems = len(items)
		result.Keys = append(result.Keys, key)
	}

	tickets, err := s.tickets.ListTerminalSince(ctx, since)
	if err != nil {
		return result, fmt.Errorf("list tickets: %w", err)
	}
	if len(tickets) > 0 {
		key := s.key("tickets", stamp)
		if err := upload(ctx, s.uploader, key, tickets); err != nil {
			return result, err
		}
		result.Tickets = len(tickets)
		result.Keys = append(result.Keys, key)
	}

	s.log.Info().
		Int("queue_items", result.QueueItems).
		Int("tickets", result.Tickets).
		Msg("Audit export completed")
	return result, nil
}

func (s *ArchiveService) key(kind, stamp string) string {
	return path.Join(s.prefix, kind, fmt.Sprintf("%s-%s.ndjson", kind, stamp))
}

func upload[T any](ctx context.Context, u Uploader, key string, rows []T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
	}
	return u.Upload(ctx, key, &buf, "application/x-ndjson")
}
