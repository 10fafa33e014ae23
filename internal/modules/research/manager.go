package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

// Store is the persistence used by the Manager
type Store interface {
	Insert(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, id string) (*Ticket, error)
	Transition(ctx context.Context, id string, from, to Status, result []byte, errMsg string, now time.Time) (bool, error)
	ListStuck(ctx context.Context, cutoff time.Time) ([]*Ticket, error)
	FailIfStuck(ctx context.Context, id string, cutoff time.Time, errMsg string, now time.Time) (bool, error)
	LatestCompletedAt(ctx context.Context, subject string) (time.Time, bool, error)
	List(ctx context.Context, status Status, limit int) ([]*Ticket, error)
	ListTerminalSince(ctx context.Context, since time.Time) ([]*Ticket, error)
	Stats(ctx context.Context) (Stats, error)
}

// Manager owns every ticket state transition
type Manager struct {
	store Store
	clock clock.Clock
	log   zerolog.Logger
}

// NewManager creates a ticket lifecycle manager
func NewManager(store Store, clk clock.Clock, log zerolog.Logger) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	return &Manager{
		store: store,
		clock: clk,
		log:   log.With().Str("component", "ticket_manager").Logger(),
	}
}

// Create persists a pending ticket. Storage failures are returned.
func (m *Manager) Create(ctx context.Context, subject string, payload any) (*Ticket, error) {
	raw, err := encodeJSON(payload)
	if err != nil {
		return nil, domain.NewPermanentError("create ticket", err)
	}

	now := m.clock.Now()
	t := &Ticket{
		ID:        uuid.NewString(),
		Subject:   subject,
		Status:    StatusPending,
		Payload:   raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Insert(ctx, t); err != nil {
		return nil, err
	}

	m.log.Info().Str("ticket_id", t.ID).Str("subject", subject).Msg("Research ticket created")
	return t, nil
}

// Claim moves a pending ticket to processing
func (m *Manager) Claim(ctx context.Context, id string) (*Ticket, error) {
	return m.transition(ctx, id, StatusPending, StatusProcessing, nil, "")
}

// Complete moves a processing ticket to completed with result
func (m *Manager) Complete(ctx context.Context, id string, result any) (*Ticket, error) {
	raw, err := encodeJSON(result)
	if err != nil {
		return nil, domain.NewPermanentError("complete ticket", err)
	}
	return m.transition(ctx, id, StatusProcessing, StatusCompleted, raw, "")
}

// Fail moves a processing ticket to failed with a message
func (m *Manager) Fail(ctx context.Context, id string, message string) (*Ticket, error) {
	if message == "" {
		message = "failed"
	}
	return m.transition(ctx, id, StatusProcessing, StatusFailed, nil, message)
}

func (m *Manager) transition(ctx context.Context, id string, from, to Status, result []byte, errMsg string) (*Ticket, error) {
	ok, err := m.store.Transition(ctx, id, from, to, result, errMsg, m.clock.Now())
	if err != nil {
		return nil, err
	}

	if !ok {
		current, err := m.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s -> %s, ticket %s is %s", ErrInvalidTransition, from, to, id, current.Status)
	}

	t, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	m.log.Debug().Str("ticket_id", id).Str("status", string(to)).Msg("Ticket transitioned")
	return t, nil
}

// ReapStuck fails every non-terminal ticket not updated within timeout and returns
// how many it reaped. It never returns an error: a scan failure is logged and counts as 0.
func (m *Manager) ReapStuck(ctx context.Context, timeout time.Duration) int {
	if timeout <= 0 {
		timeout = DefaultReapTimeout
	}
	now := m.clock.Now()
	cutoff := now.Add(-timeout)

	stuck, err := m.store.ListStuck(ctx, cutoff)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to scan for stuck tickets")
		return 0
	}

	reaped := 0
	for _, t := range stuck {
		ok, err := m.store.FailIfStuck(ctx, t.ID, cutoff, ReapTimeoutMessage, now)
		if err != nil {
			m.log.Error().Err(err).Str("ticket_id", t.ID).Msg("Failed to reap ticket")
			continue
		}
		if !ok {
			// Finished or touched since the scan
			continue
		}
		m.log.Warn().
			Str("ticket_id", t.ID).
			Str("subject", t.Subject).
			Str("was", string(t.Status)).
			Time("updated_at", t.UpdatedAt).
			Msg("Reaped stuck research ticket")
		reaped++
	}

	if reaped > 0 {
		m.log.Info().Int("reaped", reaped).Dur("timeout", timeout).Msg("Ticket reaper finished")
	}
	return reaped
}

// Get returns one ticket
func (m *Manager) Get(ctx context.Context, id string) (*Ticket, error) {
	return m.store.Get(ctx, id)
}

// List returns tickets filtered by status (empty = all)
func (m *Manager) List(ctx context.Context, status Status, limit int) ([]*Ticket, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return m.store.List(ctx, status, limit)
}

// LatestCompletedAt returns when subject was last analyzed successfully
func (m *Manager) LatestCompletedAt(ctx context.Context, subject string) (time.Time, bool, error) {
	return m.store.LatestCompletedAt(ctx, subject)
}

// ListTerminalSince returns tickets that finished at or after since
func (m *Manager) ListTerminalSince(ctx context.Context, since time.Time) ([]*Ticket, error) {
	return m.store.ListTerminalSince(ctx, since)
}

// Stats counts tickets per status
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	return m.store.Stats(ctx)
}

func encodeJSON(v any) (json.RawMessage, error) {
	switch p := v.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, errors.New("payload is not valid JSON")
		}
		return p, nil
	case []byte:
		if !json.Valid(p) {
			return nil, errors.New("payload is not valid JSON")
		}
		return json.RawMessage(p), nil
	default:
		return json.Marshal(p)
	}
}
