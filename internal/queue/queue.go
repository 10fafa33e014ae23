package queue

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

// ErrNoHandler is recorded on items whose kind has no registered handler
var ErrNoHandler = errors.New("no handler registered for kind")

// Store is the persistence used by the Manager
type Store interface {
	Insert(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Item, error)
	List(ctx context.Context, status Status, limit int) ([]*Item, error)
	MarkProcessing(ctx context.Context, id string, now time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id string, now time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string, now time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error
	Stats(ctx context.Context) (Stats, error)
}

// Manager enqueues items and drains due ones through the handler registry
type Manager struct {
	store    Store
	registry *Registry
	policy   Policy
	clock    clock.Clock
	log      zerolog.Logger
}

// NewManager creates a queue manager. Zero policy fields take the defaults.
func NewManager(store Store, registry *Registry, policy Policy, clk clock.Clock, log zerolog.Logger) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	return &Manager{
		store:    store,
		registry: registry,
		policy:   policy.withDefaults(),
		clock:    clk,
		log:      log.With().Str("component", "request_queue").Logger(),
	}
}

// Policy returns the effective retry policy
func (m *Manager) Policy() Policy {
	return m.policy
}

// Enqueue persists a new pending item due immediately.
// payload may be a json.RawMessage, []byte holding JSON, or any JSON-marshalable value.
func (m *Manager) Enqueue(ctx context.Context, kind Kind, payload any) (*Item, error) {
	if kind == "" {
		return nil, domain.NewPermanentError("enqueue", errors.New("kind is required"))
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return nil, domain.NewPermanentError("enqueue "+string(kind), err)
	}

	now := m.clock.Now()
	item := &Item{
		ID:            uuid.NewString(),
		Kind:          kind,
		Payload:       raw,
		Status:        StatusPending,
		Attempts:      0,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := m.store.Insert(ctx, item); err != nil {
		return nil, err
	}

	m.log.Info().
		Str("item_id", item.ID).
		Str("kind", string(kind)).
		Msg("Queued request for retry")

	return item, nil
}

// Drain processes up to batchSize due items. batchSize <= 0 uses the policy default.
// A failure listing due items is logged and returns an empty result; per-item
// failures are logged and never stop the rest of the batch.
func (m *Manager) Drain(ctx context.Context, batchSize int) DrainResult {
	if batchSize <= 0 {
		batchSize = m.policy.BatchSize
	}

	var result DrainResult

	due, err := m.store.ListDue(ctx, m.clock.Now(), batchSize)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to list due queue items")
		return result
	}
	result.Selected = len(due)

	for _, item := range due {
		if ctx.Err() != nil {
			m.log.Warn().Err(ctx.Err()).Msg("Drain cancelled, leaving remaining items pending")
			break
		}
		m.processItem(ctx, item, &result)
	}

	if result.Selected > 0 {
		m.log.Info().
			Int("selected", result.Selected).
			Int("completed", result.Completed).
			Int("retried", result.Retried).
			Int("failed", result.Failed).
			Int("skipped", result.Skipped).
			Int("errors", result.Errors).
			Msg("Queue drain finished")
	}

	return result
}

func (m *Manager) processItem(ctx context.Context, item *Item, result *DrainResult) {
	log := m.log.With().Str("item_id", item.ID).Str("kind", string(item.Kind)).Int("attempts", item.Attempts).Logger()

	claimed, err := m.store.MarkProcessing(ctx, item.ID, m.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to claim queue item")
		result.Errors++
		return
	}
	if !claimed {
		log.Debug().Msg("Queue item no longer pending, skipping")
		result.Skipped++
		return
	}

	handlerErr := m.dispatch(ctx, item)
	now := m.clock.Now()

	if handlerErr == nil {
		if err := m.store.MarkCompleted(ctx, item.ID, now); err != nil {
			log.Error().Err(err).Msg("Failed to mark queue item completed")
			result.Errors++
			return
		}
		log.Info().Msg("Queue item completed")
		result.Completed++
		return
	}

	attempts := item.Attempts + 1

	if domain.IsPermanent(handlerErr) || attempts >= m.policy.MaxAttempts {
		if err := m.store.MarkFailed(ctx, item.ID, attempts, handlerErr.Error(), now); err != nil {
			log.Error().Err(err).Msg("Failed to mark queue item failed")
			result.Errors++
			return
		}
		log.Error().Err(handlerErr).
			Int("attempts", attempts).
			Bool("permanent", domain.IsPermanent(handlerErr)).
			Msg("Queue item failed permanently")
		result.Failed++
		return
	}

	next := now.Add(m.policy.Backoff(attempts))
	if err := m.store.MarkRetry(ctx, item.ID, attempts, next, handlerErr.Error(), now); err != nil {
		log.Error().Err(err).Msg("Failed to reschedule queue item")
		result.Errors++
		return
	}
	log.Warn().Err(handlerErr).
		Int("attempts", attempts).
		Time("next_attempt_at", next).
		Msg("Queue item failed, retry scheduled")
	result.Retried++
}

// dispatch runs the handler for item, converting a panic into an error
func (m *Manager) dispatch(ctx context.Context, item *Item) (err error) {
	h := m.registry.Get(item.Kind)
	if h == nil {
		return domain.NewPermanentError("dispatch "+string(item.Kind), ErrNoHandler)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()

	return h.Handle(ctx, item.Payload)
}

// RecoverInterrupted treats items left processing by a previous process as failed attempts.
// Only safe at startup, before any drain runs.
func (m *Manager) RecoverInterrupted(ctx context.Context) (int, error) {
	stuck, err := m.store.List(ctx, StatusProcessing, 1000)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, item := range stuck {
		now := m.clock.Now()
		attempts := item.Attempts + 1
		msg := "interrupted while processing"

		if attempts >= m.policy.MaxAttempts {
			err = m.store.MarkFailed(ctx, item.ID, attempts, msg, now)
		} else {
			err = m.store.MarkRetry(ctx, item.ID, attempts, now.Add(m.policy.Backoff(attempts)), msg, now)
		}
		if err != nil {
			m.log.Error().Err(err).Str("item_id", item.ID).Msg("Failed to recover interrupted queue item")
			continue
		}
		recovered++
	}

	if recovered > 0 {
		m.log.Warn().Int("count", recovered).Msg("Recovered interrupted queue items")
	}
	return recovered, nil
}

// Get returns one item
func (m *Manager) Get(ctx context.Context, id string) (*Item, error) {
	return m.store.Get(ctx, id)
}

// List returns items filtered by status (empty = all)
func (m *Manager) List(ctx context.Context, status Status, limit int) ([]*Item, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return m.store.List(ctx, status, limit)
}

// Accepts reports whether kind has a registered handler
func (m *Manager) Accepts(kind Kind) bool {
	return m.registry.Has(kind)
}

// Kinds returns the kinds with a registered handler
func (m *Manager) Kinds() []Kind {
	return m.registry.Kinds()
}

// Stats counts items per status
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	return m.store.Stats(ctx)
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(p) {
			return nil, errors.New("payload is not valid JSON")
		}
		return p, nil
	case []byte:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(p) {
			return nil, errors.New("payload is not valid JSON")
		}
		return json.RawMessage(p), nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		return data, nil
	}
}
