// Package queue implements the durable request queue: persisted work items retried
// with exponential backoff by a periodic drain.
//
// The queue assumes a single active drain process. Claiming is an optimistic
// pending -> processing write before the handler runs; it is not safe across
// concurrently draining processes.
package queue

import (
	"encoding/json"
	"time"
)

// Kind identifies the handler that re-executes an item
type Kind string

const (
	KindAddInstrument   Kind = "add_instrument"
	KindSyncSnapshot    Kind = "sync_snapshot"
	KindBackfillHistory Kind = "backfill_history"
)

// Description returns a human-readable description of the kind
func (k Kind) Description() string {
	switch k {
	case KindAddInstrument:
		return "Add an instrument to the catalog and fetch its first snapshot"
	case KindSyncSnapshot:
		return "Refresh the latest price snapshot for one instrument"
	case KindBackfillHistory:
		return "Backfill daily candle history for one instrument"
	default:
		return string(k)
	}
}

// Status is the lifecycle state of an item
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status can never change again
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Item is one deferred unit of retryable work
type Item struct {
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	Status        Status          `json:"status"`
	LastError     string          `json:"last_error,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
}

// Policy controls retry behavior
type Policy struct {
	MaxAttempts        int `json:"max_attempts"`
	BaseBackoffSeconds int `json:"base_backoff_seconds"`
	BatchSize          int `json:"batch_size"`
}

// DefaultPolicy returns the production defaults: 10 attempts, 30s base, batches of 10.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:        10,
		BaseBackoffSeconds: 30,
		BatchSize:          10,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseBackoffSeconds <= 0 {
		p.BaseBackoffSeconds = d.BaseBackoffSeconds
	}
	if p.BatchSize <= 0 {
		p.BatchSize = d.BatchSize
	}
	return p
}

// DrainResult summarizes one drain invocation
type DrainResult struct {
	Selected  int `json:"selected"`
	Completed int `json:"completed"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"` // claimed elsewhere between select and claim
	Errors    int `json:"errors"`  // storage errors while transitioning an item
}

// Stats counts items per status
type Stats map[Status]int
