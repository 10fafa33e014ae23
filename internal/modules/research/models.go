// Package research manages long-running AI research tickets: the
// pending -> processing -> completed|failed state machine, the reaper that fails
// abandoned tickets, and an inline processor that produces risk analyses.
package research

import (
	"encoding/json"
	"errors"
	"time"
)

// Status is a ticket lifecycle state
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the ticket can no longer change
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

var (
	// ErrTicketNotFound is returned when no ticket has the requested id
	ErrTicketNotFound = errors.New("research ticket not found")
	// ErrInvalidTransition is returned when a ticket is not in the state a transition requires
	ErrInvalidTransition = errors.New("invalid ticket transition")
)

// ReapTimeoutMessage is the error recorded on reaped tickets
const ReapTimeoutMessage = "timed out: no progress before the reaper deadline"

// DefaultReapTimeout is how long a ticket may sit non-terminal
const DefaultReapTimeout = 20 * time.Minute

// Ticket is one unit of asynchronous analysis work
type Ticket struct {
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ID        string          `json:"id"`
	Subject   string          `json:"subject"` // Usually the instrument symbol
	Status    Status          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Stats counts tickets per status
type Stats map[Status]int

// RiskScanRequest is the payload of tickets created by the risk scan
type RiskScanRequest struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// RiskReport is the result stored on a completed risk ticket
type RiskReport struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Symbol      string     `json:"symbol"`
	Provider    string     `json:"provider"`
	Model       string     `json:"model"`
	Analysis    string     `json:"analysis"`
	Inputs      RiskInputs `json:"inputs"`
}

// RiskInputs are the numbers handed to the analysis provider
type RiskInputs struct {
	Bars        int      `json:"bars"`
	LastClose   *float64 `json:"last_close,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	RSI14       *float64 `json:"rsi_14,omitempty"`
	SMA50       *float64 `json:"sma_50,omitempty"`
	Volatility  *float64 `json:"volatility,omitempty"` // Annualized, from daily log returns
	MaxDrawdown float64  `json:"max_drawdown"`
}
