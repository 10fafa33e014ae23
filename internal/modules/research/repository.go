package research

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

const ticketColumns = `id, subject, payload, status, result, error, created_at, updated_at`

// Repository persists research tickets in core.db. Every state change is a
// conditional update on the current status.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a ticket repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores a new ticket
func (r *Repository) Insert(ctx context.Context, t *Ticket) error {
	payload := string(t.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO research_tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Subject, payload, string(t.Status), nullBytes(t.Result), nullString(t.Error),
		t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli())
	if err != nil {
		return domain.NewStorageError("insert ticket", err)
	}
	return nil
}

// Get returns the ticket with id
func (r *Repository) Get(ctx context.Context, id string) (*Ticket, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM research_tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get ticket", err)
	}
	return t, nil
}

// Transition moves a ticket from one status to another. It reports false when the
// ticket was not in from.
func (r *Repository) Transition(ctx context.Context, id string, from, to Status, result []byte, errMsg string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE research_tickets
		SET status = ?, result = COALESCE(?, result), error = COALESCE(?, error), updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), nullBytes(result), nullString(errMsg), now.UnixMilli(), id, string(from))
	if err != nil {
		return false, domain.NewStorageError("transition ticket", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.NewStorageError("transition ticket", err)
	}
	return n == 1, nil
}

// ListStuck returns non-terminal tickets last updated before cutoff
func (r *Repository) ListStuck(ctx context.Context, cutoff time.Time) ([]*Ticket, error) {
	return r.query(ctx, "list stuck tickets", `
		SELECT `+ticketColumns+` FROM research_tickets
		WHERE status IN ('pending', 'processing') AND updated_at < ?
		ORDER BY updated_at ASC`, cutoff.UnixMilli())
}

// FailIfStuck fails one ticket if it is still non-terminal and older than cutoff
func (r *Repository) FailIfStuck(ctx context.Context, id string, cutoff time.Time, errMsg string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE research_tickets SET status = 'failed', error = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'processing') AND updated_at < ?`,
		errMsg, now.UnixMilli(), id, cutoff.UnixMilli())
	if err != nil {
		return false, domain.NewStorageError("reap ticket", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.NewStorageError("reap ticket", err)
	}
	return n == 1, nil
}

// LatestCompletedAt returns when the newest completed ticket for subject finished
func (r *Repository) LatestCompletedAt(ctx context.Context, subject string) (time.Time, bool, error) {
	var ms sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(updated_at) FROM research_tickets
		WHERE subject = ? AND status = 'completed'`, subject).Scan(&ms)
	if err != nil {
		return time.Time{}, false, domain.NewStorageError("latest completed ticket", err)
	}
	if !ms.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms.Int64).UTC(), true, nil
}

// List returns tickets filtered by status (empty = all), newest first
func (r *Repository) List(ctx context.Context, status Status, limit int) ([]*Ticket, error) {
	if status == "" {
		return r.query(ctx, "list tickets", `
			SELECT `+ticketColumns+` FROM research_tickets
			ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	}
	return r.query(ctx, "list tickets", `
		SELECT `+ticketColumns+` FROM research_tickets WHERE status = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, string(status), limit)
}

// ListTerminalSince returns completed and failed tickets updated at or after since
func (r *Repository) ListTerminalSince(ctx context.Context, since time.Time) ([]*Ticket, error) {
	return r.query(ctx, "list terminal tickets", `
		SELECT `+ticketColumns+` FROM research_tickets
		WHERE status IN ('completed', 'failed') AND updated_at >= ?
		ORDER BY updated_at ASC`, since.UnixMilli())
}

// Stats counts tickets per status
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM research_tickets GROUP BY status`)
	if err != nil {
		return nil, domain.NewStorageError("ticket stats", err)
	}
	defer rows.Close()

	stats := Stats{StatusPending: 0, StatusProcessing: 0, StatusCompleted: 0, StatusFailed: 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.NewStorageError("ticket stats", err)
		}
		stats[Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("ticket stats", err)
	}
	return stats, nil
}

func (r *Repository) query(ctx context.Context, op, query string, args ...any) ([]*Ticket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	defer rows.Close()

	tickets := make([]*Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, domain.NewStorageError(op, fmt.Errorf("scan: %w", err))
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	return tickets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*Ticket, error) {
	var (
		t                    Ticket
		status, payload      string
		result, errMsg       sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&t.ID, &t.Subject, &payload, &status, &result, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.Payload = []byte(payload)
	if result.Valid {
		t.Result = []byte(result.String)
	}
	t.Error = errMsg.String
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}
