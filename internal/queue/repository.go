package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
)

var (
	// ErrItemNotFound is returned when no item has the requested id
	ErrItemNotFound = errors.New("queue item not found")
	// ErrNotProcessing is returned when a completion targets an item that is not processing
	ErrNotProcessing = errors.New("queue item is not processing")
)

const itemColumns = `id, kind, payload, status, attempts, last_error, next_attempt_at, created_at, updated_at`

// Repository persists queue items in core.db
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new queue repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores a new item
func (r *Repository) Insert(ctx context.Context, item *Item) error {
	payload := string(item.Payload)
	if payload == "" {
		payload = "{}"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO queue_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Kind), payload, string(item.Status), item.Attempts,
		nullString(item.LastError), item.NextAttemptAt.UnixMilli(),
		item.CreatedAt.UnixMilli(), item.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return domain.NewStorageError("insert queue item", err)
	}
	return nil
}

// Get returns the item with id
func (r *Repository) Get(ctx context.Context, id string) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get queue item", err)
	}
	return item, nil
}

// ListDue returns pending items due at now, oldest first
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]*Item, error) {
	return r.query(ctx, "list due queue items", `
		SELECT `+itemColumns+` FROM queue_items
		WHERE status = 'pending' AND next_attempt_at <= ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?`, now.UnixMilli(), limit)
}

// List returns items filtered by status (empty = all), newest first
func (r *Repository) List(ctx context.Context, status Status, limit int) ([]*Item, error) {
	if status == "" {
		return r.query(ctx, "list queue items", `
			SELECT `+itemColumns+` FROM queue_items
			ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	}
	return r.query(ctx, "list queue items", `
		SELECT `+itemColumns+` FROM queue_items
		WHERE status = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, string(status), limit)
}

// ListTerminalSince returns completed and failed items updated at or after since
func (r *Repository) ListTerminalSince(ctx context.Context, since time.Time) ([]*Item, error) {
	return r.query(ctx, "list terminal queue items", `
		SELECT `+itemColumns+` FROM queue_items
		WHERE status IN ('completed', 'failed') AND updated_at >= ?
		ORDER BY updated_at ASC`, since.UnixMilli())
}

// MarkProcessing claims a pending item. It returns false when the item is no longer pending.
func (r *Repository) MarkProcessing(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_items SET status = 'processing', updated_at = ?
		WHERE id = ? AND status = 'pending'`, now.UnixMilli(), id)
	if err != nil {
		return false, domain.NewStorageError("claim queue item", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.NewStorageError("claim queue item", err)
	}
	return n == 1, nil
}

// MarkCompleted moves a processing item to completed
func (r *Repository) MarkCompleted(ctx context.Context, id string, now time.Time) error {
	return r.finish(ctx, "complete queue item", `
		UPDATE queue_items SET status = 'completed', last_error = NULL, updated_at = ?
		WHERE id = ? AND status = 'processing'`, now.UnixMilli(), id)
}

// MarkRetry returns a processing item to pending with a later next attempt
func (r *Repository) MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string, now time.Time) error {
	return r.finish(ctx, "reschedule queue item", `
		UPDATE queue_items
		SET status = 'pending', attempts = ?, next_attempt_at = MAX(next_attempt_at, ?),
			last_error = ?, updated_at = ?
		WHERE id = ? AND status = 'processing' AND attempts < ?`,
		attempts, next.UnixMilli(), nullString(lastErr), now.UnixMilli(), id, attempts)
}

// MarkFailed moves a processing item to the terminal failed state
func (r *Repository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error {
	return r.finish(ctx, "fail queue item", `
		UPDATE queue_items SET status = 'failed', attempts = MAX(attempts, ?), last_error = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		attempts, nullString(lastErr), now.UnixMilli(), id)
}

// Stats counts items per status
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, domain.NewStorageError("queue stats", err)
	}
	defer rows.Close()

	stats := Stats{
		StatusPending:    0,
		StatusProcessing: 0,
		StatusCompleted:  0,
		StatusFailed:     0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.NewStorageError("queue stats", err)
		}
		stats[Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("queue stats", err)
	}
	return stats, nil
}

func (r *Repository) finish(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.NewStorageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotProcessing)
	}
	return nil
}

func (r *Repository) query(ctx context.Context, op, query string, args ...any) ([]*Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	defer rows.Close()

	items := make([]*Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, domain.NewStorageError(op, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item                             Item
		kind, status, payload            string
		lastError                        sql.NullString
		nextAttempt, createdAt, updateAt int64
	)
	if err := row.Scan(&item.ID, &kind, &payload, &status, &item.Attempts, &lastError,
		&nextAttempt, &createdAt, &updateAt); err != nil {
		return nil, err
	}

	item.Kind = Kind(kind)
	item.Status = Status(status)
	item.Payload = []byte(payload)
	item.LastError = lastError.String
	item.NextAttemptAt = time.UnixMilli(nextAttempt).UTC()
	item.CreatedAt = time.UnixMilli(createdAt).UTC()
	item.UpdatedAt = time.UnixMilli(updateAt).UTC()
	return &item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
