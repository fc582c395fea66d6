package notification

import (
	"context"
	"database/sql"
	"time"

	"fitclub/internal/adapters/storage"
	domain "fitclub/internal/domain/notification"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements the notification Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new notification store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a notification by its ID.
// PRE: id is non-empty
// POST: Returns the notification or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, kind, title, body, scheduled_for, status, attempts, max_attempts,
		        last_attempted_at, sent_at, error_message, created_at
		 FROM notification WHERE id = ?`, id)
	return scanNotification(row)
}

// Save persists a notification to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, n domain.Notification) error {
	lastAttemptedAt := ""
	if !n.LastAttemptedAt.IsZero() {
		lastAttemptedAt = n.LastAttemptedAt.Format(dateLayout)
	}
	sentAt := ""
	if !n.SentAt.IsZero() {
		sentAt = n.SentAt.Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification (id, account_id, kind, title, body, scheduled_for, status, attempts,
		                           max_attempts, last_attempted_at, sent_at, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   scheduled_for=excluded.scheduled_for, status=excluded.status, attempts=excluded.attempts,
		   max_attempts=excluded.max_attempts, last_attempted_at=excluded.last_attempted_at,
		   sent_at=excluded.sent_at, error_message=excluded.error_message`,
		n.ID, n.AccountID, n.Kind, n.Title, n.Body, n.ScheduledFor.Format(dateLayout),
		n.Status, n.Attempts, n.MaxAttempts, lastAttemptedAt, sentAt, n.ErrorMessage,
		n.CreatedAt.Format(dateLayout))
	return err
}

// ListDue returns scheduled notifications ready for delivery, oldest first.
// PRE: now is formatted with the store's date layout
// POST: Returns at most limit notifications
func (s *SQLiteStore) ListDue(ctx context.Context, now string, limit int) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, kind, title, body, scheduled_for, status, attempts, max_attempts,
		        last_attempted_at, sent_at, error_message, created_at
		 FROM notification WHERE status = ? AND scheduled_for <= ?
		 ORDER BY scheduled_for ASC LIMIT ?`,
		domain.StatusScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// ListScheduledByAccountAndKind returns pending notifications of a kind
// for one account, oldest first.
// PRE: accountID and kind are non-empty
// POST: Returns only notifications still in scheduled status
func (s *SQLiteStore) ListScheduledByAccountAndKind(ctx context.Context, accountID, kind string) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, kind, title, body, scheduled_for, status, attempts, max_attempts,
		        last_attempted_at, sent_at, error_message, created_at
		 FROM notification WHERE account_id = ? AND kind = ? AND status = ?
		 ORDER BY scheduled_for ASC`,
		accountID, kind, domain.StatusScheduled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (domain.Notification, error) {
	var n domain.Notification
	var scheduledFor, createdAt string
	var lastAttemptedAt, sentAt sql.NullString
	if err := row.Scan(&n.ID, &n.AccountID, &n.Kind, &n.Title, &n.Body, &scheduledFor,
		&n.Status, &n.Attempts, &n.MaxAttempts, &lastAttemptedAt, &sentAt,
		&n.ErrorMessage, &createdAt); err != nil {
		return domain.Notification{}, err
	}
	if t, err := time.Parse(dateLayout, scheduledFor); err == nil {
		n.ScheduledFor = t
	}
	if t, err := time.Parse(dateLayout, createdAt); err == nil {
		n.CreatedAt = t
	}
	if lastAttemptedAt.Valid && lastAttemptedAt.String != "" {
		if t, err := time.Parse(dateLayout, lastAttemptedAt.String); err == nil {
			n.LastAttemptedAt = t
		}
	}
	if sentAt.Valid && sentAt.String != "" {
		if t, err := time.Parse(dateLayout, sentAt.String); err == nil {
			n.SentAt = t
		}
	}
	return n, nil
}

func scanNotifications(rows *sql.Rows) ([]domain.Notification, error) {
	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
