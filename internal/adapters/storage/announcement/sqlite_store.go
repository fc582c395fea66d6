package announcement

import (
	"context"
	"database/sql"
	"time"

	"fitclub/internal/adapters/storage"
	domain "fitclub/internal/domain/announcement"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements the announcement Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new announcement store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an announcement by its ID.
// PRE: id is non-empty
// POST: Returns the announcement or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Announcement, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, audience, published_at, expires_at, created_by, created_at
		 FROM announcement WHERE id = ?`, id)
	return scanAnnouncement(row)
}

// Save persists an announcement to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, a domain.Announcement) error {
	publishedAt := ""
	if !a.PublishedAt.IsZero() {
		publishedAt = a.PublishedAt.Format(dateLayout)
	}
	expiresAt := ""
	if !a.ExpiresAt.IsZero() {
		expiresAt = a.ExpiresAt.Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO announcement (id, title, body, audience, published_at, expires_at, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title=excluded.title, body=excluded.body, audience=excluded.audience,
		   published_at=excluded.published_at, expires_at=excluded.expires_at`,
		a.ID, a.Title, a.Body, a.Audience, publishedAt, expiresAt, a.CreatedBy,
		a.CreatedAt.Format(dateLayout))
	return err
}

// ListPublished returns published announcements, newest first.
// PRE: now is formatted with the store's date layout
// POST: Unpublished drafts are excluded
func (s *SQLiteStore) ListPublished(ctx context.Context, now string) ([]domain.Announcement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body, audience, published_at, expires_at, created_by, created_at
		 FROM announcement WHERE published_at IS NOT NULL AND published_at != '' AND published_at <= ?
		 ORDER BY published_at DESC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnouncement(row rowScanner) (domain.Announcement, error) {
	var a domain.Announcement
	var createdAt string
	var publishedAt, expiresAt sql.NullString
	if err := row.Scan(&a.ID, &a.Title, &a.Body, &a.Audience, &publishedAt, &expiresAt,
		&a.CreatedBy, &createdAt); err != nil {
		return domain.Announcement{}, err
	}
	if publishedAt.Valid && publishedAt.String != "" {
		if t, err := time.Parse(dateLayout, publishedAt.String); err == nil {
			a.PublishedAt = t
		}
	}
	if expiresAt.Valid && expiresAt.String != "" {
		if t, err := time.Parse(dateLayout, expiresAt.String); err == nil {
			a.ExpiresAt = t
		}
	}
	if t, err := time.Parse(dateLayout, createdAt); err == nil {
		a.CreatedAt = t
	}
	return a, nil
}
