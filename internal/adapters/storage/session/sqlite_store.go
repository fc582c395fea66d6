package session

import (
	"context"
	"database/sql"
	"time"

	"fitclub/internal/adapters/storage"
	domain "fitclub/internal/domain/session"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements the session Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new session store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a session by its ID.
// PRE: id is non-empty
// POST: Returns the session or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, date, minutes, kind, lobby_id, completed_at
		 FROM session WHERE id = ?`, id)
	return scanSession(row)
}

// Save persists a session to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, v domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (id, account_id, date, minutes, kind, lobby_id, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   account_id=excluded.account_id, date=excluded.date, minutes=excluded.minutes,
		   kind=excluded.kind, lobby_id=excluded.lobby_id, completed_at=excluded.completed_at`,
		v.ID, v.AccountID, v.Date, v.Minutes, v.Kind, v.LobbyID, v.CompletedAt.Format(dateLayout))
	return err
}

// ListByAccountAndDateRange returns sessions within a date range, oldest first.
// PRE: from and to are YYYY-MM-DD with from <= to
// POST: Returns matching sessions ordered by date
func (s *SQLiteStore) ListByAccountAndDateRange(ctx context.Context, accountID, from, to string) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, date, minutes, kind, lobby_id, completed_at
		 FROM session WHERE account_id = ? AND date >= ? AND date <= ? ORDER BY date ASC`,
		accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// SumMinutesByAccountAndDateRange totals training minutes in a date range.
// PRE: from and to are YYYY-MM-DD with from <= to
// POST: Returns 0 when no sessions match
func (s *SQLiteStore) SumMinutesByAccountAndDateRange(ctx context.Context, accountID, from, to string) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(minutes) FROM session WHERE account_id = ? AND date >= ? AND date <= ?`,
		accountID, from, to).Scan(&total)
	if err != nil {
		return 0, err
	}
	return int(total.Int64), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var v domain.Session
	var completedAt string
	if err := row.Scan(&v.ID, &v.AccountID, &v.Date, &v.Minutes, &v.Kind, &v.LobbyID, &completedAt); err != nil {
		return domain.Session{}, err
	}
	if t, err := time.Parse(dateLayout, completedAt); err == nil {
		v.CompletedAt = t
	}
	return v, nil
}

func scanSessions(rows *sql.Rows) ([]domain.Session, error) {
	var out []domain.Session
	for rows.Next() {
		v, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
