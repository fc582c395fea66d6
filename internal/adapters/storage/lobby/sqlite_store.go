package lobby

import (
	"context"
	"database/sql"
	"time"

	"fitclub/internal/adapters/storage"
	domain "fitclub/internal/domain/lobby"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements both the lobby Store and RequestStore interfaces
// using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new lobby store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a lobby by its ID.
// PRE: id is non-empty
// POST: Returns the lobby or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Lobby, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, host_id, title, scheduled_start, status, created_at, ended_at
		 FROM lobby WHERE id = ?`, id)
	return scanLobby(row)
}

// Save persists a lobby to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, l domain.Lobby) error {
	endedAt := ""
	if !l.EndedAt.IsZero() {
		endedAt = l.EndedAt.Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lobby (id, host_id, title, scheduled_start, status, created_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   host_id=excluded.host_id, title=excluded.title, scheduled_start=excluded.scheduled_start,
		   status=excluded.status, ended_at=excluded.ended_at`,
		l.ID, l.HostID, l.Title, l.ScheduledStart.Format(dateLayout), l.Status,
		l.CreatedAt.Format(dateLayout), endedAt)
	return err
}

// ListByStatus returns lobbies in the given status, oldest first.
// PRE: status is a valid lobby status
// POST: Returns matching lobbies ordered by created_at
func (s *SQLiteStore) ListByStatus(ctx context.Context, status string) ([]domain.Lobby, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, host_id, title, scheduled_start, status, created_at, ended_at
		 FROM lobby WHERE status = ? ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Lobby
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetRequest retrieves a join request by its ID.
// PRE: id is non-empty
// POST: Returns the request or an error if not found
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (domain.JoinRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lobby_id, account_id, status, created_at, decided_at
		 FROM join_request WHERE id = ?`, id)
	return scanRequest(row)
}

// SaveRequest persists a join request to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) SaveRequest(ctx context.Context, r domain.JoinRequest) error {
	decidedAt := ""
	if !r.DecidedAt.IsZero() {
		decidedAt = r.DecidedAt.Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO join_request (id, lobby_id, account_id, status, created_at, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, decided_at=excluded.decided_at`,
		r.ID, r.LobbyID, r.AccountID, r.Status, r.CreatedAt.Format(dateLayout), decidedAt)
	return err
}

// ListPendingByLobby returns pending join requests for a lobby, oldest first.
// PRE: lobbyID is non-empty
// POST: Returns pending requests ordered by created_at
func (s *SQLiteStore) ListPendingByLobby(ctx context.Context, lobbyID string) ([]domain.JoinRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lobby_id, account_id, status, created_at, decided_at
		 FROM join_request WHERE lobby_id = ? AND status = ? ORDER BY created_at ASC`,
		lobbyID, domain.RequestPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JoinRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLobby(row rowScanner) (domain.Lobby, error) {
	var l domain.Lobby
	var scheduledStart, createdAt string
	var endedAt sql.NullString
	if err := row.Scan(&l.ID, &l.HostID, &l.Title, &scheduledStart, &l.Status, &createdAt, &endedAt); err != nil {
		return domain.Lobby{}, err
	}
	if t, err := time.Parse(dateLayout, scheduledStart); err == nil {
		l.ScheduledStart = t
	}
	if t, err := time.Parse(dateLayout, createdAt); err == nil {
		l.CreatedAt = t
	}
	if endedAt.Valid && endedAt.String != "" {
		if t, err := time.Parse(dateLayout, endedAt.String); err == nil {
			l.EndedAt = t
		}
	}
	return l, nil
}

func scanRequest(row rowScanner) (domain.JoinRequest, error) {
	var r domain.JoinRequest
	var createdAt string
	var decidedAt sql.NullString
	if err := row.Scan(&r.ID, &r.LobbyID, &r.AccountID, &r.Status, &createdAt, &decidedAt); err != nil {
		return domain.JoinRequest{}, err
	}
	if t, err := time.Parse(dateLayout, createdAt); err == nil {
		r.CreatedAt = t
	}
	if decidedAt.Valid && decidedAt.String != "" {
		if t, err := time.Parse(dateLayout, decidedAt.String); err == nil {
			r.DecidedAt = t
		}
	}
	return r, nil
}
