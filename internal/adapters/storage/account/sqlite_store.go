package account

import (
	"context"
	"strings"
	"time"

	"fitclub/internal/adapters/storage"
	domain "fitclub/internal/domain/account"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements the account Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new account store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an account by its ID.
// PRE: id is non-empty
// POST: Returns the account or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, role, onboarding_step, workout_days, session_minutes, reminder_hour, created_at
		 FROM account WHERE id = ?`, id)
	return scanAccount(row)
}

// GetByEmail retrieves an account by email.
// PRE: email is non-empty
// POST: Returns the account or an error if not found
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, role, onboarding_step, workout_days, session_minutes, reminder_hour, created_at
		 FROM account WHERE email = ?`, email)
	return scanAccount(row)
}

// Save persists an account to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, a domain.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account (id, email, display_name, password_hash, role, onboarding_step, workout_days, session_minutes, reminder_hour, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email=excluded.email, display_name=excluded.display_name, password_hash=excluded.password_hash,
		   role=excluded.role, onboarding_step=excluded.onboarding_step, workout_days=excluded.workout_days,
		   session_minutes=excluded.session_minutes, reminder_hour=excluded.reminder_hour`,
		a.ID, a.Email, a.DisplayName, a.PasswordHash, a.Role, a.OnboardingStep,
		strings.Join(a.WorkoutDays, ","), a.SessionMinutes, a.ReminderHour,
		a.CreatedAt.Format(dateLayout))
	return err
}

// Count returns the total number of accounts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM account`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var a domain.Account
	var workoutDays, createdAt string
	if err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.Role,
		&a.OnboardingStep, &workoutDays, &a.SessionMinutes, &a.ReminderHour, &createdAt); err != nil {
		return domain.Account{}, err
	}
	if workoutDays != "" {
		a.WorkoutDays = strings.Split(workoutDays, ",")
	}
	if t, err := time.Parse(dateLayout, createdAt); err == nil {
		a.CreatedAt = t
	}
	return a, nil
}
