package session

import (
	"context"

	domain "fitclub/internal/domain/session"
)

// Store persists completed workout sessions.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Session, error)
	Save(ctx context.Context, value domain.Session) error
	// ListByAccountAndDateRange returns sessions for an account with
	// from <= date <= to (dates in YYYY-MM-DD).
	ListByAccountAndDateRange(ctx context.Context, accountID, from, to string) ([]domain.Session, error)
	// SumMinutesByAccountAndDateRange totals training minutes in the range.
	SumMinutesByAccountAndDateRange(ctx context.Context, accountID, from, to string) (int, error)
}
