package notification

import (
	"context"

	domain "fitclub/internal/domain/notification"
)

// Store persists scheduled notifications.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Notification, error)
	Save(ctx context.Context, value domain.Notification) error
	// ListDue returns scheduled notifications whose scheduled_for has
	// passed, oldest first, limited to limit rows.
	ListDue(ctx context.Context, now string, limit int) ([]domain.Notification, error)
	// ListScheduledByAccountAndKind returns an account's still-pending
	// notifications of one kind, used to cancel stale reminders when the
	// schedule changes.
	ListScheduledByAccountAndKind(ctx context.Context, accountID, kind string) ([]domain.Notification, error)
}
