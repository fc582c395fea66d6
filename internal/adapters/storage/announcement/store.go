package announcement

import (
	"context"

	domain "fitclub/internal/domain/announcement"
)

// Store persists club announcements.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Announcement, error)
	Save(ctx context.Context, value domain.Announcement) error
	// ListPublished returns announcements already published as of now,
	// newest first. Expiry and audience filtering happen in the domain.
	ListPublished(ctx context.Context, now string) ([]domain.Announcement, error)
}
