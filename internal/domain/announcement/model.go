package announcement

import (
	"errors"
	"time"
)

// Audience constants controlling who sees an announcement.
const (
	AudienceAll     = "all"
	AudienceMembers = "members"
	AudienceCoaches = "coaches"
)

// Max length constants.
const (
	MaxTitleLength = 200
	MaxBodyLength  = 5000
)

// Domain errors
var (
	ErrEmptyTitle      = errors.New("announcement title cannot be empty")
	ErrEmptyBody       = errors.New("announcement body cannot be empty")
	ErrInvalidAudience = errors.New("audience must be 'all', 'members' or 'coaches'")
)

// Announcement is a club-wide message shown on the dashboard. Body is
// markdown; rendering to HTML happens at the HTTP layer.
type Announcement struct {
	ID          string
	Title       string
	Body        string // markdown
	Audience    string
	PublishedAt time.Time
	ExpiresAt   time.Time // zero value means no expiry
	CreatedBy   string    // account ID
	CreatedAt   time.Time
}

// Validate checks the announcement's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (a *Announcement) Validate() error {
	if a.Title == "" {
		return ErrEmptyTitle
	}
	if len(a.Title) > MaxTitleLength {
		return errors.New("announcement title cannot exceed 200 characters")
	}
	if a.Body == "" {
		return ErrEmptyBody
	}
	if len(a.Body) > MaxBodyLength {
		return errors.New("announcement body cannot exceed 5000 characters")
	}
	switch a.Audience {
	case AudienceAll, AudienceMembers, AudienceCoaches:
	default:
		return ErrInvalidAudience
	}
	if !a.ExpiresAt.IsZero() && !a.PublishedAt.IsZero() && a.ExpiresAt.Before(a.PublishedAt) {
		return errors.New("announcement cannot expire before it is published")
	}
	return nil
}

// IsVisible reports whether the announcement should be shown to the given
// role at the given time.
// PRE: role is a valid account role
// POST: returns true if published, unexpired, and the audience matches
func (a *Announcement) IsVisible(now time.Time, role string) bool {
	if a.PublishedAt.IsZero() || a.PublishedAt.After(now) {
		return false
	}
	if !a.ExpiresAt.IsZero() && a.ExpiresAt.Before(now) {
		return false
	}
	switch a.Audience {
	case AudienceAll:
		return true
	case AudienceMembers:
		return role == "member"
	case AudienceCoaches:
		return role == "coach" || role == "admin"
	}
	return false
}
