package notification

import (
	"errors"
	"time"
)

// Status constants for the notification lifecycle.
const (
	StatusScheduled = "scheduled"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Kind constants for the different notification categories.
const (
	KindWorkoutReminder = "workout_reminder"
	KindLobbyInvite     = "lobby_invite"
)

// Domain errors
var (
	ErrEmptyAccountID = errors.New("account ID is required")
	ErrEmptyKind      = errors.New("notification kind is required")
	ErrEmptyTitle     = errors.New("notification title is required")
	ErrNotScheduled   = errors.New("notification is not in a sendable state")
)

// Notification is one scheduled delivery to a user: a workout reminder
// derived from their configured days, or a lobby invite.
type Notification struct {
	ID              string
	AccountID       string
	Kind            string
	Title           string
	Body            string
	ScheduledFor    time.Time
	Status          string
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	SentAt          time.Time
	ErrorMessage    string
	CreatedAt       time.Time
}

// Validate checks that the Notification has valid data.
// PRE: Notification struct is populated
// POST: Returns nil if valid, error otherwise
func (n *Notification) Validate() error {
	if n.AccountID == "" {
		return ErrEmptyAccountID
	}
	if n.Kind == "" {
		return ErrEmptyKind
	}
	if n.Title == "" {
		return ErrEmptyTitle
	}
	if n.ScheduledFor.IsZero() {
		return errors.New("scheduled_for must be set")
	}
	if n.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if n.MaxAttempts <= 0 {
		n.MaxAttempts = 3 // Default max attempts
	}
	return nil
}

// IsDue returns true if the notification should be delivered now.
// PRE: Status and ScheduledFor are set
// POST: Returns true for scheduled notifications whose time has passed
func (n *Notification) IsDue(now time.Time) bool {
	return n.Status == StatusScheduled && !n.ScheduledFor.After(now)
}

// IsTerminal returns true if the notification has reached a final state.
func (n *Notification) IsTerminal() bool {
	if n.Status == StatusSent || n.Status == StatusCanceled {
		return true
	}
	return n.Status == StatusFailed && n.Attempts >= n.MaxAttempts
}

// MarkAttempt records a delivery attempt.
// PRE: Notification is sendable
// POST: Attempts incremented, LastAttemptedAt updated
func (n *Notification) MarkAttempt(now time.Time) {
	n.Attempts++
	n.LastAttemptedAt = now
}

// MarkSent marks the notification as delivered.
// PRE: A delivery attempt succeeded
// POST: Status set to sent, SentAt recorded, error cleared
func (n *Notification) MarkSent(now time.Time) {
	n.Status = StatusSent
	n.SentAt = now
	n.ErrorMessage = ""
}

// MarkFailed records a delivery failure. The notification stays scheduled
// for retry until MaxAttempts is exhausted.
// PRE: A delivery attempt failed
// POST: ErrorMessage set; Status moves to failed once attempts are exhausted
func (n *Notification) MarkFailed(err error) {
	n.ErrorMessage = err.Error()
	if n.Attempts >= n.MaxAttempts {
		n.Status = StatusFailed
	}
}

// Cancel voids a scheduled notification (e.g. the user changed their days).
// PRE: Status is scheduled
// POST: Status set to canceled
func (n *Notification) Cancel() error {
	if n.Status != StatusScheduled {
		return ErrNotScheduled
	}
	n.Status = StatusCanceled
	return nil
}

// NextRetryDelay calculates the delay before the next delivery attempt.
// Uses exponential backoff: 2^attempts * baseDelay, capped at maxDelay.
// PRE: Attempts is set
// POST: Returns duration for next retry
func (n *Notification) NextRetryDelay(baseDelay, maxDelay time.Duration) time.Duration {
	delay := baseDelay * (1 << n.Attempts)
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
