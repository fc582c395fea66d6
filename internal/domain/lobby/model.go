package lobby

import (
	"errors"
	"time"
)

// Lobby status constants. A lobby is the waiting room for one group session:
// it opens before the scheduled start, goes active when the host starts the
// call, and is ended by the host or abandoned by cleanup.
const (
	StatusOpen      = "open"
	StatusActive    = "active"
	StatusEnded     = "ended"
	StatusAbandoned = "abandoned"
)

// Join request status constants.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDenied   = "denied"
	RequestExpired  = "expired"
)

// Max length constants.
const (
	MaxTitleLength = 200
)

// Domain errors
var (
	ErrEmptyHostID       = errors.New("lobby host ID cannot be empty")
	ErrEmptyTitle        = errors.New("lobby title cannot be empty")
	ErrInvalidTransition = errors.New("invalid lobby status transition")
	ErrAlreadyDecided    = errors.New("join request has already been decided")
	ErrEmptyLobbyID      = errors.New("lobby ID cannot be empty")
	ErrEmptyAccountID    = errors.New("account ID cannot be empty")
)

// Lobby represents a pre-session waiting room for a group workout.
// INVARIANT: Status transitions only open->active, open/active->ended,
// open/active->abandoned.
type Lobby struct {
	ID             string
	HostID         string
	Title          string
	ScheduledStart time.Time
	Status         string
	CreatedAt      time.Time
	EndedAt        time.Time // zero until the lobby reaches a terminal state
}

// Validate checks if the Lobby has valid data.
// PRE: Lobby struct is populated
// POST: Returns nil if valid, error otherwise
func (l *Lobby) Validate() error {
	if l.HostID == "" {
		return ErrEmptyHostID
	}
	if l.Title == "" {
		return ErrEmptyTitle
	}
	if len(l.Title) > MaxTitleLength {
		return errors.New("lobby title cannot exceed 200 characters")
	}
	switch l.Status {
	case StatusOpen, StatusActive, StatusEnded, StatusAbandoned:
	default:
		return errors.New("unknown lobby status")
	}
	return nil
}

// IsTerminal returns true once the lobby has ended or been abandoned.
func (l *Lobby) IsTerminal() bool {
	return l.Status == StatusEnded || l.Status == StatusAbandoned
}

// CanJoin returns true while join requests are still accepted.
func (l *Lobby) CanJoin() bool {
	return l.Status == StatusOpen || l.Status == StatusActive
}

// Activate moves the lobby from open to active.
// PRE: Status is open
// POST: Status is active
func (l *Lobby) Activate() error {
	if l.Status != StatusOpen {
		return ErrInvalidTransition
	}
	l.Status = StatusActive
	return nil
}

// End marks the lobby as ended by the host.
// PRE: Status is open or active
// POST: Status is ended, EndedAt set
func (l *Lobby) End(now time.Time) error {
	if l.IsTerminal() {
		return ErrInvalidTransition
	}
	l.Status = StatusEnded
	l.EndedAt = now
	return nil
}

// Abandon marks the lobby as abandoned by the cleanup path. Used when the
// host disappeared (crash, network loss) and the lobby is being reclaimed.
// PRE: Status is open or active
// POST: Status is abandoned, EndedAt set
func (l *Lobby) Abandon(now time.Time) error {
	if l.IsTerminal() {
		return ErrInvalidTransition
	}
	l.Status = StatusAbandoned
	l.EndedAt = now
	return nil
}

// JoinRequest is a member's request to join a lobby, decided by the host.
type JoinRequest struct {
	ID        string
	LobbyID   string
	AccountID string
	Status    string
	CreatedAt time.Time
	DecidedAt time.Time // zero while pending
}

// Validate checks if the JoinRequest has valid data.
// PRE: JoinRequest struct is populated
// POST: Returns nil if valid, error otherwise
func (r *JoinRequest) Validate() error {
	if r.LobbyID == "" {
		return ErrEmptyLobbyID
	}
	if r.AccountID == "" {
		return ErrEmptyAccountID
	}
	switch r.Status {
	case RequestPending, RequestApproved, RequestDenied, RequestExpired:
	default:
		return errors.New("unknown join request status")
	}
	return nil
}

// IsPending returns true while the request awaits a host decision.
func (r *JoinRequest) IsPending() bool {
	return r.Status == RequestPending
}

// Approve records a host approval.
// PRE: Status is pending
// POST: Status is approved, DecidedAt set
func (r *JoinRequest) Approve(now time.Time) error {
	if !r.IsPending() {
		return ErrAlreadyDecided
	}
	r.Status = RequestApproved
	r.DecidedAt = now
	return nil
}

// Deny records a host denial.
// PRE: Status is pending
// POST: Status is denied, DecidedAt set
func (r *JoinRequest) Deny(now time.Time) error {
	if !r.IsPending() {
		return ErrAlreadyDecided
	}
	r.Status = RequestDenied
	r.DecidedAt = now
	return nil
}

// Expire voids a pending request during lobby cleanup.
// PRE: Status is pending
// POST: Status is expired, DecidedAt set
func (r *JoinRequest) Expire(now time.Time) error {
	if !r.IsPending() {
		return ErrAlreadyDecided
	}
	r.Status = RequestExpired
	r.DecidedAt = now
	return nil
}
