package session

import (
	"errors"
	"time"
)

// Session kind constants.
const (
	KindSolo  = "solo"  // self-guided workout
	KindGroup = "group" // joined through a lobby
)

// Domain errors
var (
	ErrEmptyAccountID = errors.New("account ID cannot be empty")
	ErrEmptyDate      = errors.New("session date cannot be empty")
	ErrInvalidDate    = errors.New("session date must be in YYYY-MM-DD format")
	ErrInvalidKind    = errors.New("session kind must be 'solo' or 'group'")
	ErrInvalidMinutes = errors.New("session minutes must be positive")
	ErrMissingLobby   = errors.New("group sessions require a lobby ID")
)

// Session is a completed workout record. Date is the training day in the
// user's local calendar, kept separate from CompletedAt so a workout finished
// shortly after midnight still counts against the day it was started.
type Session struct {
	ID          string
	AccountID   string
	Date        string // YYYY-MM-DD
	Minutes     int
	Kind        string // solo, group
	LobbyID     string // set for group sessions
	CompletedAt time.Time
}

// Validate checks if the Session has valid data.
// PRE: Session struct is populated
// POST: Returns nil if valid, error otherwise
func (s *Session) Validate() error {
	if s.AccountID == "" {
		return ErrEmptyAccountID
	}
	if s.Date == "" {
		return ErrEmptyDate
	}
	if _, err := time.Parse("2006-01-02", s.Date); err != nil {
		return ErrInvalidDate
	}
	if s.Kind != KindSolo && s.Kind != KindGroup {
		return ErrInvalidKind
	}
	if s.Minutes <= 0 {
		return ErrInvalidMinutes
	}
	if s.Kind == KindGroup && s.LobbyID == "" {
		return ErrMissingLobby
	}
	return nil
}
