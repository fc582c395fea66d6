package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fitclub/internal/domain/account"
	"fitclub/internal/domain/plan"
	"fitclub/internal/domain/session"
)

// AccountStoreForCompleteSession defines the account lookup needed when
// the caller omits the session length.
type AccountStoreForCompleteSession interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// SessionStoreForComplete defines the store interface for session completion.
type SessionStoreForComplete interface {
	Save(ctx context.Context, s session.Session) error
}

// CompleteSessionInput carries input for the session completion orchestrator.
type CompleteSessionInput struct {
	AccountID string
	Minutes   int    // 0 means use the account's configured duration
	Kind      string // solo or group
	LobbyID   string // required for group sessions
}

// CompleteSessionDeps holds dependencies for CompleteSession.
type CompleteSessionDeps struct {
	AccountStore AccountStoreForCompleteSession
	SessionStore SessionStoreForComplete
}

// CompleteSessionResult is returned after a session is recorded.
type CompleteSessionResult struct {
	SessionID string
	Date      string
	Minutes   int
}

// ExecuteCompleteSession records a finished workout for today. The session
// feeds the weekly plan view: any recorded minutes mark the day done.
// PRE: AccountID is non-empty; group sessions carry a lobby ID
// POST: Session persisted with today's date key
func ExecuteCompleteSession(ctx context.Context, input CompleteSessionInput, deps CompleteSessionDeps) (CompleteSessionResult, error) {
	now := time.Now()

	minutes := input.Minutes
	if minutes <= 0 {
		a, err := deps.AccountStore.GetByID(ctx, input.AccountID)
		if err != nil {
			return CompleteSessionResult{}, err
		}
		minutes = a.SessionMinutes
	}

	kind := input.Kind
	if kind == "" {
		kind = session.KindSolo
	}

	s := session.Session{
		ID:          uuid.New().String(),
		AccountID:   input.AccountID,
		Date:        plan.DateKey(now),
		Minutes:     minutes,
		Kind:        kind,
		LobbyID:     input.LobbyID,
		CompletedAt: now,
	}
	if err := s.Validate(); err != nil {
		return CompleteSessionResult{}, err
	}
	if err := deps.SessionStore.Save(ctx, s); err != nil {
		return CompleteSessionResult{}, err
	}

	slog.Info("session_event", "event", "session_completed",
		"account_id", input.AccountID, "date", s.Date, "minutes", s.Minutes, "kind", s.Kind)
	return CompleteSessionResult{SessionID: s.ID, Date: s.Date, Minutes: s.Minutes}, nil
}
