package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fitclub/internal/domain/event"
	"fitclub/internal/domain/lobby"
)

// Cleanup reason constants.
const (
	CleanupReasonEnded     = "host_ended"
	CleanupReasonAbandoned = "abandoned"
)

// LobbyStoreForCleanup defines the lobby store interface for cleanup.
type LobbyStoreForCleanup interface {
	GetByID(ctx context.Context, id string) (lobby.Lobby, error)
	Save(ctx context.Context, l lobby.Lobby) error
	ListByStatus(ctx context.Context, status string) ([]lobby.Lobby, error)
}

// RequestStoreForCleanup defines the join request store interface for cleanup.
type RequestStoreForCleanup interface {
	SaveRequest(ctx context.Context, r lobby.JoinRequest) error
	ListPendingByLobby(ctx context.Context, lobbyID string) ([]lobby.JoinRequest, error)
}

// RoomCloser disconnects every live connection in a lobby's room.
type RoomCloser interface {
	CloseLobby(lobbyID string)
}

// DedupResetter clears processed-event state during cleanup.
type DedupResetter interface {
	Clear()
}

// CleanupLobbyInput carries input for lobby cleanup.
type CleanupLobbyInput struct {
	LobbyID string
	Reason  string // CleanupReasonEnded or CleanupReasonAbandoned
}

// CleanupLobbyDeps holds dependencies for CleanupLobby.
type CleanupLobbyDeps struct {
	LobbyStore   LobbyStoreForCleanup
	RequestStore RequestStoreForCleanup
	Broadcaster  Broadcaster
	RoomCloser   RoomCloser
	Dedup        DedupResetter
}

// ExecuteCleanupLobby tears down a lobby: marks it terminal, expires pending
// join requests, tells connected clients, closes the room, and resets
// processed-event state.
//
// Every step is best-effort. A failed step is recorded but the remaining
// steps still run, so a partially reachable database or hub cannot leave
// clients connected to a dead lobby. The joined error reports all failures.
//
// PRE: LobbyID is non-empty
// POST: Lobby is terminal unless the status write itself failed
func ExecuteCleanupLobby(ctx context.Context, input CleanupLobbyInput, deps CleanupLobbyDeps) error {
	var errs []error
	now := time.Now()

	l, err := deps.LobbyStore.GetByID(ctx, input.LobbyID)
	if err != nil {
		return fmt.Errorf("cleanup: load lobby %s: %w", input.LobbyID, err)
	}

	if !l.IsTerminal() {
		if input.Reason == CleanupReasonEnded {
			err = l.End(now)
		} else {
			err = l.Abandon(now)
		}
		if err == nil {
			err = deps.LobbyStore.Save(ctx, l)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("mark lobby terminal: %w", err))
		}
	}

	pending, err := deps.RequestStore.ListPendingByLobby(ctx, input.LobbyID)
	if err != nil {
		errs = append(errs, fmt.Errorf("list pending requests: %w", err))
	}
	for _, r := range pending {
		if err := r.Expire(now); err != nil {
			continue
		}
		if err := deps.RequestStore.SaveRequest(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("expire request %s: %w", r.ID, err))
		}
	}

	if deps.Broadcaster != nil {
		payload, _ := json.Marshal(map[string]string{"reason": input.Reason})
		deps.Broadcaster.Broadcast(input.LobbyID, event.Event{
			ID:      uuid.New().String(),
			Type:    event.TypeLobbyClosed,
			LobbyID: input.LobbyID,
			Payload: payload,
		})
	}
	if deps.RoomCloser != nil {
		deps.RoomCloser.CloseLobby(input.LobbyID)
	}
	if deps.Dedup != nil {
		deps.Dedup.Clear()
	}

	slog.Info("lobby_event", "event", "lobby_cleaned_up",
		"lobby_id", input.LobbyID, "reason", input.Reason,
		"expired_requests", len(pending), "errors", len(errs))
	return errors.Join(errs...)
}

// RecoverLobbiesDeps holds dependencies for the startup recovery sweep.
type RecoverLobbiesDeps struct {
	CleanupDeps CleanupLobbyDeps
}

// ExecuteRecoverLobbies runs at startup and abandons every lobby left open
// or active by a previous process that did not shut down cleanly.
// POST: Returns the number of lobbies cleaned up
func ExecuteRecoverLobbies(ctx context.Context, deps RecoverLobbiesDeps) (int, error) {
	var errs []error
	recovered := 0

	for _, status := range []string{lobby.StatusOpen, lobby.StatusActive} {
		stale, err := deps.CleanupDeps.LobbyStore.ListByStatus(ctx, status)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s lobbies: %w", status, err))
			continue
		}
		for _, l := range stale {
			input := CleanupLobbyInput{LobbyID: l.ID, Reason: CleanupReasonAbandoned}
			if err := ExecuteCleanupLobby(ctx, input, deps.CleanupDeps); err != nil {
				errs = append(errs, err)
				continue
			}
			recovered++
		}
	}

	if recovered > 0 {
		slog.Info("lobby_event", "event", "lobbies_recovered", "count", recovered)
	}
	return recovered, errors.Join(errs...)
}
