package orchestrators

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fitclub/internal/domain/event"
	"fitclub/internal/domain/lobby"
)

// Lobby orchestrator errors.
var (
	ErrNotLobbyHost = errors.New("only the lobby host can do this")
	ErrLobbyClosed  = errors.New("lobby is no longer accepting join requests")
)

// LobbyStoreForOps defines the lobby store interface for the lobby orchestrators.
type LobbyStoreForOps interface {
	GetByID(ctx context.Context, id string) (lobby.Lobby, error)
	Save(ctx context.Context, l lobby.Lobby) error
}

// RequestStoreForOps defines the join request store interface.
type RequestStoreForOps interface {
	GetRequest(ctx context.Context, id string) (lobby.JoinRequest, error)
	SaveRequest(ctx context.Context, r lobby.JoinRequest) error
}

// Broadcaster pushes an event to every live connection in a lobby's room.
type Broadcaster interface {
	Broadcast(lobbyID string, evt event.Event)
}

// OpenLobbyInput carries input for opening a lobby.
type OpenLobbyInput struct {
	HostID         string
	Title          string
	ScheduledStart time.Time
}

// OpenLobbyDeps holds dependencies for OpenLobby.
type OpenLobbyDeps struct {
	LobbyStore LobbyStoreForOps
}

// ExecuteOpenLobby creates the waiting room for a group session.
// PRE: HostID and Title are non-empty
// POST: Lobby persisted in open status
func ExecuteOpenLobby(ctx context.Context, input OpenLobbyInput, deps OpenLobbyDeps) (lobby.Lobby, error) {
	start := input.ScheduledStart
	if start.IsZero() {
		start = time.Now()
	}

	l := lobby.Lobby{
		ID:             uuid.New().String(),
		HostID:         input.HostID,
		Title:          input.Title,
		ScheduledStart: start,
		Status:         lobby.StatusOpen,
		CreatedAt:      time.Now(),
	}
	if err := l.Validate(); err != nil {
		return lobby.Lobby{}, err
	}
	if err := deps.LobbyStore.Save(ctx, l); err != nil {
		return lobby.Lobby{}, err
	}

	slog.Info("lobby_event", "event", "lobby_opened", "lobby_id", l.ID, "host_id", l.HostID)
	return l, nil
}

// ActivateLobbyInput carries input for activating a lobby.
type ActivateLobbyInput struct {
	LobbyID string
	HostID  string
}

// ExecuteActivateLobby moves a lobby to active when the host starts the
// session.
// PRE: caller is the host; lobby is open
// POST: Lobby persisted in active status
func ExecuteActivateLobby(ctx context.Context, input ActivateLobbyInput, deps OpenLobbyDeps) (lobby.Lobby, error) {
	l, err := deps.LobbyStore.GetByID(ctx, input.LobbyID)
	if err != nil {
		return lobby.Lobby{}, err
	}
	if l.HostID != input.HostID {
		return lobby.Lobby{}, ErrNotLobbyHost
	}
	if err := l.Activate(); err != nil {
		return lobby.Lobby{}, err
	}
	if err := deps.LobbyStore.Save(ctx, l); err != nil {
		return lobby.Lobby{}, err
	}

	slog.Info("lobby_event", "event", "lobby_activated", "lobby_id", l.ID)
	return l, nil
}

// RequestJoinInput carries input for a join request.
type RequestJoinInput struct {
	LobbyID   string
	AccountID string
}

// RequestJoinDeps holds dependencies for RequestJoin.
type RequestJoinDeps struct {
	LobbyStore   LobbyStoreForOps
	RequestStore RequestStoreForOps
	Broadcaster  Broadcaster
}

// ExecuteRequestJoin files a pending join request and notifies the room so
// the host sees it immediately.
// PRE: lobby exists and is open or active
// POST: Join request persisted as pending; join_request event broadcast
func ExecuteRequestJoin(ctx context.Context, input RequestJoinInput, deps RequestJoinDeps) (lobby.JoinRequest, error) {
	l, err := deps.LobbyStore.GetByID(ctx, input.LobbyID)
	if err != nil {
		return lobby.JoinRequest{}, err
	}
	if !l.CanJoin() {
		return lobby.JoinRequest{}, ErrLobbyClosed
	}

	r := lobby.JoinRequest{
		ID:        uuid.New().String(),
		LobbyID:   input.LobbyID,
		AccountID: input.AccountID,
		Status:    lobby.RequestPending,
		CreatedAt: time.Now(),
	}
	if err := r.Validate(); err != nil {
		return lobby.JoinRequest{}, err
	}
	if err := deps.RequestStore.SaveRequest(ctx, r); err != nil {
		return lobby.JoinRequest{}, err
	}

	if deps.Broadcaster != nil {
		payload, _ := json.Marshal(map[string]string{"request_id": r.ID, "account_id": r.AccountID})
		deps.Broadcaster.Broadcast(l.ID, event.Event{
			ID:      uuid.New().String(),
			Type:    event.TypeJoinRequest,
			LobbyID: l.ID,
			Payload: payload,
		})
	}

	slog.Info("lobby_event", "event", "join_requested",
		"lobby_id", l.ID, "request_id", r.ID, "account_id", r.AccountID)
	return r, nil
}

// DecideJoinInput carries input for a host's decision on a join request.
type DecideJoinInput struct {
	RequestID string
	HostID    string
	Approve   bool
}

// DecideJoinDeps holds dependencies for DecideJoin.
type DecideJoinDeps struct {
	LobbyStore   LobbyStoreForOps
	RequestStore RequestStoreForOps
	Broadcaster  Broadcaster
}

// ExecuteDecideJoin records the host's approval or denial of a join request.
// An approval is broadcast to the room as a member_joined event.
// PRE: caller is the lobby host; request is pending
// POST: Request persisted as approved or denied with a decision time
func ExecuteDecideJoin(ctx context.Context, input DecideJoinInput, deps DecideJoinDeps) (lobby.JoinRequest, error) {
	r, err := deps.RequestStore.GetRequest(ctx, input.RequestID)
	if err != nil {
		return lobby.JoinRequest{}, err
	}
	l, err := deps.LobbyStore.GetByID(ctx, r.LobbyID)
	if err != nil {
		return lobby.JoinRequest{}, err
	}
	if l.HostID != input.HostID {
		return lobby.JoinRequest{}, ErrNotLobbyHost
	}

	now := time.Now()
	if input.Approve {
		err = r.Approve(now)
	} else {
		err = r.Deny(now)
	}
	if err != nil {
		return lobby.JoinRequest{}, err
	}
	if err := deps.RequestStore.SaveRequest(ctx, r); err != nil {
		return lobby.JoinRequest{}, err
	}

	if input.Approve && deps.Broadcaster != nil {
		payload, _ := json.Marshal(map[string]string{"account_id": r.AccountID})
		deps.Broadcaster.Broadcast(l.ID, event.Event{
			ID:      uuid.New().String(),
			Type:    event.TypeMemberJoined,
			LobbyID: l.ID,
			Payload: payload,
		})
	}

	slog.Info("lobby_event", "event", "join_decided",
		"lobby_id", l.ID, "request_id", r.ID, "status", r.Status)
	return r, nil
}
