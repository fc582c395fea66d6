package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitclub/internal/domain/event"
	"fitclub/internal/domain/lobby"
)

// mockLobbyStore implements the lobby store interfaces for testing.
type mockLobbyStore struct {
	lobbies  map[string]lobby.Lobby
	requests map[string]lobby.JoinRequest
	saveErr  error
}

func newMockLobbyStore() *mockLobbyStore {
	return &mockLobbyStore{
		lobbies:  make(map[string]lobby.Lobby),
		requests: make(map[string]lobby.JoinRequest),
	}
}

func (m *mockLobbyStore) GetByID(_ context.Context, id string) (lobby.Lobby, error) {
	l, ok := m.lobbies[id]
	if !ok {
		return lobby.Lobby{}, errors.New("not found")
	}
	return l, nil
}

func (m *mockLobbyStore) Save(_ context.Context, l lobby.Lobby) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.lobbies[l.ID] = l
	return nil
}

func (m *mockLobbyStore) ListByStatus(_ context.Context, status string) ([]lobby.Lobby, error) {
	var out []lobby.Lobby
	for _, l := range m.lobbies {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLobbyStore) GetRequest(_ context.Context, id string) (lobby.JoinRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return lobby.JoinRequest{}, errors.New("not found")
	}
	return r, nil
}

func (m *mockLobbyStore) SaveRequest(_ context.Context, r lobby.JoinRequest) error {
	m.requests[r.ID] = r
	return nil
}

func (m *mockLobbyStore) ListPendingByLobby(_ context.Context, lobbyID string) ([]lobby.JoinRequest, error) {
	var out []lobby.JoinRequest
	for _, r := range m.requests {
		if r.LobbyID == lobbyID && r.Status == lobby.RequestPending {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockBroadcaster records broadcast events per lobby.
type mockBroadcaster struct {
	events map[string][]event.Event
	closed []string
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{events: make(map[string][]event.Event)}
}

func (m *mockBroadcaster) Broadcast(lobbyID string, evt event.Event) {
	m.events[lobbyID] = append(m.events[lobbyID], evt)
}

func (m *mockBroadcaster) CloseLobby(lobbyID string) {
	m.closed = append(m.closed, lobbyID)
}

// mockResetter counts Clear calls.
type mockResetter struct{ cleared int }

func (m *mockResetter) Clear() { m.cleared++ }

func seedLobby(store *mockLobbyStore, id, hostID, status string) lobby.Lobby {
	l := lobby.Lobby{
		ID:             id,
		HostID:         hostID,
		Title:          "Morning session",
		ScheduledStart: time.Now(),
		Status:         status,
		CreatedAt:      time.Now(),
	}
	store.lobbies[id] = l
	return l
}

// --- ExecuteOpenLobby / ExecuteActivateLobby tests ---

func TestExecuteOpenLobby_Valid(t *testing.T) {
	store := newMockLobbyStore()
	l, err := ExecuteOpenLobby(context.Background(), OpenLobbyInput{
		HostID: "coach-1",
		Title:  "HIIT together",
	}, OpenLobbyDeps{LobbyStore: store})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Status != lobby.StatusOpen {
		t.Errorf("expected open, got %s", l.Status)
	}
	if _, ok := store.lobbies[l.ID]; !ok {
		t.Error("expected lobby to be persisted")
	}
}

func TestExecuteOpenLobby_RequiresTitle(t *testing.T) {
	store := newMockLobbyStore()
	_, err := ExecuteOpenLobby(context.Background(), OpenLobbyInput{
		HostID: "coach-1",
	}, OpenLobbyDeps{LobbyStore: store})
	if !errors.Is(err, lobby.ErrEmptyTitle) {
		t.Errorf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestExecuteActivateLobby_OnlyHost(t *testing.T) {
	store := newMockLobbyStore()
	seedLobby(store, "lobby-1", "coach-1", lobby.StatusOpen)

	_, err := ExecuteActivateLobby(context.Background(), ActivateLobbyInput{
		LobbyID: "lobby-1",
		HostID:  "someone-else",
	}, OpenLobbyDeps{LobbyStore: store})
	if !errors.Is(err, ErrNotLobbyHost) {
		t.Errorf("expected ErrNotLobbyHost, got %v", err)
	}

	l, err := ExecuteActivateLobby(context.Background(), ActivateLobbyInput{
		LobbyID: "lobby-1",
		HostID:  "coach-1",
	}, OpenLobbyDeps{LobbyStore: store})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Status != lobby.StatusActive {
		t.Errorf("expected active, got %s", l.Status)
	}
}

// --- ExecuteRequestJoin tests ---

func TestExecuteRequestJoin_BroadcastsToRoom(t *testing.T) {
	store := newMockLobbyStore()
	bc := newMockBroadcaster()
	seedLobby(store, "lobby-1", "coach-1", lobby.StatusOpen)

	r, err := ExecuteRequestJoin(context.Background(), RequestJoinInput{
		LobbyID:   "lobby-1",
		AccountID: "member-1",
	}, RequestJoinDeps{LobbyStore: store, RequestStore: store, Broadcaster: bc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != lobby.RequestPending {
		t.Errorf("expected pending, got %s", r.Status)
	}
	evts := bc.events["lobby-1"]
	if len(evts) != 1 || evts[0].Type != event.TypeJoinRequest {
		t.Fatalf("expected one join_request broadcast, got %v", evts)
	}
}

func TestExecuteRequestJoin_ClosedLobby(t *testing.T) {
	store := newMockLobbyStore()
	seedLobby(store, "lobby-1", "coach-1", lobby.StatusEnded)

	_, err := ExecuteRequestJoin(context.Background(), RequestJoinInput{
		LobbyID:   "lobby-1",
		AccountID: "member-1",
	}, RequestJoinDeps{LobbyStore: store, RequestStore: store})
	if !errors.Is(err, ErrLobbyClosed) {
		t.Errorf("expected ErrLobbyClosed, got %v", err)
	}
}

// --- ExecuteDecideJoin tests ---

func TestExecuteDecideJoin_ApproveBroadcastsMemberJoined(t *testing.T) {
	store := newMockLobbyStore()
	bc := newMockBroadcaster()
	seedLobby(store, "lobby-1", "coach-1", lobby.StatusOpen)
	store.requests["req-1"] = lobby.JoinRequest{
		ID: "req-1", LobbyID: "lobby-1", AccountID: "member-1",
		Status: lobby.RequestPending, CreatedAt: time.Now(),
	}

	r, err := ExecuteDecideJoin(context.Background(), DecideJoinInput{
		RequestID: "req-1",
		HostID:    "coach-1",
		Approve:   true,
	}, DecideJoinDeps{LobbyStore: store, RequestStore: store, Broadcaster: bc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != lobby.RequestApproved {
		t.Errorf("expected approved, got %s", r.Status)
	}
	if r.DecidedAt.IsZero() {
		t.Error("expected DecidedAt to be set")
	}
	evts := bc.events["lobby-1"]
	if len(evts) != 1 || evts[0].Type != event.TypeMemberJoined {
		t.Fatalf("expected one member_joined broadcast, got %v", evts)
	}
}

func TestExecuteDecideJoin_DenyDoesNotBroadcast(t *testing.T) {
	store := newMockLobbyStore()
	bc := newMockBroadcaster()
	seedLobby(store, "lobby-1", "coach-1", lobby.StatusOpen)
	store.requests["req-1"] = lobby.JoinRequest{
		ID: "req-1", LobbyID: "lobby-1", AccountID: "member-1",
		Status: lobby.RequestPending, CreatedAt: time.Now(),
	}

	r, err := ExecuteDecideJoin(context.Background(), DecideJoinInput{
		RequestID: "req-1",
		HostID:    "coach-1",
		Approve:   false,
	}, DecideJoinDeps{LobbyStore: store, RequestStore: store, Broadcaster: bc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != lobby.RequestDenied {
		t.Errorf("expected denied, got %s", r.Status)
	}
	if len(bc.events["lobby-1"]) != 0 {
		t.Error("expected no broadcast on denial")
	}
}

func TestExecuteDecideJoin_AlreadyDecided(t *testing.T) {
	store := newMockLobbyStore()
	seedLobby(store, "lobby-1", "coach-1", lobby.StatusOpen)
	store.requests["req-1"] = lobby.JoinRequest{
		ID: "req-1", LobbyID: "lobby-1", AccountID: "member-1",
		Status: lobby.RequestApproved, CreatedAt: time.Now(), DecidedAt: time.Now(),
	}

	_, err := ExecuteDecideJoin(context.Background(), DecideJoinInput{
		RequestID: "req-1",
		HostID:    "coach-1",
		Approve:   true,
	}, DecideJoinDeps{LobbyStore: store, RequestStore: store})
	if !errors.Is(err, lobby.ErrAlreadyDecided) {
		t.Errorf("expected ErrAlreadyDecided, got %v", err)
	}
}

// --- ExecuteCleanupLobby tests ---

func TestExecuteCleanupLobby_FullTeardown(t *testing.T) {
	store := newMockLobbyStore()
	bc := newMockBroadcaster()
	reset := &mockResetter{}
	seedLobby(store, "lobby-1", "coach-1", lobby.StatusActive)
	store.requests["req-1"] = lobby.JoinRequest{
		ID: "req-1", LobbyID: "lobby-1", AccountID: "member-1",
		Status: lobby.RequestPending, CreatedAt: time.Now(),
	}
	store.requests["req-2"] = lobby.JoinRequest{
		ID: "req-2", LobbyID: "lobby-1", AccountID: "member-2",
		Status: lobby.RequestApproved, CreatedAt: time.Now(), DecidedAt: time.Now(),
	}

	err := ExecuteCleanupLobby(context.Background(), CleanupLobbyInput{
		LobbyID: "lobby-1",
		Reason:  CleanupReasonAbandoned,
	}, CleanupLobbyDeps{
		LobbyStore:   store,
		RequestStore: store,
		Broadcaster:  bc,
		RoomCloser:   bc,
		Dedup:        reset,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.lobbies["lobby-1"].Status; got != lobby.StatusAbandoned {
		t.Errorf("expected abandoned, got %s", got)
	}
	if got := store.requests["req-1"].Status; got != lobby.RequestExpired {
		t.Errorf("expected pending request expired, got %s", got)
	}
	if got := store.requests["req-2"].Status; got != lobby.RequestApproved {
		t.Errorf("expected decided request untouched, got %s", got)
	}
	evts := bc.events["lobby-1"]
	if len(evts) != 1 || evts[0].Type != event.TypeLobbyClosed {
		t.Fatalf("expected lobby_closed broadcast, got %v", evts)
	}
	if len(bc.closed) != 1 || bc.closed[0] != "lobby-1" {
		t.Errorf("expected room to be closed, got %v", bc.closed)
	}
	if reset.cleared != 1 {
		t.Errorf("expected dedup state reset once, got %d", reset.cleared)
	}
}

func TestExecuteCleanupLobby_HostEndedSetsEnded(t *testing.T) {
	store := newMockLobbyStore()
	seedLobby(store, "lobby-1", "coach-1", lobby.StatusOpen)

	err := ExecuteCleanupLobby(context.Background(), CleanupLobbyInput{
		LobbyID: "lobby-1",
		Reason:  CleanupReasonEnded,
	}, CleanupLobbyDeps{LobbyStore: store, RequestStore: store})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.lobbies["lobby-1"].Status; got != lobby.StatusEnded {
		t.Errorf("expected ended, got %s", got)
	}
}

func TestExecuteCleanupLobby_BestEffortContinuesPastFailures(t *testing.T) {
	store := newMockLobbyStore()
	bc := newMockBroadcaster()
	seedLobby(store, "lobby-1", "coach-1", lobby.StatusOpen)
	store.saveErr = errors.New("disk full")

	err := ExecuteCleanupLobby(context.Background(), CleanupLobbyInput{
		LobbyID: "lobby-1",
		Reason:  CleanupReasonAbandoned,
	}, CleanupLobbyDeps{
		LobbyStore:   store,
		RequestStore: store,
		Broadcaster:  bc,
		RoomCloser:   bc,
	})
	if err == nil {
		t.Fatal("expected joined error from failed save")
	}
	// The status write failed but the room must still be torn down.
	if len(bc.closed) != 1 {
		t.Errorf("expected room closed despite save failure, got %v", bc.closed)
	}
	if len(bc.events["lobby-1"]) != 1 {
		t.Error("expected lobby_closed broadcast despite save failure")
	}
}

// --- ExecuteRecoverLobbies tests ---

func TestExecuteRecoverLobbies_AbandonsStale(t *testing.T) {
	store := newMockLobbyStore()
	bc := newMockBroadcaster()
	seedLobby(store, "stale-open", "coach-1", lobby.StatusOpen)
	seedLobby(store, "stale-active", "coach-2", lobby.StatusActive)
	seedLobby(store, "done", "coach-3", lobby.StatusEnded)

	recovered, err := ExecuteRecoverLobbies(context.Background(), RecoverLobbiesDeps{
		CleanupDeps: CleanupLobbyDeps{
			LobbyStore:   store,
			RequestStore: store,
			Broadcaster:  bc,
			RoomCloser:   bc,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recovered != 2 {
		t.Errorf("expected 2 recovered, got %d", recovered)
	}
	if got := store.lobbies["stale-open"].Status; got != lobby.StatusAbandoned {
		t.Errorf("expected stale-open abandoned, got %s", got)
	}
	if got := store.lobbies["stale-active"].Status; got != lobby.StatusAbandoned {
		t.Errorf("expected stale-active abandoned, got %s", got)
	}
	if got := store.lobbies["done"].Status; got != lobby.StatusEnded {
		t.Errorf("expected terminal lobby untouched, got %s", got)
	}
}
