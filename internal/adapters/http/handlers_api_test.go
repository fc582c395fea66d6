package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fitclub/internal/adapters/http/middleware"
	"fitclub/internal/adapters/http/perf"
	"fitclub/internal/adapters/realtime"
	"fitclub/internal/application/dedup"
	accountDomain "fitclub/internal/domain/account"
	announcementDomain "fitclub/internal/domain/announcement"
	lobbyDomain "fitclub/internal/domain/lobby"
	notificationDomain "fitclub/internal/domain/notification"
	sessionDomain "fitclub/internal/domain/session"
)

// --- Mock stores ---

type mockAccountStore struct {
	accounts map[string]accountDomain.Account
}

func (m *mockAccountStore) GetByID(_ context.Context, id string) (accountDomain.Account, error) {
	if a, ok := m.accounts[id]; ok {
		return a, nil
	}
	return accountDomain.Account{}, sql.ErrNoRows
}

func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (accountDomain.Account, error) {
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return accountDomain.Account{}, sql.ErrNoRows
}

func (m *mockAccountStore) Save(_ context.Context, a accountDomain.Account) error {
	m.accounts[a.ID] = a
	return nil
}

func (m *mockAccountStore) Count(_ context.Context) (int, error) {
	return len(m.accounts), nil
}

type mockSessionStore struct {
	sessions map[string]sessionDomain.Session
}

func (m *mockSessionStore) GetByID(_ context.Context, id string) (sessionDomain.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return sessionDomain.Session{}, sql.ErrNoRows
}

func (m *mockSessionStore) Save(_ context.Context, s sessionDomain.Session) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *mockSessionStore) ListByAccountAndDateRange(_ context.Context, accountID, from, to string) ([]sessionDomain.Session, error) {
	var out []sessionDomain.Session
	for _, s := range m.sessions {
		if s.AccountID == accountID && s.Date >= from && s.Date <= to {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessionStore) SumMinutesByAccountAndDateRange(ctx context.Context, accountID, from, to string) (int, error) {
	matched, err := m.ListByAccountAndDateRange(ctx, accountID, from, to)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, s := range matched {
		total += s.Minutes
	}
	return total, nil
}

type mockLobbyStore struct {
	lobbies  map[string]lobbyDomain.Lobby
	requests map[string]lobbyDomain.JoinRequest
}

func (m *mockLobbyStore) GetByID(_ context.Context, id string) (lobbyDomain.Lobby, error) {
	if l, ok := m.lobbies[id]; ok {
		return l, nil
	}
	return lobbyDomain.Lobby{}, sql.ErrNoRows
}

func (m *mockLobbyStore) Save(_ context.Context, l lobbyDomain.Lobby) error {
	m.lobbies[l.ID] = l
	return nil
}

func (m *mockLobbyStore) ListByStatus(_ context.Context, status string) ([]lobbyDomain.Lobby, error) {
	var out []lobbyDomain.Lobby
	for _, l := range m.lobbies {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLobbyStore) GetRequest(_ context.Context, id string) (lobbyDomain.JoinRequest, error) {
	if r, ok := m.requests[id]; ok {
		return r, nil
	}
	return lobbyDomain.JoinRequest{}, sql.ErrNoRows
}

func (m *mockLobbyStore) SaveRequest(_ context.Context, r lobbyDomain.JoinRequest) error {
	m.requests[r.ID] = r
	return nil
}

func (m *mockLobbyStore) ListPendingByLobby(_ context.Context, lobbyID string) ([]lobbyDomain.JoinRequest, error) {
	var out []lobbyDomain.JoinRequest
	for _, r := range m.requests {
		if r.LobbyID == lobbyID && r.Status == lobbyDomain.RequestPending {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockNotificationStore struct {
	notifications map[string]notificationDomain.Notification
}

func (m *mockNotificationStore) GetByID(_ context.Context, id string) (notificationDomain.Notification, error) {
	if n, ok := m.notifications[id]; ok {
		return n, nil
	}
	return notificationDomain.Notification{}, sql.ErrNoRows
}

func (m *mockNotificationStore) Save(_ context.Context, n notificationDomain.Notification) error {
	m.notifications[n.ID] = n
	return nil
}

func (m *mockNotificationStore) ListDue(_ context.Context, now string, limit int) ([]notificationDomain.Notification, error) {
	return nil, nil
}

func (m *mockNotificationStore) ListScheduledByAccountAndKind(_ context.Context, accountID, kind string) ([]notificationDomain.Notification, error) {
	var out []notificationDomain.Notification
	for _, n := range m.notifications {
		if n.AccountID == accountID && n.Kind == kind && n.Status == notificationDomain.StatusScheduled {
			out = append(out, n)
		}
	}
	return out, nil
}

type mockAnnouncementStore struct {
	announcements map[string]announcementDomain.Announcement
}

func (m *mockAnnouncementStore) GetByID(_ context.Context, id string) (announcementDomain.Announcement, error) {
	if a, ok := m.announcements[id]; ok {
		return a, nil
	}
	return announcementDomain.Announcement{}, sql.ErrNoRows
}

func (m *mockAnnouncementStore) Save(_ context.Context, a announcementDomain.Announcement) error {
	m.announcements[a.ID] = a
	return nil
}

func (m *mockAnnouncementStore) ListPublished(_ context.Context, now string) ([]announcementDomain.Announcement, error) {
	var out []announcementDomain.Announcement
	for _, a := range m.announcements {
		if !a.PublishedAt.IsZero() && a.PublishedAt.Format("2006-01-02T15:04:05.999999999Z07:00") <= now {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- Test helpers ---

// newMockStores returns a Stores with all mock stores initialized.
func newMockStores() *Stores {
	return &Stores{
		AccountStore:      &mockAccountStore{accounts: make(map[string]accountDomain.Account)},
		SessionStore:      &mockSessionStore{sessions: make(map[string]sessionDomain.Session)},
		LobbyStore:        &mockLobbyStore{lobbies: make(map[string]lobbyDomain.Lobby), requests: make(map[string]lobbyDomain.JoinRequest)},
		RequestStore:      &mockLobbyStore{lobbies: make(map[string]lobbyDomain.Lobby), requests: make(map[string]lobbyDomain.JoinRequest)},
		NotificationStore: &mockNotificationStore{notifications: make(map[string]notificationDomain.Notification)},
		AnnouncementStore: &mockAnnouncementStore{announcements: make(map[string]announcementDomain.Announcement)},
	}
}

// setupHandlerTest resets the package globals the handlers depend on.
func setupHandlerTest() *Stores {
	s := newMockStores()
	// One store serves lobbies and their join requests, as in production.
	lobbies := s.LobbyStore.(*mockLobbyStore)
	s.RequestStore = lobbies
	stores = s
	sessions = middleware.NewSessionStore()
	perfCollector = perf.NewCollector(perf.DefaultRingSize)
	dedupCache = dedup.New()
	hub = realtime.NewHub(nil)
	return s
}

// authRequest returns a request with the given session injected into context.
func authRequest(method, url, body string, sess middleware.Session) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	return req.WithContext(middleware.ContextWithSession(req.Context(), sess))
}

func seedWebAccount(s *Stores, id, role string) accountDomain.Account {
	a := accountDomain.Account{
		ID:             id,
		Email:          id + "@example.com",
		DisplayName:    "Test " + id,
		Role:           role,
		OnboardingStep: accountDomain.StepDone,
		WorkoutDays:    []string{"monday", "wednesday", "friday"},
		SessionMinutes: 30,
		ReminderHour:   7,
		CreatedAt:      time.Now(),
	}
	_ = a.SetPassword("correct horse battery")
	_ = s.AccountStore.Save(context.Background(), a)
	return a
}

func sessionFor(a accountDomain.Account) middleware.Session {
	return middleware.Session{AccountID: a.ID, Email: a.Email, Role: a.Role, CreatedAt: time.Now()}
}

// --- Tests: auth ---

func TestHandleRegister_FirstAccountIsAdmin(t *testing.T) {
	setupHandlerTest()
	req := httptest.NewRequest("POST", "/api/register",
		strings.NewReader(`{"email":"Pat@Example.com","display_name":"Pat","password":"a long enough password"}`))
	rec := httptest.NewRecorder()
	handleRegister(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var got accountView
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Role != accountDomain.RoleAdmin {
		t.Errorf("expected admin, got %s", got.Role)
	}
	if got.Email != "pat@example.com" {
		t.Errorf("expected lowercased email, got %s", got.Email)
	}

	var cookie bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "fitclub_session" && c.Value != "" {
			cookie = true
		}
	}
	if !cookie {
		t.Error("expected a session cookie on register")
	}
}

func TestHandleRegister_DuplicateEmail(t *testing.T) {
	s := setupHandlerTest()
	seedWebAccount(s, "existing", accountDomain.RoleMember)

	req := httptest.NewRequest("POST", "/api/register",
		strings.NewReader(`{"email":"existing@example.com","password":"a long enough password"}`))
	rec := httptest.NewRecorder()
	handleRegister(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("got %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	s := setupHandlerTest()
	seedWebAccount(s, "user-1", accountDomain.RoleMember)

	req := httptest.NewRequest("POST", "/api/login",
		strings.NewReader(`{"email":"user-1@example.com","password":"not it"}`))
	rec := httptest.NewRecorder()
	handleLogin(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandleMe(t *testing.T) {
	s := setupHandlerTest()
	a := seedWebAccount(s, "user-1", accountDomain.RoleMember)

	rec := httptest.NewRecorder()
	handleMe(rec, authRequest("GET", "/api/me", "", sessionFor(a)))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rec.Code, http.StatusOK)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not expose password material")
	}
	var got accountView
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Email != "user-1@example.com" || !got.Onboarded {
		t.Errorf("unexpected view: %+v", got)
	}
}

// --- Tests: onboarding ---

func TestHandleSelectRole(t *testing.T) {
	s := setupHandlerTest()
	a := seedWebAccount(s, "user-1", accountDomain.RoleMember)
	a.OnboardingStep = accountDomain.StepRoleSelect
	_ = s.AccountStore.Save(context.Background(), a)

	rec := httptest.NewRecorder()
	handleSelectRole(rec, authRequest("POST", "/api/onboarding/role", `{"role":"coach"}`, sessionFor(a)))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var got accountView
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Role != accountDomain.RoleCoach {
		t.Errorf("expected coach, got %s", got.Role)
	}
	if got.OnboardingStep != accountDomain.StepScheduleSetup {
		t.Errorf("expected schedule_setup, got %s", got.OnboardingStep)
	}
}

func TestHandleConfigureDays_SchedulesReminders(t *testing.T) {
	s := setupHandlerTest()
	a := seedWebAccount(s, "user-1", accountDomain.RoleMember)

	rec := httptest.NewRecorder()
	handleConfigureDays(rec, authRequest("POST", "/api/onboarding/days",
		`{"days":["monday","tuesday","wednesday","thursday","friday","saturday","sunday"]}`, sessionFor(a)))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	notifications := s.NotificationStore.(*mockNotificationStore).notifications
	if len(notifications) == 0 {
		t.Error("expected workout reminders scheduled after a day change")
	}
}

// --- Tests: sessions ---

func TestHandleCompleteSession(t *testing.T) {
	s := setupHandlerTest()
	a := seedWebAccount(s, "user-1", accountDomain.RoleMember)

	rec := httptest.NewRecorder()
	handleCompleteSession(rec, authRequest("POST", "/api/sessions/complete",
		`{"minutes":45,"kind":"solo"}`, sessionFor(a)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	saved := s.SessionStore.(*mockSessionStore).sessions
	if len(saved) != 1 {
		t.Fatalf("expected one session saved, got %d", len(saved))
	}
	for _, sess := range saved {
		if sess.Minutes != 45 || sess.Kind != sessionDomain.KindSolo {
			t.Errorf("unexpected session: %+v", sess)
		}
	}
}

// --- Tests: lobbies ---

func seedWebLobby(s *Stores, id, hostID, status string) lobbyDomain.Lobby {
	l := lobbyDomain.Lobby{
		ID: id, HostID: hostID, Title: "Morning run",
		ScheduledStart: time.Now().Add(time.Hour),
		Status:         status, CreatedAt: time.Now(),
	}
	_ = s.LobbyStore.Save(context.Background(), l)
	return l
}

func TestHandleOpenLobby(t *testing.T) {
	s := setupHandlerTest()
	coach := seedWebAccount(s, "coach-1", accountDomain.RoleCoach)

	rec := httptest.NewRecorder()
	handleOpenLobby(rec, authRequest("POST", "/api/lobbies", `{"title":"Evening spin"}`, sessionFor(coach)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var got map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != lobbyDomain.StatusOpen {
		t.Errorf("expected open, got %s", got["status"])
	}
}

func TestHandleJoinLobby(t *testing.T) {
	s := setupHandlerTest()
	seedWebAccount(s, "coach-1", accountDomain.RoleCoach)
	member := seedWebAccount(s, "member-1", accountDomain.RoleMember)
	seedWebLobby(s, "lobby-1", "coach-1", lobbyDomain.StatusOpen)

	req := authRequest("POST", "/api/lobbies/lobby-1/join", "", sessionFor(member))
	req.SetPathValue("id", "lobby-1")
	rec := httptest.NewRecorder()
	handleJoinLobby(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	requests := s.LobbyStore.(*mockLobbyStore).requests
	if len(requests) != 1 {
		t.Fatalf("expected one join request, got %d", len(requests))
	}
	for _, r := range requests {
		if r.Status != lobbyDomain.RequestPending {
			t.Errorf("expected pending, got %s", r.Status)
		}
	}
}

func TestHandleJoinLobby_ClosedLobby(t *testing.T) {
	s := setupHandlerTest()
	member := seedWebAccount(s, "member-1", accountDomain.RoleMember)
	seedWebLobby(s, "lobby-1", "coach-1", lobbyDomain.StatusEnded)

	req := authRequest("POST", "/api/lobbies/lobby-1/join", "", sessionFor(member))
	req.SetPathValue("id", "lobby-1")
	rec := httptest.NewRecorder()
	handleJoinLobby(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("got %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestHandleEndLobby_Host(t *testing.T) {
	s := setupHandlerTest()
	coach := seedWebAccount(s, "coach-1", accountDomain.RoleCoach)
	seedWebLobby(s, "lobby-1", "coach-1", lobbyDomain.StatusOpen)
	lobbies := s.LobbyStore.(*mockLobbyStore)
	lobbies.requests["req-1"] = lobbyDomain.JoinRequest{
		ID: "req-1", LobbyID: "lobby-1", AccountID: "member-1",
		Status: lobbyDomain.RequestPending, CreatedAt: time.Now(),
	}

	req := authRequest("POST", "/api/lobbies/lobby-1/end", "", sessionFor(coach))
	req.SetPathValue("id", "lobby-1")
	rec := httptest.NewRecorder()
	handleEndLobby(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	if got := lobbies.lobbies["lobby-1"].Status; got != lobbyDomain.StatusEnded {
		t.Errorf("expected ended, got %s", got)
	}
	if got := lobbies.requests["req-1"].Status; got != lobbyDomain.RequestExpired {
		t.Errorf("expected pending request expired, got %s", got)
	}
}

func TestHandleEndLobby_NotHost(t *testing.T) {
	s := setupHandlerTest()
	member := seedWebAccount(s, "member-1", accountDomain.RoleMember)
	seedWebLobby(s, "lobby-1", "coach-1", lobbyDomain.StatusOpen)

	req := authRequest("POST", "/api/lobbies/lobby-1/end", "", sessionFor(member))
	req.SetPathValue("id", "lobby-1")
	rec := httptest.NewRecorder()
	handleEndLobby(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

// --- Tests: announcements ---

func TestHandleCreateAndListAnnouncements(t *testing.T) {
	s := setupHandlerTest()
	coach := seedWebAccount(s, "coach-1", accountDomain.RoleCoach)
	member := seedWebAccount(s, "member-1", accountDomain.RoleMember)

	rec := httptest.NewRecorder()
	handleCreateAnnouncement(rec, authRequest("POST", "/api/announcements",
		`{"title":"Summer schedule","body":"**New** hours"}`, sessionFor(coach)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handleListAnnouncements(rec, authRequest("GET", "/api/announcements", "", sessionFor(member)))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rec.Code, http.StatusOK)
	}
	var got []announcementJSON
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 announcement, got %d", len(got))
	}
	if !strings.Contains(got[0].BodyHTML, "<strong>New</strong>") {
		t.Errorf("expected markdown rendered to HTML, got %q", got[0].BodyHTML)
	}
}

func TestHandleCreateAnnouncement_EscapesRawHTML(t *testing.T) {
	s := setupHandlerTest()
	coach := seedWebAccount(s, "coach-1", accountDomain.RoleCoach)

	rec := httptest.NewRecorder()
	handleCreateAnnouncement(rec, authRequest("POST", "/api/announcements",
		`{"title":"Note","body":"<script>alert(1)</script>"}`, sessionFor(coach)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, want %d", rec.Code, http.StatusCreated)
	}

	rec = httptest.NewRecorder()
	handleListAnnouncements(rec, authRequest("GET", "/api/announcements", "", sessionFor(coach)))
	if strings.Contains(rec.Body.String(), "<script>") {
		t.Error("raw HTML must be escaped in rendered announcements")
	}
}

// --- Tests: stats ---

func TestHandleStats(t *testing.T) {
	s := setupHandlerTest()
	admin := seedWebAccount(s, "admin-1", accountDomain.RoleAdmin)

	rec := httptest.NewRecorder()
	handleStats(rec, authRequest("GET", "/api/stats", "", sessionFor(admin)))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rec.Code, http.StatusOK)
	}
	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := got["dedup"]; !ok {
		t.Error("expected dedup stats")
	}
	if _, ok := got["perf"]; !ok {
		t.Error("expected perf snapshot")
	}
}

// --- Tests: websocket preconditions ---

func TestHandleWS_MissingLobbyParam(t *testing.T) {
	s := setupHandlerTest()
	member := seedWebAccount(s, "member-1", accountDomain.RoleMember)

	rec := httptest.NewRecorder()
	handleWS(rec, authRequest("GET", "/ws", "", sessionFor(member)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleWS_LobbyNotFound(t *testing.T) {
	s := setupHandlerTest()
	member := seedWebAccount(s, "member-1", accountDomain.RoleMember)

	rec := httptest.NewRecorder()
	handleWS(rec, authRequest("GET", "/ws?lobby=missing", "", sessionFor(member)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleWS_ClosedLobby(t *testing.T) {
	s := setupHandlerTest()
	member := seedWebAccount(s, "member-1", accountDomain.RoleMember)
	seedWebLobby(s, "lobby-1", "coach-1", lobbyDomain.StatusEnded)

	rec := httptest.NewRecorder()
	handleWS(rec, authRequest("GET", "/ws?lobby=lobby-1", "", sessionFor(member)))
	if rec.Code != http.StatusGone {
		t.Errorf("got %d, want %d", rec.Code, http.StatusGone)
	}
}
