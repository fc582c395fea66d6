package web

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"fitclub/internal/adapters/http/middleware"
	"fitclub/internal/application/orchestrators"
	"fitclub/internal/application/projections"
	accountDomain "fitclub/internal/domain/account"
	announcementDomain "fitclub/internal/domain/announcement"
	lobbyDomain "fitclub/internal/domain/lobby"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err.Error())
	}
}

// renderMarkdown converts announcement markdown to HTML, falling back to the
// raw text on renderer errors.
func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return md
	}
	return buf.String()
}

func registerRoutes(mux *http.ServeMux) {
	requireAuth := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(h)
	}
	hostRoles := middleware.RequireRole(accountDomain.RoleCoach, accountDomain.RoleAdmin)
	adminOnly := middleware.RequireRole(accountDomain.RoleAdmin)

	mux.HandleFunc("GET /healthz", handleHealthz)

	mux.HandleFunc("POST /api/register", handleRegister)
	mux.HandleFunc("POST /api/login", handleLogin)
	mux.Handle("POST /api/logout", requireAuth(handleLogout))
	mux.Handle("GET /api/me", requireAuth(handleMe))

	mux.Handle("POST /api/onboarding/role", requireAuth(handleSelectRole))
	mux.Handle("POST /api/onboarding/days", requireAuth(handleConfigureDays))
	mux.Handle("POST /api/onboarding/duration", requireAuth(handleSelectDuration))

	mux.Handle("GET /api/plan/week", requireAuth(handleWeeklyPlan))
	mux.Handle("GET /api/dashboard", requireAuth(handleDashboard))
	mux.Handle("POST /api/sessions/complete", requireAuth(handleCompleteSession))

	mux.Handle("GET /api/lobbies", requireAuth(handleListLobbies))
	mux.Handle("POST /api/lobbies", hostRoles(http.HandlerFunc(handleOpenLobby)))
	mux.Handle("POST /api/lobbies/{id}/join", requireAuth(handleJoinLobby))
	mux.Handle("POST /api/lobbies/{id}/activate", requireAuth(handleActivateLobby))
	mux.Handle("POST /api/lobbies/{id}/end", requireAuth(handleEndLobby))
	mux.Handle("POST /api/requests/{id}/decide", requireAuth(handleDecideJoin))

	mux.Handle("GET /api/announcements", requireAuth(handleListAnnouncements))
	mux.Handle("POST /api/announcements", hostRoles(http.HandlerFunc(handleCreateAnnouncement)))

	mux.Handle("GET /api/stats", adminOnly(http.HandlerFunc(handleStats)))

	mux.Handle("GET /ws", requireAuth(handleWS))
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// accountView is the account shape returned to clients. The password hash
// never leaves the server.
type accountView struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	DisplayName    string   `json:"display_name"`
	Role           string   `json:"role"`
	OnboardingStep string   `json:"onboarding_step"`
	WorkoutDays    []string `json:"workout_days"`
	SessionMinutes int      `json:"session_minutes"`
	ReminderHour   int      `json:"reminder_hour"`
	Onboarded      bool     `json:"onboarded"`
}

func toAccountView(a accountDomain.Account) accountView {
	days := a.WorkoutDays
	if days == nil {
		days = []string{}
	}
	return accountView{
		ID:             a.ID,
		Email:          a.Email,
		DisplayName:    a.DisplayName,
		Role:           a.Role,
		OnboardingStep: a.OnboardingStep,
		WorkoutDays:    days,
		SessionMinutes: a.SessionMinutes,
		ReminderHour:   a.ReminderHour,
		Onboarded:      a.IsOnboarded(),
	}
}

func handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := orchestrators.ExecuteRegisterAccount(r.Context(),
		orchestrators.RegisterAccountInput{Email: req.Email, DisplayName: req.DisplayName, Password: req.Password},
		orchestrators.RegisterAccountDeps{AccountStore: stores.AccountStore})
	if err == orchestrators.ErrEmailTaken {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := sessions.Create(a.ID, a.Email, a.Role)
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, toAccountView(a))
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := orchestrators.ExecuteLogin(r.Context(),
		orchestrators.LoginInput{Email: req.Email, Password: req.Password},
		orchestrators.LoginDeps{AccountStore: stores.AccountStore})
	if err != nil {
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	token, err := sessions.Create(a.ID, a.Email, a.Role)
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token)
	writeJSON(w, http.StatusOK, toAccountView(a))
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.GetSessionToken(r); token != "" {
		sessions.Delete(token)
	}
	middleware.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	a, err := stores.AccountStore.GetByID(r.Context(), sess.AccountID)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountView(a))
}

func handleSelectRole(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	var req struct {
		Role string `json:"role"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := orchestrators.ExecuteSelectRole(r.Context(),
		orchestrators.SelectRoleInput{AccountID: sess.AccountID, Role: req.Role},
		orchestrators.OnboardingDeps{AccountStore: stores.AccountStore})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Keep the session's role in sync for RequireRole checks.
	if token := middleware.GetSessionToken(r); token != "" {
		sess.Role = a.Role
		sessions.Update(token, sess)
	}
	writeJSON(w, http.StatusOK, toAccountView(a))
}

func handleConfigureDays(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	var req struct {
		Days []string `json:"days"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := orchestrators.ExecuteConfigureWorkoutDays(r.Context(),
		orchestrators.ConfigureWorkoutDaysInput{AccountID: sess.AccountID, Days: req.Days},
		orchestrators.OnboardingDeps{AccountStore: stores.AccountStore})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// A schedule change invalidates reminders derived from the old days.
	if _, err := orchestrators.ExecuteScheduleReminders(r.Context(),
		orchestrators.ScheduleRemindersInput{AccountID: a.ID},
		orchestrators.ScheduleRemindersDeps{
			AccountStore:      stores.AccountStore,
			NotificationStore: stores.NotificationStore,
		}); err != nil {
		slog.Error("reminder_reschedule_failed", "account_id", a.ID, "error", err.Error())
	}

	writeJSON(w, http.StatusOK, toAccountView(a))
}

func handleSelectDuration(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a, err := orchestrators.ExecuteSelectDuration(r.Context(),
		orchestrators.SelectDurationInput{AccountID: sess.AccountID, Minutes: req.Minutes},
		orchestrators.OnboardingDeps{AccountStore: stores.AccountStore})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, toAccountView(a))
}

func handleWeeklyPlan(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	view, err := projections.QueryGetWeeklyPlan(r.Context(),
		projections.GetWeeklyPlanInput{AccountID: sess.AccountID, Now: timeNow()},
		projections.GetWeeklyPlanDeps{
			AccountStore: stores.AccountStore,
			SessionStore: stores.SessionStore,
		})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// announcementJSON is an announcement with its markdown body rendered.
type announcementJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	BodyHTML    string `json:"body_html"`
	PublishedAt string `json:"published_at"`
}

// dashboardJSON is the dashboard response with rendered announcements.
type dashboardJSON struct {
	DisplayName   string                     `json:"display_name"`
	Role          string                     `json:"role"`
	TodayState    string                     `json:"today_state"`
	TodayMinutes  int                        `json:"today_minutes"`
	WeekMinutes   int                        `json:"week_minutes"`
	StreakDays    int                        `json:"streak_days"`
	OpenLobbies   []projections.LobbySummary `json:"open_lobbies"`
	Announcements []announcementJSON         `json:"announcements"`
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	view, err := projections.QueryGetDashboard(r.Context(),
		projections.GetDashboardInput{AccountID: sess.AccountID, Now: timeNow()},
		projections.GetDashboardDeps{
			AccountStore:      stores.AccountStore,
			SessionStore:      stores.SessionStore,
			LobbyStore:        stores.LobbyStore,
			AnnouncementStore: stores.AnnouncementStore,
		})
	if err != nil {
		internalError(w, err)
		return
	}

	resp := dashboardJSON{
		DisplayName:   view.DisplayName,
		Role:          view.Role,
		TodayState:    view.TodayState,
		TodayMinutes:  view.TodayMinutes,
		WeekMinutes:   view.WeekMinutes,
		StreakDays:    view.StreakDays,
		OpenLobbies:   view.OpenLobbies,
		Announcements: []announcementJSON{},
	}
	for _, an := range view.Announcements {
		resp.Announcements = append(resp.Announcements, announcementJSON{
			ID:          an.ID,
			Title:       an.Title,
			BodyHTML:    renderMarkdown(an.Body),
			PublishedAt: an.PublishedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	var req struct {
		Minutes int    `json:"minutes"`
		Kind    string `json:"kind"`
		LobbyID string `json:"lobby_id"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := orchestrators.ExecuteCompleteSession(r.Context(),
		orchestrators.CompleteSessionInput{
			AccountID: sess.AccountID,
			Minutes:   req.Minutes,
			Kind:      req.Kind,
			LobbyID:   req.LobbyID,
		},
		orchestrators.CompleteSessionDeps{
			AccountStore: stores.AccountStore,
			SessionStore: stores.SessionStore,
		})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func handleListLobbies(w http.ResponseWriter, r *http.Request) {
	out := []projections.LobbySummary{}
	for _, status := range []string{lobbyDomain.StatusOpen, lobbyDomain.StatusActive} {
		lobbies, err := stores.LobbyStore.ListByStatus(r.Context(), status)
		if err != nil {
			internalError(w, err)
			return
		}
		for _, l := range lobbies {
			out = append(out, projections.LobbySummary{
				ID:             l.ID,
				HostID:         l.HostID,
				Title:          l.Title,
				ScheduledStart: l.ScheduledStart.Format(time.RFC3339),
				Status:         l.Status,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func handleOpenLobby(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	var req struct {
		Title          string `json:"title"`
		ScheduledStart string `json:"scheduled_start"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var start time.Time
	if req.ScheduledStart != "" {
		var err error
		start, err = time.Parse(time.RFC3339, req.ScheduledStart)
		if err != nil {
			http.Error(w, "scheduled_start must be RFC 3339", http.StatusBadRequest)
			return
		}
	}

	l, err := orchestrators.ExecuteOpenLobby(r.Context(),
		orchestrators.OpenLobbyInput{HostID: sess.AccountID, Title: req.Title, ScheduledStart: start},
		orchestrators.OpenLobbyDeps{LobbyStore: stores.LobbyStore})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": l.ID, "status": l.Status})
}

func handleJoinLobby(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	req, err := orchestrators.ExecuteRequestJoin(r.Context(),
		orchestrators.RequestJoinInput{LobbyID: r.PathValue("id"), AccountID: sess.AccountID},
		orchestrators.RequestJoinDeps{
			LobbyStore:   stores.LobbyStore,
			RequestStore: stores.RequestStore,
			Broadcaster:  hub,
		})
	if err == orchestrators.ErrLobbyClosed {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"request_id": req.ID, "status": req.Status})
}

func handleActivateLobby(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	l, err := orchestrators.ExecuteActivateLobby(r.Context(),
		orchestrators.ActivateLobbyInput{LobbyID: r.PathValue("id"), HostID: sess.AccountID},
		orchestrators.OpenLobbyDeps{LobbyStore: stores.LobbyStore})
	if err == orchestrators.ErrNotLobbyHost {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": l.ID, "status": l.Status})
}

func handleEndLobby(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	lobbyID := r.PathValue("id")

	l, err := stores.LobbyStore.GetByID(r.Context(), lobbyID)
	if err != nil {
		http.Error(w, "lobby not found", http.StatusNotFound)
		return
	}
	if l.HostID != sess.AccountID && !middleware.IsAdmin(r.Context()) {
		http.Error(w, "only the lobby host can do this", http.StatusForbidden)
		return
	}

	// Best-effort teardown: partial failures are logged, not surfaced, so the
	// client always sees the lobby as closed.
	if err := orchestrators.ExecuteCleanupLobby(r.Context(),
		orchestrators.CleanupLobbyInput{LobbyID: lobbyID, Reason: orchestrators.CleanupReasonEnded},
		cleanupDeps()); err != nil {
		slog.Error("lobby_cleanup_partial", "lobby_id", lobbyID, "error", err.Error())
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": lobbyID, "status": lobbyDomain.StatusEnded})
}

// cleanupDeps assembles the lobby cleanup dependency set from the globals.
func cleanupDeps() orchestrators.CleanupLobbyDeps {
	return orchestrators.CleanupLobbyDeps{
		LobbyStore:   stores.LobbyStore,
		RequestStore: stores.RequestStore,
		Broadcaster:  hub,
		RoomCloser:   hub,
		Dedup:        dedupCache,
	}
}

func handleDecideJoin(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	jr, err := orchestrators.ExecuteDecideJoin(r.Context(),
		orchestrators.DecideJoinInput{RequestID: r.PathValue("id"), HostID: sess.AccountID, Approve: req.Approve},
		orchestrators.DecideJoinDeps{
			LobbyStore:   stores.LobbyStore,
			RequestStore: stores.RequestStore,
			Broadcaster:  hub,
		})
	if err == orchestrators.ErrNotLobbyHost {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if err == lobbyDomain.ErrAlreadyDecided {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"request_id": jr.ID, "status": jr.Status})
}

func handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	now := timeNow()

	published, err := stores.AnnouncementStore.ListPublished(r.Context(),
		now.Format("2006-01-02T15:04:05.999999999Z07:00"))
	if err != nil {
		internalError(w, err)
		return
	}

	out := []announcementJSON{}
	for _, an := range published {
		if !an.IsVisible(now, sess.Role) {
			continue
		}
		out = append(out, announcementJSON{
			ID:          an.ID,
			Title:       an.Title,
			BodyHTML:    renderMarkdown(an.Body),
			PublishedAt: an.PublishedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	var req struct {
		Title     string `json:"title"`
		Body      string `json:"body"`
		Audience  string `json:"audience"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	now := timeNow()
	an := announcementDomain.Announcement{
		ID:          generateID(),
		Title:       req.Title,
		Body:        req.Body,
		Audience:    req.Audience,
		PublishedAt: now,
		CreatedBy:   sess.AccountID,
		CreatedAt:   now,
	}
	if an.Audience == "" {
		an.Audience = announcementDomain.AudienceAll
	}
	if req.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			http.Error(w, "expires_at must be RFC 3339", http.StatusBadRequest)
			return
		}
		an.ExpiresAt = expires
	}
	if err := an.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := stores.AnnouncementStore.Save(r.Context(), an); err != nil {
		internalError(w, err)
		return
	}

	slog.Info("announcement_event", "event", "announcement_published",
		"announcement_id", an.ID, "audience", an.Audience)
	writeJSON(w, http.StatusCreated, map[string]string{"id": an.ID})
}

func handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"dedup": dedupCache.Stats(),
		"perf":  perfCollector.Snapshot(timeNow().Add(-time.Hour), 10),
	})
}

func handleWS(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	lobbyID := r.URL.Query().Get("lobby")
	if lobbyID == "" {
		http.Error(w, "lobby query parameter is required", http.StatusBadRequest)
		return
	}

	l, err := stores.LobbyStore.GetByID(r.Context(), lobbyID)
	if err != nil {
		http.Error(w, "lobby not found", http.StatusNotFound)
		return
	}
	if !l.CanJoin() {
		http.Error(w, "lobby is closed", http.StatusGone)
		return
	}

	hub.HandleWS(w, r, sess.AccountID, lobbyID)
}
