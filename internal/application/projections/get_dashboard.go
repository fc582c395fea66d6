package projections

import (
	"context"
	"time"

	"fitclub/internal/domain/account"
	"fitclub/internal/domain/announcement"
	"fitclub/internal/domain/lobby"
	"fitclub/internal/domain/plan"
	"fitclub/internal/domain/session"
)

// streakLookbackDays bounds how far back the streak calculation scans.
const streakLookbackDays = 84

const storeDateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// DashboardAccountStore defines the account lookup for the dashboard.
type DashboardAccountStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// DashboardSessionStore defines the session queries for the dashboard.
type DashboardSessionStore interface {
	ListByAccountAndDateRange(ctx context.Context, accountID, from, to string) ([]session.Session, error)
	SumMinutesByAccountAndDateRange(ctx context.Context, accountID, from, to string) (int, error)
}

// DashboardLobbyStore defines the lobby query for the dashboard.
type DashboardLobbyStore interface {
	ListByStatus(ctx context.Context, status string) ([]lobby.Lobby, error)
}

// DashboardAnnouncementStore defines the announcement query for the dashboard.
type DashboardAnnouncementStore interface {
	ListPublished(ctx context.Context, now string) ([]announcement.Announcement, error)
}

// GetDashboardInput holds the account and reference time for the view.
type GetDashboardInput struct {
	AccountID string
	Now       time.Time // zero means time.Now
}

// GetDashboardDeps holds dependencies for the dashboard projection.
type GetDashboardDeps struct {
	AccountStore      DashboardAccountStore
	SessionStore      DashboardSessionStore
	LobbyStore        DashboardLobbyStore
	AnnouncementStore DashboardAnnouncementStore
}

// LobbySummary is one joinable lobby on the dashboard.
type LobbySummary struct {
	ID             string `json:"id"`
	HostID         string `json:"host_id"`
	Title          string `json:"title"`
	ScheduledStart string `json:"scheduled_start"`
	Status         string `json:"status"`
}

// AnnouncementSummary is one visible announcement on the dashboard. Body is
// raw markdown; the HTTP layer renders it.
type AnnouncementSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	PublishedAt string `json:"published_at"`
}

// DashboardView is the dashboard response model.
type DashboardView struct {
	DisplayName   string                `json:"display_name"`
	Role          string                `json:"role"`
	TodayState    string                `json:"today_state"`
	TodayMinutes  int                   `json:"today_minutes"`
	WeekMinutes   int                   `json:"week_minutes"`
	StreakDays    int                   `json:"streak_days"`
	OpenLobbies   []LobbySummary        `json:"open_lobbies"`
	Announcements []AnnouncementSummary `json:"announcements"`
}

// QueryGetDashboard assembles the landing view: today's plan state, the
// current training streak, minutes this week, joinable lobbies, and the
// announcements visible to the account's role.
// PRE: account exists and has completed onboarding
// POST: Returns a fully populated view; empty slices, never nil lookups
func QueryGetDashboard(ctx context.Context, input GetDashboardInput, deps GetDashboardDeps) (DashboardView, error) {
	a, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return DashboardView{}, err
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	lookbackStart := now.AddDate(0, 0, -streakLookbackDays)
	sessions, err := deps.SessionStore.ListByAccountAndDateRange(ctx,
		a.ID, plan.DateKey(lookbackStart), plan.DateKey(now))
	if err != nil {
		return DashboardView{}, err
	}
	minutesByDate := make(map[string]int, len(sessions))
	for _, s := range sessions {
		minutesByDate[s.Date] += s.Minutes
	}

	weekStart := plan.WeekStart(now)
	weekMinutes, err := deps.SessionStore.SumMinutesByAccountAndDateRange(ctx,
		a.ID, plan.DateKey(weekStart), plan.DateKey(weekStart.AddDate(0, 0, 6)))
	if err != nil {
		return DashboardView{}, err
	}

	view := DashboardView{
		DisplayName:   a.DisplayName,
		Role:          a.Role,
		TodayState:    todayState(&a, now, minutesByDate),
		TodayMinutes:  minutesByDate[plan.DateKey(now)],
		WeekMinutes:   weekMinutes,
		StreakDays:    streak(&a, now, minutesByDate),
		OpenLobbies:   []LobbySummary{},
		Announcements: []AnnouncementSummary{},
	}

	for _, status := range []string{lobby.StatusOpen, lobby.StatusActive} {
		lobbies, err := deps.LobbyStore.ListByStatus(ctx, status)
		if err != nil {
			return DashboardView{}, err
		}
		for _, l := range lobbies {
			view.OpenLobbies = append(view.OpenLobbies, LobbySummary{
				ID:             l.ID,
				HostID:         l.HostID,
				Title:          l.Title,
				ScheduledStart: l.ScheduledStart.Format(time.RFC3339),
				Status:         l.Status,
			})
		}
	}

	published, err := deps.AnnouncementStore.ListPublished(ctx, now.Format(storeDateLayout))
	if err != nil {
		return DashboardView{}, err
	}
	for _, an := range published {
		if !an.IsVisible(now, a.Role) {
			continue
		}
		view.Announcements = append(view.Announcements, AnnouncementSummary{
			ID:          an.ID,
			Title:       an.Title,
			Body:        an.Body,
			PublishedAt: an.PublishedAt.Format(time.RFC3339),
		})
	}

	return view, nil
}

// todayState reduces the weekly plan rules to today's single state.
func todayState(a *account.Account, now time.Time, minutesByDate map[string]int) string {
	today := plan.DateKey(now)
	switch {
	case minutesByDate[today] > 0:
		return plan.StateTodayDone
	case a.IsWorkoutDay(plan.DayOf(now)):
		return plan.StateTodayPending
	default:
		return plan.StateRest
	}
}

// streak counts consecutive completed workout days ending at today. Rest
// days never break a streak, and today only counts once something is
// logged; an unfinished today leaves the streak intact.
func streak(a *account.Account, now time.Time, minutesByDate map[string]int) int {
	if len(a.WorkoutDays) == 0 {
		return 0
	}

	count := 0
	for i := 0; i <= streakLookbackDays; i++ {
		date := now.AddDate(0, 0, -i)
		if !a.IsWorkoutDay(plan.DayOf(date)) {
			continue
		}
		if minutesByDate[plan.DateKey(date)] > 0 {
			count++
			continue
		}
		if i == 0 {
			continue // today still pending
		}
		break
	}
	return count
}
