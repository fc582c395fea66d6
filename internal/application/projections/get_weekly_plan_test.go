package projections

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitclub/internal/domain/account"
	"fitclub/internal/domain/announcement"
	"fitclub/internal/domain/lobby"
	"fitclub/internal/domain/plan"
	"fitclub/internal/domain/session"
)

// Shared mock stores for the projection tests.

type mockAccounts struct {
	accounts map[string]account.Account
}

func (m *mockAccounts) GetByID(_ context.Context, id string) (account.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return account.Account{}, errors.New("not found")
	}
	return a, nil
}

type mockSessions struct {
	sessions []session.Session
}

func (m *mockSessions) ListByAccountAndDateRange(_ context.Context, accountID, from, to string) ([]session.Session, error) {
	var out []session.Session
	for _, s := range m.sessions {
		if s.AccountID == accountID && s.Date >= from && s.Date <= to {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessions) SumMinutesByAccountAndDateRange(ctx context.Context, accountID, from, to string) (int, error) {
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

type mockLobbies struct {
	lobbies []lobby.Lobby
}

func (m *mockLobbies) ListByStatus(_ context.Context, status string) ([]lobby.Lobby, error) {
	var out []lobby.Lobby
	for _, l := range m.lobbies {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockAnnouncements struct {
	announcements []announcement.Announcement
}

func (m *mockAnnouncements) ListPublished(_ context.Context, now string) ([]announcement.Announcement, error) {
	var out []announcement.Announcement
	for _, a := range m.announcements {
		if !a.PublishedAt.IsZero() && a.PublishedAt.Format(storeDateLayout) <= now {
			out = append(out, a)
		}
	}
	return out, nil
}

// wednesdayNoon is a fixed reference inside a known week: 2025-06-02 is a Monday.
var wednesdayNoon = time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

func planAccount(days []string) *mockAccounts {
	return &mockAccounts{accounts: map[string]account.Account{
		"user-1": {
			ID:             "user-1",
			Email:          "user-1@example.com",
			DisplayName:    "Pat",
			Role:           account.RoleMember,
			OnboardingStep: account.StepDone,
			WorkoutDays:    days,
			SessionMinutes: 30,
			ReminderHour:   7,
			CreatedAt:      wednesdayNoon.AddDate(0, -1, 0),
		},
	}}
}

func loggedSession(date string, minutes int) session.Session {
	return session.Session{
		ID: "s-" + date, AccountID: "user-1", Date: date,
		Minutes: minutes, Kind: session.KindSolo,
		CompletedAt: wednesdayNoon,
	}
}

func TestQueryGetWeeklyPlan_DeriveStates(t *testing.T) {
	accounts := planAccount([]string{plan.Monday, plan.Wednesday, plan.Friday})
	sessions := &mockSessions{sessions: []session.Session{
		loggedSession("2025-06-02", 30), // Monday, done
	}}

	view, err := QueryGetWeeklyPlan(context.Background(),
		GetWeeklyPlanInput{AccountID: "user-1", Now: wednesdayNoon},
		GetWeeklyPlanDeps{AccountStore: accounts, SessionStore: sessions})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.WeekStart != "2025-06-02" {
		t.Errorf("expected week start 2025-06-02, got %s", view.WeekStart)
	}
	if len(view.Days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(view.Days))
	}

	want := []struct {
		name    string
		state   string
		minutes int
	}{
		{plan.Monday, plan.StateCompleted, 30},
		{plan.Tuesday, plan.StateRest, 0},
		{plan.Wednesday, plan.StateTodayPending, 0},
		{plan.Thursday, plan.StateRest, 0},
		{plan.Friday, plan.StateUpcoming, 0},
		{plan.Saturday, plan.StateRest, 0},
		{plan.Sunday, plan.StateRest, 0},
	}
	for i, w := range want {
		d := view.Days[i]
		if d.Name != w.name || d.State != w.state || d.Minutes != w.minutes {
			t.Errorf("day %d: expected %s/%s/%d, got %s/%s/%d",
				i, w.name, w.state, w.minutes, d.Name, d.State, d.Minutes)
		}
	}
}

func TestQueryGetWeeklyPlan_TodayDoneAndMissed(t *testing.T) {
	accounts := planAccount([]string{plan.Monday, plan.Tuesday, plan.Wednesday})
	sessions := &mockSessions{sessions: []session.Session{
		loggedSession("2025-06-04", 45), // today
	}}

	view, err := QueryGetWeeklyPlan(context.Background(),
		GetWeeklyPlanInput{AccountID: "user-1", Now: wednesdayNoon},
		GetWeeklyPlanDeps{AccountStore: accounts, SessionStore: sessions})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := view.Days[0].State; got != plan.StateMissed {
		t.Errorf("expected Monday missed, got %s", got)
	}
	if got := view.Days[1].State; got != plan.StateMissed {
		t.Errorf("expected Tuesday missed, got %s", got)
	}
	if got := view.Days[2].State; got != plan.StateTodayDone {
		t.Errorf("expected Wednesday today_done, got %s", got)
	}
	if got := view.Days[2].Minutes; got != 45 {
		t.Errorf("expected 45 minutes today, got %d", got)
	}
}

func TestQueryGetWeeklyPlan_SameDaySessionsAccumulate(t *testing.T) {
	accounts := planAccount([]string{plan.Wednesday})
	sessions := &mockSessions{sessions: []session.Session{
		loggedSession("2025-06-04", 20),
		{ID: "s-2", AccountID: "user-1", Date: "2025-06-04", Minutes: 25,
			Kind: session.KindGroup, LobbyID: "lobby-1", CompletedAt: wednesdayNoon},
	}}

	view, err := QueryGetWeeklyPlan(context.Background(),
		GetWeeklyPlanInput{AccountID: "user-1", Now: wednesdayNoon},
		GetWeeklyPlanDeps{AccountStore: accounts, SessionStore: sessions})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := view.Days[2].Minutes; got != 45 {
		t.Errorf("expected solo and group minutes summed to 45, got %d", got)
	}
}
