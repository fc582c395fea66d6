package projections

import (
	"context"
	"time"

	"fitclub/internal/domain/account"
	"fitclub/internal/domain/plan"
	"fitclub/internal/domain/session"
)

// WeeklyPlanAccountStore defines the account lookup for the weekly plan.
type WeeklyPlanAccountStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// WeeklyPlanSessionStore defines the session query for the weekly plan.
type WeeklyPlanSessionStore interface {
	ListByAccountAndDateRange(ctx context.Context, accountID, from, to string) ([]session.Session, error)
}

// GetWeeklyPlanInput holds the account and reference time for the view.
type GetWeeklyPlanInput struct {
	AccountID string
	Now       time.Time // zero means time.Now
}

// GetWeeklyPlanDeps holds dependencies for the weekly plan projection.
type GetWeeklyPlanDeps struct {
	AccountStore WeeklyPlanAccountStore
	SessionStore WeeklyPlanSessionStore
}

// WeeklyPlanDay is one day of the weekly plan response.
type WeeklyPlanDay struct {
	Date    string `json:"date"`
	Name    string `json:"name"`
	State   string `json:"state"`
	Minutes int    `json:"minutes"`
}

// WeeklyPlanView is the weekly plan response model.
type WeeklyPlanView struct {
	WeekStart string          `json:"week_start"`
	Days      []WeeklyPlanDay `json:"days"`
}

// QueryGetWeeklyPlan derives the seven-day plan view for the week containing
// now: configured days, completed training, missed days, and what is still
// upcoming.
// PRE: account exists
// POST: Returns all seven days, Monday first
func QueryGetWeeklyPlan(ctx context.Context, input GetWeeklyPlanInput, deps GetWeeklyPlanDeps) (WeeklyPlanView, error) {
	a, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return WeeklyPlanView{}, err
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	start := plan.WeekStart(now)
	end := start.AddDate(0, 0, 6)
	sessions, err := deps.SessionStore.ListByAccountAndDateRange(ctx,
		a.ID, plan.DateKey(start), plan.DateKey(end))
	if err != nil {
		return WeeklyPlanView{}, err
	}

	completed := make(map[string]int, len(sessions))
	for _, s := range sessions {
		completed[s.Date] += s.Minutes
	}

	week := plan.BuildWeek(now, a.WorkoutDays, completed)

	view := WeeklyPlanView{WeekStart: plan.DateKey(week.Start)}
	for _, d := range week.Days {
		view.Days = append(view.Days, WeeklyPlanDay{
			Date:    plan.DateKey(d.Date),
			Name:    d.Name,
			State:   d.State,
			Minutes: d.Minutes,
		})
	}
	return view, nil
}
