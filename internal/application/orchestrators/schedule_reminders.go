package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fitclub/internal/domain/account"
	"fitclub/internal/domain/notification"
	"fitclub/internal/domain/plan"
)

// reminderHorizonDays is how far ahead workout reminders are materialized.
const reminderHorizonDays = 7

// AccountStoreForReminders defines the account lookup for reminder scheduling.
type AccountStoreForReminders interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// NotificationStoreForSchedule defines the notification store interface
// for reminder scheduling.
type NotificationStoreForSchedule interface {
	Save(ctx context.Context, n notification.Notification) error
	ListScheduledByAccountAndKind(ctx context.Context, accountID, kind string) ([]notification.Notification, error)
}

// ScheduleRemindersInput carries input for reminder scheduling.
type ScheduleRemindersInput struct {
	AccountID string
}

// ScheduleRemindersDeps holds dependencies for ScheduleReminders.
type ScheduleRemindersDeps struct {
	AccountStore      AccountStoreForReminders
	NotificationStore NotificationStoreForSchedule
}

// ExecuteScheduleReminders replaces an account's pending workout reminders
// with one reminder per configured workout day over the next week, at the
// account's reminder hour. Called when onboarding completes and whenever
// the schedule changes; stale reminders from the old schedule are canceled
// first so a day change never leaves a reminder for a dropped day.
//
// PRE: account exists
// POST: Pending workout reminders match the current schedule
func ExecuteScheduleReminders(ctx context.Context, input ScheduleRemindersInput, deps ScheduleRemindersDeps) (int, error) {
	a, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return 0, err
	}

	stale, err := deps.NotificationStore.ListScheduledByAccountAndKind(ctx, a.ID, notification.KindWorkoutReminder)
	if err != nil {
		return 0, err
	}
	for _, n := range stale {
		if err := n.Cancel(); err != nil {
			continue
		}
		if err := deps.NotificationStore.Save(ctx, n); err != nil {
			return 0, fmt.Errorf("cancel stale reminder %s: %w", n.ID, err)
		}
	}

	if len(a.WorkoutDays) == 0 {
		slog.Info("notification_event", "event", "reminders_scheduled",
			"account_id", a.ID, "canceled", len(stale), "scheduled", 0)
		return 0, nil
	}

	now := time.Now()
	scheduled := 0
	for i := 0; i < reminderHorizonDays; i++ {
		day := now.AddDate(0, 0, i)
		if !a.IsWorkoutDay(plan.DayOf(day)) {
			continue
		}
		at := time.Date(day.Year(), day.Month(), day.Day(), a.ReminderHour, 0, 0, 0, day.Location())
		if !at.After(now) {
			continue
		}

		n := notification.Notification{
			ID:           uuid.New().String(),
			AccountID:    a.ID,
			Kind:         notification.KindWorkoutReminder,
			Title:        "Time to train",
			Body:         fmt.Sprintf("Your %d minute workout is planned for today.", a.SessionMinutes),
			ScheduledFor: at,
			Status:       notification.StatusScheduled,
			MaxAttempts:  3,
			CreatedAt:    now,
		}
		if err := n.Validate(); err != nil {
			return scheduled, err
		}
		if err := deps.NotificationStore.Save(ctx, n); err != nil {
			return scheduled, fmt.Errorf("schedule reminder for %s: %w", plan.DateKey(day), err)
		}
		scheduled++
	}

	slog.Info("notification_event", "event", "reminders_scheduled",
		"account_id", a.ID, "canceled", len(stale), "scheduled", scheduled)
	return scheduled, nil
}
