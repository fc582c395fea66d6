package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"fitclub/internal/domain/account"
)

// ErrRoleNotSelectable is returned when onboarding tries to claim the
// admin role; admin is assigned at registration, never chosen.
var ErrRoleNotSelectable = errors.New("role cannot be selected during onboarding")

// AccountStoreForOnboarding defines the store interface for the
// onboarding orchestrators.
type AccountStoreForOnboarding interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// SelectRoleInput carries input for the role selection step.
type SelectRoleInput struct {
	AccountID string
	Role      string
}

// OnboardingDeps holds dependencies shared by the onboarding orchestrators.
type OnboardingDeps struct {
	AccountStore AccountStoreForOnboarding
}

// ExecuteSelectRole records the user's chosen role and advances onboarding.
// Re-running the step updates the role without moving the account backwards.
// PRE: Role is coach or member
// POST: Role saved; onboarding advances past role_select
func ExecuteSelectRole(ctx context.Context, input SelectRoleInput, deps OnboardingDeps) (account.Account, error) {
	if input.Role != account.RoleCoach && input.Role != account.RoleMember {
		return account.Account{}, ErrRoleNotSelectable
	}

	a, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return account.Account{}, err
	}

	a.Role = input.Role
	if a.OnboardingStep == account.StepRoleSelect {
		a.OnboardingStep = account.NextStep(a.OnboardingStep)
	}
	if err := a.Validate(); err != nil {
		return account.Account{}, err
	}
	if err := deps.AccountStore.Save(ctx, a); err != nil {
		return account.Account{}, err
	}

	slog.Info("onboarding_event", "event", "role_selected", "account_id", a.ID, "role", a.Role)
	return a, nil
}

// ConfigureWorkoutDaysInput carries input for the schedule setup step.
type ConfigureWorkoutDaysInput struct {
	AccountID string
	Days      []string
}

// ExecuteConfigureWorkoutDays records the weekly workout days and advances
// onboarding. Also usable after onboarding to change the schedule.
// PRE: Days is a non-empty set of distinct valid day names
// POST: WorkoutDays saved; onboarding advances past schedule_setup
func ExecuteConfigureWorkoutDays(ctx context.Context, input ConfigureWorkoutDaysInput, deps OnboardingDeps) (account.Account, error) {
	a, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return account.Account{}, err
	}

	if err := a.SetWorkoutDays(input.Days); err != nil {
		return account.Account{}, err
	}
	if a.OnboardingStep == account.StepScheduleSetup {
		a.OnboardingStep = account.NextStep(a.OnboardingStep)
	}
	if err := deps.AccountStore.Save(ctx, a); err != nil {
		return account.Account{}, err
	}

	slog.Info("onboarding_event", "event", "workout_days_configured",
		"account_id", a.ID, "days", len(a.WorkoutDays))
	return a, nil
}

// SelectDurationInput carries input for the duration selection step.
type SelectDurationInput struct {
	AccountID string
	Minutes   int
}

// ExecuteSelectDuration records the preferred session length and completes
// onboarding.
// PRE: Minutes is one of the valid durations
// POST: SessionMinutes saved; onboarding reaches done
func ExecuteSelectDuration(ctx context.Context, input SelectDurationInput, deps OnboardingDeps) (account.Account, error) {
	a, err := deps.AccountStore.GetByID(ctx, input.AccountID)
	if err != nil {
		return account.Account{}, err
	}

	if err := a.SetSessionMinutes(input.Minutes); err != nil {
		return account.Account{}, err
	}
	if a.OnboardingStep == account.StepDurationSelect {
		a.OnboardingStep = account.NextStep(a.OnboardingStep)
	}
	if err := deps.AccountStore.Save(ctx, a); err != nil {
		return account.Account{}, err
	}

	slog.Info("onboarding_event", "event", "duration_selected",
		"account_id", a.ID, "minutes", a.SessionMinutes, "onboarded", a.IsOnboarded())
	return a, nil
}
