package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitclub/internal/domain/account"
)

// ErrEmailTaken is returned when registering with an email already in use.
var ErrEmailTaken = errors.New("an account with this email already exists")

// AccountStoreForRegister defines the store interface needed by registration.
type AccountStoreForRegister interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
	Count(ctx context.Context) (int, error)
}

// RegisterAccountInput carries input for the registration orchestrator.
type RegisterAccountInput struct {
	Email       string
	DisplayName string
	Password    string
}

// RegisterAccountDeps holds dependencies for RegisterAccount.
type RegisterAccountDeps struct {
	AccountStore AccountStoreForRegister
}

// ExecuteRegisterAccount creates a new account at the start of onboarding.
// The very first account registered becomes the admin.
// PRE: Email is unused; Password meets the minimum length
// POST: Account persisted at the role_select onboarding step
func ExecuteRegisterAccount(ctx context.Context, input RegisterAccountInput, deps RegisterAccountDeps) (account.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if existing, err := deps.AccountStore.GetByEmail(ctx, email); err == nil && existing.ID != "" {
		return account.Account{}, ErrEmailTaken
	}

	total, err := deps.AccountStore.Count(ctx)
	if err != nil {
		return account.Account{}, err
	}

	role := account.RoleMember
	if total == 0 {
		role = account.RoleAdmin
	}

	a := account.Account{
		ID:             uuid.New().String(),
		Email:          email,
		DisplayName:    strings.TrimSpace(input.DisplayName),
		Role:           role,
		OnboardingStep: account.StepRoleSelect,
		ReminderHour:   7,
		CreatedAt:      time.Now(),
	}
	if err := a.SetPassword(input.Password); err != nil {
		return account.Account{}, err
	}
	if err := a.Validate(); err != nil {
		return account.Account{}, err
	}
	if err := deps.AccountStore.Save(ctx, a); err != nil {
		return account.Account{}, err
	}

	slog.Info("account_event", "event", "account_registered", "account_id", a.ID, "role", a.Role)
	return a, nil
}
