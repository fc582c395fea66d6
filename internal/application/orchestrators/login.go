package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"fitclub/internal/domain/account"
)

// ErrInvalidCredentials is returned for both unknown emails and wrong
// passwords so the response does not reveal which accounts exist.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AccountStoreForLogin defines the store interface needed by login.
type AccountStoreForLogin interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Email    string
	Password string
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	AccountStore AccountStoreForLogin
}

// ExecuteLogin verifies credentials and returns the account.
// PRE: Email and Password are non-empty
// POST: Returns the account on success, ErrInvalidCredentials otherwise
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (account.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return account.Account{}, ErrInvalidCredentials
	}

	a, err := deps.AccountStore.GetByEmail(ctx, email)
	if err != nil || a.ID == "" {
		return account.Account{}, ErrInvalidCredentials
	}
	if err := a.CheckPassword(input.Password); err != nil {
		slog.Warn("login_failed", "email", email)
		return account.Account{}, ErrInvalidCredentials
	}

	slog.Info("account_event", "event", "login", "account_id", a.ID)
	return a, nil
}
