package account

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fitclub/internal/domain/plan"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength       = 254
	MaxDisplayNameLength = 100
)

// Role constants
const (
	RoleAdmin  = "admin"
	RoleCoach  = "coach"
	RoleMember = "member"
)

// Onboarding step constants, in order. A fresh account starts at role
// selection; an account is fully onboarded once it reaches StepDone.
const (
	StepRoleSelect     = "role_select"
	StepScheduleSetup  = "schedule_setup"
	StepDurationSelect = "duration_select"
	StepDone           = "done"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleCoach, RoleMember}

// ValidDurations are the selectable workout session lengths in minutes.
var ValidDurations = []int{15, 30, 45, 60}

// Domain errors
var (
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrInvalidEmail     = errors.New("email must contain '@'")
	ErrInvalidRole      = errors.New("role must be one of: admin, coach, member")
	ErrInvalidStep      = errors.New("unknown onboarding step")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooShort = errors.New("password must be at least 12 characters")
	ErrWrongPassword    = errors.New("incorrect password")
	ErrInvalidDuration  = errors.New("session duration must be 15, 30, 45 or 60 minutes")
)

// Account holds state for one app user: identity, role, and the workout
// preferences collected during onboarding.
type Account struct {
	ID             string
	Email          string
	DisplayName    string
	PasswordHash   string
	Role           string
	OnboardingStep string
	WorkoutDays    []string // configured training days (plan day constants)
	SessionMinutes int      // preferred session length
	ReminderHour   int      // local hour (0-23) for workout reminders
	CreatedAt      time.Time
}

// Validate checks if the Account has valid data.
// PRE: Account struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return ErrEmptyEmail
	}
	if len(a.Email) > MaxEmailLength {
		return errors.New("email cannot exceed 254 characters")
	}
	if !strings.Contains(a.Email, "@") {
		return ErrInvalidEmail
	}
	if len(a.DisplayName) > MaxDisplayNameLength {
		return errors.New("display name cannot exceed 100 characters")
	}
	if !isValidRole(a.Role) {
		return ErrInvalidRole
	}
	if !isValidStep(a.OnboardingStep) {
		return ErrInvalidStep
	}
	if len(a.WorkoutDays) > 0 {
		if err := plan.ValidateDays(a.WorkoutDays); err != nil {
			return err
		}
	}
	if a.SessionMinutes != 0 && !isValidDuration(a.SessionMinutes) {
		return ErrInvalidDuration
	}
	if a.ReminderHour < 0 || a.ReminderHour > 23 {
		return errors.New("reminder hour must be between 0 and 23")
	}
	return nil
}

// SetPassword hashes and stores a password using bcrypt with cost 12.
// PRE: plaintext is non-empty and >= 12 characters
// POST: PasswordHash is set to bcrypt hash
func (a *Account) SetPassword(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) < 12 {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), 12)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
// PRE: PasswordHash is set
// INVARIANT: Account fields are not mutated
func (a *Account) CheckPassword(plaintext string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(plaintext)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// SetWorkoutDays replaces the configured workout-day set. Day names are
// stored lowercased so lookups against the plan day constants match
// regardless of input casing.
// PRE: days is a non-empty case-insensitive set of distinct valid days
// POST: WorkoutDays is replaced; input order preserved
func (a *Account) SetWorkoutDays(days []string) error {
	normalized := plan.NormalizeDays(days)
	if err := plan.ValidateDays(normalized); err != nil {
		return err
	}
	a.WorkoutDays = normalized
	return nil
}

// SetSessionMinutes records the preferred session duration.
// PRE: minutes is one of ValidDurations
// POST: SessionMinutes is set
func (a *Account) SetSessionMinutes(minutes int) error {
	if !isValidDuration(minutes) {
		return ErrInvalidDuration
	}
	a.SessionMinutes = minutes
	return nil
}

// IsOnboarded returns true once the account has completed all onboarding steps.
func (a *Account) IsOnboarded() bool {
	return a.OnboardingStep == StepDone
}

// IsWorkoutDay reports whether day is in the configured workout-day set.
func (a *Account) IsWorkoutDay(day string) bool {
	for _, d := range a.WorkoutDays {
		if d == day {
			return true
		}
	}
	return false
}

// NextStep returns the onboarding step that follows step, or StepDone.
func NextStep(step string) string {
	switch step {
	case StepRoleSelect:
		return StepScheduleSetup
	case StepScheduleSetup:
		return StepDurationSelect
	default:
		return StepDone
	}
}

func isValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

func isValidStep(step string) bool {
	switch step {
	case StepRoleSelect, StepScheduleSetup, StepDurationSelect, StepDone:
		return true
	}
	return false
}

func isValidDuration(minutes int) bool {
	for _, d := range ValidDurations {
		if d == minutes {
			return true
		}
	}
	return false
}
