package plan

import (
	"errors"
	"strings"
	"time"
)

// Day of week constants
const (
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
	Sunday    = "sunday"
)

// ValidDays contains all valid day values, Monday first.
var ValidDays = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Day display states for the weekly plan view.
const (
	StateRest         = "rest"          // not a configured workout day
	StateCompleted    = "completed"     // session logged on this day
	StateMissed       = "missed"        // workout day in the past with no session
	StateTodayPending = "today_pending" // workout day, today, nothing logged yet
	StateTodayDone    = "today_done"    // workout day, today, session logged
	StateUpcoming     = "upcoming"      // workout day later this week
)

// Domain errors
var (
	ErrInvalidDay = errors.New("day must be a valid day of the week")
	ErrNoDays     = errors.New("at least one workout day is required")
	ErrDuplicate  = errors.New("workout days cannot repeat")
)

// Day is one column of the weekly plan view model.
type Day struct {
	Date    time.Time
	Name    string // monday, tuesday, etc.
	State   string
	Minutes int // completed training minutes on this date
}

// Week is the seven-day view model derived for one calendar week.
type Week struct {
	Start time.Time // Monday 00:00 in the caller's location
	Days  [7]Day
}

// ValidDay reports whether day is a recognised day-of-week value.
func ValidDay(day string) bool {
	for _, d := range ValidDays {
		if d == day {
			return true
		}
	}
	return false
}

// NormalizeDays lowercases day names. Days are stored and compared in
// lowercase throughout; callers accepting client input normalize before
// storing so "Monday" and "monday" name the same day.
func NormalizeDays(days []string) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = strings.ToLower(d)
	}
	return out
}

// ValidateDays checks a configured workout-day set. Case-insensitive: the
// caller is expected to store the NormalizeDays form.
// PRE: none
// POST: Returns nil if days is a non-empty set of distinct valid days
func ValidateDays(days []string) error {
	if len(days) == 0 {
		return ErrNoDays
	}
	seen := make(map[string]bool, len(days))
	for _, d := range days {
		lower := strings.ToLower(d)
		if !ValidDay(lower) {
			return ErrInvalidDay
		}
		if seen[lower] {
			return ErrDuplicate
		}
		seen[lower] = true
	}
	return nil
}

// DayOf returns the lowercase day name for a timestamp.
func DayOf(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// WeekStart returns Monday 00:00 of the week containing t, in t's location.
// PRE: none
// POST: Returned time satisfies DayOf(result) == Monday
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}

// DateKey formats a date the way session records key their training date.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// BuildWeek derives the per-day display state for the week containing now.
// workoutDays is the account's configured day set; completedMinutes maps
// DateKey(date) to training minutes logged on that date.
//
// State rules, in order:
//   - any logged minutes win: today_done for today, completed otherwise
//   - not a configured workout day: rest
//   - configured day before today: missed
//   - configured day, today: today_pending
//   - configured day after today: upcoming
//
// PRE: workoutDays has passed ValidateDays
// POST: Returns a Week with all seven days populated, Monday first
func BuildWeek(now time.Time, workoutDays []string, completedMinutes map[string]int) Week {
	configured := make(map[string]bool, len(workoutDays))
	for _, d := range workoutDays {
		configured[d] = true
	}

	start := WeekStart(now)
	today := DateKey(now)

	var week Week
	week.Start = start
	for i := 0; i < 7; i++ {
		date := start.AddDate(0, 0, i)
		key := DateKey(date)
		minutes := completedMinutes[key]

		state := StateRest
		switch {
		case minutes > 0 && key == today:
			state = StateTodayDone
		case minutes > 0:
			state = StateCompleted
		case !configured[ValidDays[i]]:
			state = StateRest
		case key == today:
			state = StateTodayPending
		case key < today:
			state = StateMissed
		default:
			state = StateUpcoming
		}

		week.Days[i] = Day{
			Date:    date,
			Name:    ValidDays[i],
			State:   state,
			Minutes: minutes,
		}
	}
	return week
}
