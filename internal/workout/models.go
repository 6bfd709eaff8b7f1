package workout

import (
	"fmt"
	"time"

	"github.com/myrjola/lockedin/internal/calendar"
	"github.com/myrjola/lockedin/internal/gamification"
)

// Workout is one logged session. There is at most one per user and date.
type Workout struct {
	ID           string
	UserID       int
	Date         calendar.Date
	PointsEarned int
	Retroactive  bool
	CreatedAt    time.Time
}

// LogResult is what the user sees after logging a workout.
type LogResult struct {
	WorkoutID     string
	Date          calendar.Date
	PointsEarned  int
	CurrentStreak int
	StreakBroken  bool
	// GoalCompleted is true when this workout completed the weekly goal.
	GoalCompleted bool
	Milestones    []gamification.Milestone
	Message       string
}

// DeleteResult reports the progress after a workout was removed.
type DeleteResult struct {
	CurrentStreak int
	Message       string
}

// User is the part of an account the progress views show.
type User struct {
	ID          int
	DisplayName string
	AvatarColor string
}

// Stats summarises a user's progress.
type Stats struct {
	User             User
	TotalWorkouts    int
	TotalPoints      int
	CurrentStreak    int
	LongestStreak    int
	LastWorkout      calendar.Date
	LoggedToday      bool
	Week             gamification.WeeklyGoal
	WeeklyGoalStreak int
}

// WeekProgressPct is the share of the weekly target reached, capped at 100.
func (s Stats) WeekProgressPct() int {
	const full = 100
	if s.Week.Target <= 0 {
		return 0
	}
	return min(full, s.Week.Completed*full/s.Week.Target)
}

// Comparison puts every user's stats side by side. The caller comes first.
type Comparison struct {
	Users    []Stats
	LeaderID int
}

// MilestoneRung is one value of a ladder.
type MilestoneRung struct {
	Value      int
	Achieved   bool
	AchievedAt time.Time
}

// MilestoneLadder is a category's ladder with the user's position on it.
type MilestoneLadder struct {
	Category gamification.Category
	Label    string
	Rungs    []MilestoneRung
	Progress gamification.Progress
}

// NotificationType tells what happened.
type NotificationType string

const (
	NotificationPartnerCompleted  NotificationType = "partner_completed"
	NotificationMilestoneAchieved NotificationType = "milestone_achieved"
)

// Notification tells a user about a partner's workout or their own milestone. Read notifications are not shown.
type Notification struct {
	ID        int
	Type      NotificationType
	Message   string
	Read      bool
	CreatedAt time.Time
}

// Notifications is the latest slice of a user's notifications.
type Notifications struct {
	Items  []Notification
	Unread int
}

// HabitModule is one habit of the household's minimum viability stack: the least both partners commit to on a bad
// day.
type HabitModule struct {
	ID          int
	Title       string
	Description string
	OrderIndex  int
	// CreatedBy is empty when the creator deleted their account.
	CreatedBy string
}

// Focus is the short markdown text shared by the household.
type Focus struct {
	Markdown  string
	UpdatedAt time.Time
	// UpdatedBy is empty before anyone changed the default.
	UpdatedBy string
}

// PreferenceScope decides who a weekly target change applies to.
type PreferenceScope string

const (
	// ScopePerUser changes only the caller's target.
	ScopePerUser PreferenceScope = "per_user"
	// ScopeShared changes the target of every user, a shared household goal.
	ScopeShared PreferenceScope = "shared"
)

// ParsePreferenceScope validates a configured scope name.
func ParsePreferenceScope(s string) (PreferenceScope, error) {
	switch scope := PreferenceScope(s); scope {
	case ScopePerUser, ScopeShared:
		return scope, nil
	default:
		return "", fmt.Errorf("unknown preference scope %q", s)
	}
}

// Config holds the rule choices a household can make.
type Config struct {
	PreferenceScope     PreferenceScope
	MilestoneRule       gamification.MilestoneRule
	DefaultWeeklyTarget int
}

// DefaultConfig preserves the behaviour of the first version of the app.
func DefaultConfig() Config {
	return Config{
		PreferenceScope:     ScopePerUser,
		MilestoneRule:       gamification.RuleExactMatch,
		DefaultWeeklyTarget: gamification.DefaultWeeklyTarget,
	}
}
