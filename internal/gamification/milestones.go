package gamification

import (
	"fmt"
	"slices"
)

// Category identifies a milestone ladder.
type Category string

const (
	CategoryTotalSessions    Category = "total_sessions"
	CategoryStreak           Category = "streak"
	CategoryWeeklyGoalStreak Category = "weekly_goal"
)

// Categories lists every ladder in display order.
var Categories = []Category{CategoryTotalSessions, CategoryStreak, CategoryWeeklyGoalStreak} //nolint:gochecknoglobals // constant table.

//nolint:gochecknoglobals // constant table.
var ladders = map[Category][]int{
	CategoryTotalSessions:    {10, 25, 50, 100, 250},
	CategoryStreak:           {7, 14, 30, 60, 100},
	CategoryWeeklyGoalStreak: {4, 8, 12, 26},
}

// Ladder returns the ascending milestone values of category, or nil for an unknown category.
func Ladder(category Category) []int {
	return slices.Clone(ladders[category])
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := ladders[c]
	return ok
}

// Label is the human readable name of the category.
func (c Category) Label() string {
	switch c {
	case CategoryTotalSessions:
		return "Total sessions"
	case CategoryStreak:
		return "Day streak"
	case CategoryWeeklyGoalStreak:
		return "Weekly goals in a row"
	default:
		return string(c)
	}
}

// MilestoneRule decides when a ladder value counts as reached.
type MilestoneRule string

const (
	// RuleExactMatch awards a value only when the counter lands exactly on it. A counter that jumps over a value,
	// for example after a recount, never awards it.
	RuleExactMatch MilestoneRule = "exact"
	// RuleCrossedThreshold awards every value v with previous < v <= current.
	RuleCrossedThreshold MilestoneRule = "crossed"
)

// ParseMilestoneRule validates a configured rule name.
func ParseMilestoneRule(s string) (MilestoneRule, error) {
	switch r := MilestoneRule(s); r {
	case RuleExactMatch, RuleCrossedThreshold:
		return r, nil
	default:
		return "", fmt.Errorf("unknown milestone rule %q", s)
	}
}

// Milestone is a ladder value reached by a user.
type Milestone struct {
	Category Category
	Value    int
}

// Message is the celebration text shown when the milestone is reached.
func (m Milestone) Message() string {
	switch m.Category {
	case CategoryTotalSessions:
		return fmt.Sprintf("%d times locked in 🔥", m.Value)
	case CategoryStreak:
		return fmt.Sprintf("%d-day streak 🚀", m.Value)
	case CategoryWeeklyGoalStreak:
		return fmt.Sprintf("%d weekly goals in a row 🏆", m.Value)
	default:
		return fmt.Sprintf("%s %d", m.Category, m.Value)
	}
}

// CheckMilestone returns the ladder value equal to currentValue if it has not been achieved yet.
func CheckMilestone(category Category, currentValue int, achieved []int) (int, bool) {
	for _, v := range ladders[category] {
		if v == currentValue && !slices.Contains(achieved, v) {
			return v, true
		}
	}
	return 0, false
}

// NewMilestones returns the not yet achieved milestones of category reached when the counter moved from previous to
// current under rule. With RuleExactMatch at most one milestone is returned.
func NewMilestones(rule MilestoneRule, category Category, previous, current int, achieved []int) []Milestone {
	if rule != RuleCrossedThreshold {
		if v, ok := CheckMilestone(category, current, achieved); ok {
			return []Milestone{{Category: category, Value: v}}
		}
		return nil
	}
	var reached []Milestone
	for _, v := range ladders[category] {
		if previous < v && v <= current && !slices.Contains(achieved, v) {
			reached = append(reached, Milestone{Category: category, Value: v})
		}
	}
	return reached
}

// Progress describes the way to the next milestone of a ladder.
type Progress struct {
	Current int
	// Next is 0 when every rung has been cleared.
	Next        int
	HasNext     bool
	ProgressPct float64
}

// ProgressToNext returns the smallest ladder value strictly greater than currentValue and how far along the user is.
func ProgressToNext(category Category, currentValue int) Progress {
	const full = 100
	for _, v := range ladders[category] {
		if v > currentValue {
			pct := min(full, float64(currentValue)/float64(v)*full)
			return Progress{Current: currentValue, Next: v, HasNext: true, ProgressPct: max(0, pct)}
		}
	}
	return Progress{Current: currentValue, Next: 0, HasNext: false, ProgressPct: full}
}
