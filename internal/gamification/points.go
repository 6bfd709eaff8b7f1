// Package gamification contains the pure rules that turn a logged workout into streak, points, weekly goal and
// milestone outcomes. Nothing in here touches storage or the clock; callers pass "today" explicitly.
package gamification

// Points awarded per workout event.
const (
	BasePoints             = 10
	WeeklyGoalBonus        = 50
	SevenDayStreakBonus    = 25
	ThirtyDayStreakBonus   = 100
	streakBonusInterval    = 7
	thirtyDayStreakBonusAt = 30
)

// ComputePoints returns the points earned by one workout: the base award, plus the weekly goal bonus when this
// workout completed the goal, plus any streak bonus.
func ComputePoints(weeklyGoalJustCompleted bool, streakBonus int) int {
	points := BasePoints
	if weeklyGoalJustCompleted {
		points += WeeklyGoalBonus
	}
	return points + streakBonus
}
