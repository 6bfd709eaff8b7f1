package gamification

import (
	"slices"

	"github.com/myrjola/lockedin/internal/calendar"
)

// Weekly target bounds.
const (
	DefaultWeeklyTarget = 4
	MinWeeklyTarget     = 1
	MaxWeeklyTarget     = 7
	daysPerWeek         = 7
)

// ValidWeeklyTarget reports whether target is within the allowed 1-7 range.
func ValidWeeklyTarget(target int) bool {
	return target >= MinWeeklyTarget && target <= MaxWeeklyTarget
}

// WeeklyGoal is the per-user, per-week completion counter.
type WeeklyGoal struct {
	WeekStart calendar.Date
	Target    int
	Completed int
	// Achieved latches to true when Completed first reaches Target and never reverts.
	Achieved bool
}

// NewWeeklyGoal creates the goal for a week on its first workout.
func NewWeeklyGoal(weekStart calendar.Date, target int) (WeeklyGoal, bool) {
	goal := WeeklyGoal{WeekStart: weekStart, Target: target, Completed: 1, Achieved: false}
	goal.Achieved = goal.Completed >= goal.Target
	return goal, goal.Achieved
}

// RecordWorkout counts one more workout and reports whether this workout is the one that completed the goal.
// Workouts after the goal is met never report completion again.
func (g WeeklyGoal) RecordWorkout() (WeeklyGoal, bool) {
	g.Completed++
	justCompleted := g.Completed >= g.Target && !g.Achieved
	g.Achieved = g.Achieved || justCompleted
	return g, justCompleted
}

// Recount replaces the completed count with a fresh count of the week's workouts, e.g. after a deletion.
// Achieved stays latched.
func (g WeeklyGoal) Recount(completed int) WeeklyGoal {
	g.Completed = completed
	return g
}

// WeeklyGoalStreak counts consecutive achieved weeks.
//
// achievedWeekStarts holds the week start of every achieved goal. The run starts at the most recent achieved week
// and continues while each earlier week is exactly seven days before the previous one.
func WeeklyGoalStreak(achievedWeekStarts []calendar.Date) int {
	if len(achievedWeekStarts) == 0 {
		return 0
	}
	weeks := slices.Clone(achievedWeekStarts)
	slices.SortFunc(weeks, func(a, b calendar.Date) int {
		// Descending.
		return b.DaysSince(a)
	})

	streak := 1
	for i := 1; i < len(weeks); i++ {
		if weeks[i-1].DaysSince(weeks[i]) != daysPerWeek {
			break
		}
		streak++
	}
	return streak
}
