package gamification

import "github.com/myrjola/lockedin/internal/calendar"

// graceGap is the day difference that still keeps a streak alive. A single missed day is forgiven.
const graceGap = 2

// StreakUpdate is the outcome of logging a workout against the previous streak state.
type StreakUpdate struct {
	NewStreak   int
	Broken      bool
	BonusPoints int
}

// UpdateStreak applies one workout dated today to the streak.
//
// lastWorkout is the zero Date when the user has never worked out. A gap of one day extends the streak, a gap of
// two days keeps it unchanged and three or more days reset it to 1.
func UpdateStreak(lastWorkout calendar.Date, currentStreak int, today calendar.Date) StreakUpdate {
	if lastWorkout.IsZero() {
		return StreakUpdate{NewStreak: 1, Broken: false, BonusPoints: 0}
	}

	switch gap := today.DaysSince(lastWorkout); {
	case gap <= 0:
		// Same day. Duplicate logs are rejected earlier, so this is a no-op.
		return StreakUpdate{NewStreak: currentStreak, Broken: false, BonusPoints: 0}
	case gap == 1:
		newStreak := currentStreak + 1
		return StreakUpdate{NewStreak: newStreak, Broken: false, BonusPoints: StreakBonus(newStreak)}
	case gap == graceGap:
		return StreakUpdate{NewStreak: currentStreak, Broken: false, BonusPoints: 0}
	default:
		return StreakUpdate{NewStreak: 1, Broken: true, BonusPoints: 0}
	}
}

// StreakBonus returns the bonus for reaching newStreak. The weekly and 30-day bonuses are independent and add up.
func StreakBonus(newStreak int) int {
	bonus := 0
	if newStreak%streakBonusInterval == 0 {
		bonus += SevenDayStreakBonus
	}
	if newStreak == thirtyDayStreakBonusAt {
		bonus += ThirtyDayStreakBonus
	}
	return bonus
}

// StreakState is the derived per-user streak projection.
type StreakState struct {
	Current     int
	Longest     int
	LastWorkout calendar.Date
}

// Apply returns the state after a workout on date. Longest never drops below Current.
func (s StreakState) Apply(date calendar.Date) (StreakState, StreakUpdate) {
	update := UpdateStreak(s.LastWorkout, s.Current, date)
	return StreakState{
		Current:     update.NewStreak,
		Longest:     max(s.Longest, update.NewStreak),
		LastWorkout: date,
	}, update
}

// ReplayStreak rebuilds the streak state from workout dates in ascending order.
//
// Workout history is the source of truth. Streak state is a projection of it, so deleting a workout is handled by
// replaying the remaining dates rather than reversing a single increment.
func ReplayStreak(dates []calendar.Date) StreakState {
	var state StreakState
	for _, d := range dates {
		state, _ = state.Apply(d)
	}
	return state
}
