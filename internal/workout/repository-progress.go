package workout

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/lockedin/internal/calendar"
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/gamification"
)

// progressRepository stores the projections derived from workouts: streaks, weekly goals and milestones.
type progressRepository struct {
	baseRepository
}

// streak returns the stored streak state. A user without workouts has the zero state.
func (r *progressRepository) streak(ctx context.Context, userID int) (gamification.StreakState, error) {
	var (
		state gamification.StreakState
		last  sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT current_streak, longest_streak, last_workout_on FROM streaks WHERE user_id = ?`, userID).
		Scan(&state.Current, &state.Longest, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return gamification.StreakState{}, nil
	}
	if err != nil {
		return gamification.StreakState{}, errors.Wrap(err, "query streak")
	}
	if last.Valid {
		if state.LastWorkout, err = calendar.ParseDate(last.String); err != nil {
			return gamification.StreakState{}, errors.Wrap(err, "parse last_workout_on")
		}
	}
	return state, nil
}

func (r *progressRepository) saveStreak(ctx context.Context, userID int, state gamification.StreakState) error {
	var last sql.NullString
	if !state.LastWorkout.IsZero() {
		last = sql.NullString{String: formatDate(state.LastWorkout), Valid: true}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO streaks (user_id, current_streak, longest_streak, last_workout_on)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET current_streak  = excluded.current_streak,
		                                    longest_streak  = excluded.longest_streak,
		                                    last_workout_on = excluded.last_workout_on,
		                                    updated         = STRFTIME('%Y-%m-%dT%H:%M:%fZ')`,
		userID, state.Current, state.Longest, last)
	if err != nil {
		return errors.Wrap(err, "save streak", slog.Int("current", state.Current))
	}
	return nil
}

// goal returns the weekly goal row for the week starting on weekStart.
func (r *progressRepository) goal(ctx context.Context, userID int, weekStart calendar.Date) (
	gamification.WeeklyGoal, bool, error) {
	goal := gamification.WeeklyGoal{WeekStart: weekStart} //nolint:exhaustruct // Scanned below.
	err := r.q.QueryRowContext(ctx, `
		SELECT target, completed, achieved FROM weekly_goals WHERE user_id = ? AND week_start = ?`,
		userID, formatDate(weekStart)).Scan(&goal.Target, &goal.Completed, &goal.Achieved)
	if errors.Is(err, sql.ErrNoRows) {
		return gamification.WeeklyGoal{}, false, nil
	}
	if err != nil {
		return gamification.WeeklyGoal{}, false, errors.Wrap(err, "query weekly goal",
			slog.String("week_start", weekStart.String()))
	}
	return goal, true, nil
}

func (r *progressRepository) saveGoal(ctx context.Context, userID int, goal gamification.WeeklyGoal) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO weekly_goals (user_id, week_start, target, completed, achieved)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, week_start) DO UPDATE SET target    = excluded.target,
		                                                completed = excluded.completed,
		                                                achieved  = excluded.achieved`,
		userID, formatDate(goal.WeekStart), goal.Target, goal.Completed, goal.Achieved)
	if err != nil {
		return errors.Wrap(err, "save weekly goal", slog.String("week_start", goal.WeekStart.String()))
	}
	return nil
}

// retarget changes the target of an existing weekly goal. Achieved is left alone: only a logged workout completes
// a goal, and an achieved goal stays achieved when the target is raised.
func (r *progressRepository) retarget(ctx context.Context, userID int, weekStart calendar.Date, target int) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE weekly_goals
		SET target = ?
		WHERE user_id = ? AND week_start = ?`,
		target, userID, formatDate(weekStart))
	if err != nil {
		return errors.Wrap(err, "retarget weekly goal", slog.Int("target", target))
	}
	return nil
}

// achievedWeeks returns the week starts of every achieved weekly goal.
func (r *progressRepository) achievedWeeks(ctx context.Context, userID int) (_ []calendar.Date, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT week_start FROM weekly_goals WHERE user_id = ? AND achieved ORDER BY week_start DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query achieved weeks")
	}
	defer closeRows(rows, &err)

	var weeks []calendar.Date
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "scan week_start")
		}
		var d calendar.Date
		if d, err = calendar.ParseDate(s); err != nil {
			return nil, errors.Wrap(err, "parse week_start")
		}
		weeks = append(weeks, d)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate achieved weeks")
	}
	return weeks, nil
}

type achievedMilestone struct {
	gamification.Milestone
	AchievedAt time.Time
}

// milestones returns every milestone userID has achieved, ordered by category and value.
func (r *progressRepository) milestones(ctx context.Context, userID int) (_ []achievedMilestone, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT category, value, achieved_at FROM milestones WHERE user_id = ? ORDER BY category, value`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query milestones")
	}
	defer closeRows(rows, &err)

	var achieved []achievedMilestone
	for rows.Next() {
		var (
			m  achievedMilestone
			at string
		)
		if err = rows.Scan(&m.Category, &m.Value, &at); err != nil {
			return nil, errors.Wrap(err, "scan milestone")
		}
		if m.AchievedAt, err = parseTimestamp(at); err != nil {
			return nil, err
		}
		achieved = append(achieved, m)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate milestones")
	}
	return achieved, nil
}

// achievedValues returns the achieved ladder values of category.
func (r *progressRepository) achievedValues(ctx context.Context, userID int, category gamification.Category) (
	_ []int, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT value FROM milestones WHERE user_id = ? AND category = ? ORDER BY value`, userID, string(category))
	if err != nil {
		return nil, errors.Wrap(err, "query milestone values", slog.String("category", string(category)))
	}
	defer closeRows(rows, &err)

	var values []int
	for rows.Next() {
		var v int
		if err = rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan milestone value")
		}
		values = append(values, v)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate milestone values")
	}
	return values, nil
}

func (r *progressRepository) insertMilestone(ctx context.Context, userID int, m gamification.Milestone) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO milestones (user_id, category, value) VALUES (?, ?, ?)`, userID, string(m.Category), m.Value)
	if err != nil {
		return errors.Wrap(err, "insert milestone",
			slog.String("category", string(m.Category)), slog.Int("value", m.Value))
	}
	return nil
}

// deleteAll removes every projection of userID.
func (r *progressRepository) deleteAll(ctx context.Context, userID int) error {
	for _, table := range []string{"streaks", "weekly_goals", "milestones"} {
		//nolint:gosec // The table names are constants.
		if _, err := r.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", userID); err != nil {
			return errors.Wrap(err, "delete progress", slog.String("table", table))
		}
	}
	return nil
}
