package workout

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/myrjola/lockedin/internal/calendar"
	"github.com/myrjola/lockedin/internal/errors"
)

const daysPerWeek = 7

// workoutRepository reads and writes the workouts table, the source of truth for all derived progress.
type workoutRepository struct {
	baseRepository
}

// existsOn reports whether userID already logged a workout on date.
func (r *workoutRepository) existsOn(ctx context.Context, userID int, date calendar.Date) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM workouts WHERE user_id = ? AND completed_on = ?)`,
		userID, formatDate(date)).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "query workout exists", slog.String("date", date.String()))
	}
	return exists, nil
}

func (r *workoutRepository) insert(ctx context.Context, w Workout) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO workouts (id, user_id, completed_on, points_earned, retroactive)
		VALUES (?, ?, ?, ?, ?)`,
		w.ID, w.UserID, formatDate(w.Date), w.PointsEarned, w.Retroactive)
	if err != nil {
		return errors.Wrap(err, "insert workout", slog.String("date", w.Date.String()))
	}
	return nil
}

// get returns the workout with id if userID owns it. Foreign and missing workouts both yield sql.ErrNoRows so
// that other users' ids stay indistinguishable from missing ones.
func (r *workoutRepository) get(ctx context.Context, userID int, id string) (Workout, error) {
	var (
		w         Workout
		date      string
		createdAt string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, completed_on, points_earned, retroactive, created
		FROM workouts
		WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&w.ID, &w.UserID, &date, &w.PointsEarned, &w.Retroactive, &createdAt)
	if err != nil {
		return Workout{}, errors.Wrap(err, "query workout", slog.String("workout_id", id))
	}
	if w.Date, err = calendar.ParseDate(date); err != nil {
		return Workout{}, errors.Wrap(err, "parse completed_on")
	}
	if w.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Workout{}, err
	}
	return w, nil
}

func (r *workoutRepository) delete(ctx context.Context, userID int, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM workouts WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return errors.Wrap(err, "delete workout", slog.String("workout_id", id))
	}
	return nil
}

// listSince returns the workouts on or after since, newest first.
func (r *workoutRepository) listSince(ctx context.Context, userID int, since calendar.Date) (_ []Workout, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, completed_on, points_earned, retroactive, created
		FROM workouts
		WHERE user_id = ? AND completed_on >= ?
		ORDER BY completed_on DESC`, userID, formatDate(since))
	if err != nil {
		return nil, errors.Wrap(err, "query workouts")
	}
	defer closeRows(rows, &err)

	var workouts []Workout
	for rows.Next() {
		var (
			w         Workout
			date      string
			createdAt string
		)
		if err = rows.Scan(&w.ID, &w.UserID, &date, &w.PointsEarned, &w.Retroactive, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan workout")
		}
		if w.Date, err = calendar.ParseDate(date); err != nil {
			return nil, errors.Wrap(err, "parse completed_on")
		}
		if w.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		workouts = append(workouts, w)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate workouts")
	}
	return workouts, nil
}

// streakDates returns the dates of the workouts logged on the day they happened, oldest first. Retroactive workouts
// never count towards the consecutive-day streak.
func (r *workoutRepository) streakDates(ctx context.Context, userID int) (_ []calendar.Date, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT completed_on FROM workouts WHERE user_id = ? AND NOT retroactive ORDER BY completed_on`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query workout dates")
	}
	defer closeRows(rows, &err)

	var dates []calendar.Date
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "scan workout date")
		}
		var d calendar.Date
		if d, err = calendar.ParseDate(s); err != nil {
			return nil, errors.Wrap(err, "parse workout date")
		}
		dates = append(dates, d)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate workout dates")
	}
	return dates, nil
}

// count returns the number of workouts userID has logged.
func (r *workoutRepository) count(ctx context.Context, userID int) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM workouts WHERE user_id = ?`, userID).
		Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count workouts")
	}
	return n, nil
}

// countInWeek returns the number of workouts in the week starting on weekStart.
func (r *workoutRepository) countInWeek(ctx context.Context, userID int, weekStart calendar.Date) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workouts WHERE user_id = ? AND completed_on >= ? AND completed_on < ?`,
		userID, formatDate(weekStart), formatDate(weekStart.AddDays(daysPerWeek))).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count workouts in week", slog.String("week_start", weekStart.String()))
	}
	return n, nil
}

// totals returns the workout count and the sum of points of userID.
func (r *workoutRepository) totals(ctx context.Context, userID int) (int, int, error) {
	var (
		count  int
		points sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(points_earned) FROM workouts WHERE user_id = ?`, userID).Scan(&count, &points)
	if err != nil {
		return 0, 0, errors.Wrap(err, "query workout totals")
	}
	return count, int(points.Int64), nil
}

func (r *workoutRepository) deleteAll(ctx context.Context, userID int) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM workouts WHERE user_id = ?`, userID); err != nil {
		return errors.Wrap(err, "delete workouts")
	}
	return nil
}
