package workout

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/myrjola/lockedin/internal/errors"
)

type preferencesRepository struct {
	baseRepository
}

// weeklyTarget returns the stored target of userID, or fallback if the user never chose one.
func (r *preferencesRepository) weeklyTarget(ctx context.Context, userID int, fallback int) (int, error) {
	var target int
	err := r.q.QueryRowContext(ctx, `SELECT weekly_target FROM user_preferences WHERE user_id = ?`, userID).
		Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "query weekly target")
	}
	return target, nil
}

func (r *preferencesRepository) setWeeklyTarget(ctx context.Context, userID int, target int) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, weekly_target)
		VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET weekly_target = excluded.weekly_target,
		                                    updated       = STRFTIME('%Y-%m-%dT%H:%M:%fZ')`, userID, target)
	if err != nil {
		return errors.Wrap(err, "save weekly target", slog.Int("target", target))
	}
	return nil
}
