package workout

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/myrjola/lockedin/internal/errors"
)

const configKeyFocus = "current_focus"

// appConfigRepository stores household wide settings as key value pairs.
type appConfigRepository struct {
	baseRepository
}

func (r *appConfigRepository) focus(ctx context.Context) (Focus, error) {
	var (
		f       Focus
		by      sql.NullString
		updated string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT c.value, c.updated, u.display_name
		FROM app_config c
		         LEFT JOIN users u ON u.id = c.updated_by
		WHERE c.key = ?`, configKeyFocus).Scan(&f.Markdown, &updated, &by)
	if errors.Is(err, sql.ErrNoRows) {
		return Focus{}, nil
	}
	if err != nil {
		return Focus{}, errors.Wrap(err, "query focus")
	}
	if f.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return Focus{}, err
	}
	f.UpdatedBy = by.String
	return f, nil
}

func (r *appConfigRepository) setFocus(ctx context.Context, userID int, markdown string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO app_config (key, value, updated_by)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value      = excluded.value,
		                                updated_by = excluded.updated_by,
		                                updated    = STRFTIME('%Y-%m-%dT%H:%M:%fZ')`,
		configKeyFocus, markdown, userID)
	if err != nil {
		return errors.Wrap(err, "save focus", slog.Int("length", len(markdown)))
	}
	return nil
}
