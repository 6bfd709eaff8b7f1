package workout

import (
	"context"
	"log/slog"

	"github.com/myrjola/lockedin/internal/errors"
)

type userRepository struct {
	baseRepository
}

func (r *userRepository) get(ctx context.Context, id int) (User, error) {
	var u User
	err := r.q.QueryRowContext(ctx, `SELECT id, display_name, avatar_color FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.DisplayName, &u.AvatarColor)
	if err != nil {
		return User{}, errors.Wrap(err, "query user", slog.Int("user_id", id))
	}
	return u, nil
}

// list returns all users in sign-up order.
func (r *userRepository) list(ctx context.Context) (_ []User, err error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, display_name, avatar_color FROM users ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	defer closeRows(rows, &err)

	var users []User
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.ID, &u.DisplayName, &u.AvatarColor); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate users")
	}
	return users, nil
}

// setDisplayName renames a user. It reports whether the user exists.
func (r *userRepository) setDisplayName(ctx context.Context, id int, name string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE users SET display_name = ? WHERE id = ?`, name, id)
	if err != nil {
		return false, errors.Wrap(err, "update display name", slog.Int("user_id", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}
