package workout

import (
	"context"
	"log/slog"

	"github.com/myrjola/lockedin/internal/errors"
)

const notificationListLimit = 10

type notificationRepository struct {
	baseRepository
}

func (r *notificationRepository) insert(ctx context.Context, userID int, typ NotificationType, message string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO notifications (user_id, type, message) VALUES (?, ?, ?)`, userID, string(typ), message)
	if err != nil {
		return errors.Wrap(err, "insert notification", slog.String("type", string(typ)))
	}
	return nil
}

// latest returns the newest notifications of userID.
func (r *notificationRepository) latest(ctx context.Context, userID int) (_ []Notification, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, type, message, read, created
		FROM notifications
		WHERE user_id = ?
		ORDER BY created DESC, id DESC
		LIMIT ?`, userID, notificationListLimit)
	if err != nil {
		return nil, errors.Wrap(err, "query notifications")
	}
	defer closeRows(rows, &err)

	var notifications []Notification
	for rows.Next() {
		var (
			n       Notification
			typ     string
			created string
		)
		if err = rows.Scan(&n.ID, &typ, &n.Message, &n.Read, &created); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		n.Type = NotificationType(typ)
		if n.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate notifications")
	}
	return notifications, nil
}

func (r *notificationRepository) unreadCount(ctx context.Context, userID int) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND NOT read`, userID).
		Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count unread notifications")
	}
	return n, nil
}

// dismiss deletes one notification of userID. Read notifications are not kept around.
func (r *notificationRepository) dismiss(ctx context.Context, userID int, id int) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, errors.Wrap(err, "delete notification", slog.Int("notification_id", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

// dismissAll deletes every unread notification of userID and returns how many went away.
func (r *notificationRepository) dismissAll(ctx context.Context, userID int) (int, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ? AND NOT read`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "delete notifications")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return int(n), nil
}

func (r *notificationRepository) deleteAll(ctx context.Context, userID int) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ?`, userID); err != nil {
		return errors.Wrap(err, "delete all notifications")
	}
	return nil
}
