package workout

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/myrjola/lockedin/internal/errors"
)

// moduleRepository stores the household's habit modules.
type moduleRepository struct {
	baseRepository
}

func (r *moduleRepository) list(ctx context.Context) (_ []HabitModule, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT m.id, m.title, m.description, m.order_index, u.display_name
		FROM habit_modules m
		         LEFT JOIN users u ON u.id = m.created_by
		ORDER BY m.order_index, m.id`)
	if err != nil {
		return nil, errors.Wrap(err, "query habit modules")
	}
	defer closeRows(rows, &err)

	var modules []HabitModule
	for rows.Next() {
		var (
			m  HabitModule
			by sql.NullString
		)
		if err = rows.Scan(&m.ID, &m.Title, &m.Description, &m.OrderIndex, &by); err != nil {
			return nil, errors.Wrap(err, "scan habit module")
		}
		m.CreatedBy = by.String
		modules = append(modules, m)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate habit modules")
	}
	return modules, nil
}

// insert appends a module after the last one.
func (r *moduleRepository) insert(ctx context.Context, userID int, title, description string) (HabitModule, error) {
	m := HabitModule{Title: title, Description: description} //nolint:exhaustruct // Scanned below.
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO habit_modules (title, description, order_index, created_by)
		VALUES (?, ?, (SELECT COALESCE(MAX(order_index) + 1, 0) FROM habit_modules), ?)
		RETURNING id, order_index`,
		title, description, userID).Scan(&m.ID, &m.OrderIndex)
	if err != nil {
		return HabitModule{}, errors.Wrap(err, "insert habit module", slog.String("title", title))
	}
	return m, nil
}

// update changes the title and description of a module. It reports whether the module exists.
func (r *moduleRepository) update(ctx context.Context, id int, title, description string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE habit_modules SET title = ?, description = ? WHERE id = ?`, title, description, id)
	if err != nil {
		return false, errors.Wrap(err, "update habit module", slog.Int("module_id", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

// delete removes a module. It reports whether the module existed.
func (r *moduleRepository) delete(ctx context.Context, id int) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM habit_modules WHERE id = ?`, id)
	if err != nil {
		return false, errors.Wrap(err, "delete habit module", slog.Int("module_id", id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}
