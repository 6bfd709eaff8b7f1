package workout

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/lockedin/internal/calendar"
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// dbtx is satisfied by both *sql.DB and *sql.Tx so that the same queries run inside and outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// baseRepository is embedded by the table specific repositories.
type baseRepository struct {
	q dbtx
}

// repositories groups the table repositories bound to the same connection or transaction.
type repositories struct {
	workouts      *workoutRepository
	progress      *progressRepository
	preferences   *preferencesRepository
	notifications *notificationRepository
	appConfig     *appConfigRepository
	modules       *moduleRepository
	users         *userRepository
}

func newRepositories(q dbtx) repositories {
	base := baseRepository{q: q}
	return repositories{
		workouts:      &workoutRepository{baseRepository: base},
		progress:      &progressRepository{baseRepository: base},
		preferences:   &preferencesRepository{baseRepository: base},
		notifications: &notificationRepository{baseRepository: base},
		appConfig:     &appConfigRepository{baseRepository: base},
		modules:       &moduleRepository{baseRepository: base},
		users:         &userRepository{baseRepository: base},
	}
}

// repositoryFactory hands out repositories for reads and for write transactions.
type repositoryFactory struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newRepositoryFactory(db *sqlite.Database, logger *slog.Logger) *repositoryFactory {
	return &repositoryFactory{db: db, logger: logger}
}

// reader returns repositories on the read-only pool.
func (f *repositoryFactory) reader() repositories {
	return newRepositories(f.db.ReadOnly)
}

// transact runs fn in one write transaction. Nothing fn wrote is visible unless it returns nil.
func (f *repositoryFactory) transact(ctx context.Context, fn func(r repositories) error) error {
	err := f.db.Transact(ctx, func(tx *sql.Tx) error {
		return fn(newRepositories(tx))
	})
	if err != nil {
		f.logger.LogAttrs(ctx, slog.LevelDebug, "transaction rolled back", errors.SlogError(err))
		return errors.Wrap(err, "transaction")
	}
	return nil
}

func formatDate(d calendar.Date) string {
	return d.String()
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampFormat, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse timestamp", slog.String("value", s))
	}
	return t, nil
}

// closeRows closes rows and joins the close error into errp.
func closeRows(rows *sql.Rows, errp *error) {
	if err := rows.Close(); err != nil {
		*errp = errors.Join(*errp, errors.Wrap(err, "close rows"))
	}
}
