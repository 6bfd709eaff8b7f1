package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/myrjola/lockedin/internal/errors"

	_ "embed"
)

//go:embed schema.sql
var schemaDefinition string

//go:embed fixtures.sql
var fixtures string

// Database holds a single-connection writer and a pool of readers on the same SQLite file.
type Database struct {
	ReadWrite *sql.DB
	ReadOnly  *sql.DB
	logger    *slog.Logger
}

// NewDatabase connects to a database, migrates the schema, and applies fixtures.
//
// Writes are serialised through one connection that begins every transaction with BEGIN IMMEDIATE, so a
// read-modify-write inside Transact never interleaves with another writer.
// See https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995.
//
// The url parameter is the path to the SQLite database file or ":memory:" for an in-memory database.
func NewDatabase(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	db, err := connect(ctx, url, logger)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}

	if err = db.migrateTo(ctx, schemaDefinition); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}

	if _, err = db.ReadWrite.ExecContext(ctx, fixtures); err != nil {
		return nil, errors.Wrap(err, "apply fixtures")
	}

	go db.startDatabaseOptimizer(ctx)

	return db, nil
}

//nolint:gochecknoglobals // the driver may only be registered once per process.
var registerDriver sync.Once

const optimizedDriver = "sqlite3optimized"

func registerOptimizedDriver() {
	sql.Register(optimizedDriver,
		&sqlite3.SQLiteDriver{
			Extensions: nil,
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				pragmas := strings.Join([]string{
					// Temporary tables and indices live in memory.
					"PRAGMA temp_store = memory;",
					// Memory-mapped I/O avoids read syscalls.
					"PRAGMA mmap_size = 30000000000;",
				}, "")
				if _, err := conn.Exec(pragmas, nil); err != nil {
					return errors.Wrap(err, "exec connection pragmas")
				}
				return nil
			},
		})
}

// dsn builds a data source name. Options prefixed with '_' are documented at
// https://pkg.go.dev/github.com/mattn/go-sqlite3#SQLiteDriver.Open, the rest at https://www.sqlite.org/uri.html.
func dsn(file string, readOnly bool, inMemory bool) string {
	opts := []string{
		"_loc=auto",
		"_defer_foreign_keys=1",
		"_journal_mode=wal",
		"_busy_timeout=5000",
		"_synchronous=normal",
		"_foreign_keys=on",
	}
	if readOnly {
		opts = append(opts, "mode=ro", "_txlock=deferred", "_query_only=true")
	} else {
		opts = append(opts, "mode=rwc", "_txlock=immediate")
	}
	if inMemory {
		// Shared cache lets the writer and the readers see the same in-memory database.
		// See https://www.sqlite.org/inmemorydb.html.
		opts = append(opts, "mode=memory", "cache=shared")
	}
	return fmt.Sprintf("file:%s?%s", file, strings.Join(opts, "&"))
}

func connect(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	inMemory := strings.Contains(url, ":memory:")
	if inMemory {
		// Every in-memory database gets a unique name so that parallel tests stay isolated.
		url = rand.Text()
	}

	registerDriver.Do(registerOptimizedDriver)

	readWriteDSN := dsn(url, false, inMemory)
	readWrite, err := sql.Open(optimizedDriver, readWriteDSN)
	if err != nil {
		return nil, errors.Wrap(err, "open read-write database")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "opened database", slog.String("sqlDsn", readWriteDSN))

	readWrite.SetMaxOpenConns(1)
	readWrite.SetMaxIdleConns(1)
	readWrite.SetConnMaxLifetime(time.Hour)
	readWrite.SetConnMaxIdleTime(time.Hour)

	// sql.DB is lazy. Pinging creates the database file so that the read-only pool can open it.
	if err = readWrite.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "ping read-write database")
	}

	readOnly, err := sql.Open(optimizedDriver, dsn(url, true, inMemory))
	if err != nil {
		return nil, errors.Wrap(err, "open read-only database")
	}

	const maxReadConns = 10
	readOnly.SetMaxOpenConns(maxReadConns)
	readOnly.SetMaxIdleConns(maxReadConns)
	readOnly.SetConnMaxLifetime(time.Hour)
	readOnly.SetConnMaxIdleTime(time.Hour)

	return &Database{
		ReadWrite: readWrite,
		ReadOnly:  readOnly,
		logger:    logger,
	}, nil
}

// Transact runs fn inside a write transaction. The transaction is committed when fn returns nil and rolled back
// otherwise.
func (db *Database) Transact(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, errors.Wrap(rollbackErr, "rollback transaction"))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// IsUniqueViolation reports whether err is caused by a UNIQUE or PRIMARY KEY constraint.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Close closes the database connections.
func (db *Database) Close() error {
	return errors.Join(db.ReadOnly.Close(), db.ReadWrite.Close())
}
