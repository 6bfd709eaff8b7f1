package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/myrjola/lockedin/internal/errors"
)

const usersTable = "users"

// ownedTable is a table with a column referencing users.id.
type ownedTable struct {
	name   string
	column string
}

// ExportUser copies the users row of userID and every row referencing it into a new SQLite file in dir and returns
// the path of the file. Tables are copied with their original definitions.
func (db *Database) ExportUser(ctx context.Context, userID int, dir string) (_ string, err error) {
	exportPath := filepath.Join(dir, fmt.Sprintf("lockedin-export-%d-%s.sqlite3", userID, rand.Text()))

	conn, err := db.ReadOnly.Conn(ctx)
	if err != nil {
		return "", errors.Wrap(err, "get connection")
	}
	defer func() {
		// The connection goes back to the read-only pool.
		_, restoreErr := conn.ExecContext(context.WithoutCancel(ctx),
			"PRAGMA query_only = TRUE; PRAGMA foreign_keys = ON")
		err = errors.Join(err, restoreErr, conn.Close())
	}()

	// Foreign keys are off so that tables can be filled in any order.
	if _, err = conn.ExecContext(ctx, "PRAGMA query_only = FALSE; PRAGMA foreign_keys = OFF"); err != nil {
		return "", errors.Wrap(err, "prepare connection")
	}
	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS export", "file:"+exportPath+"?mode=rwc"); err != nil {
		return "", errors.Wrap(err, "attach export database", slog.String("path", exportPath))
	}
	defer func() {
		if _, detachErr := conn.ExecContext(context.WithoutCancel(ctx), "DETACH DATABASE export"); detachErr != nil {
			err = errors.Join(err, errors.Wrap(detachErr, "detach export database"))
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	tables, err := ownedTables(ctx, tx)
	if err != nil {
		return "", err
	}
	for _, table := range tables {
		if err = copyOwnedRows(ctx, tx, table, userID); err != nil {
			return "", errors.Wrap(err, "copy table", slog.String("table", table.name))
		}
	}
	if err = tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit export")
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "exported user data",
		slog.Int("user_id", userID), slog.Int("tables", len(tables)))
	return exportPath, nil
}

// ownedTables lists the users table followed by the tables that reference users.id directly.
func ownedTables(ctx context.Context, tx *sql.Tx) (_ []ownedTable, err error) {
	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM main.sqlite_schema WHERE type = 'table' AND name = ?)", usersTable).Scan(&exists)
	if err != nil {
		return nil, errors.Wrap(err, "check users table")
	}
	if !exists {
		return nil, errors.New("users table does not exist")
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT m.name, fk."from"
		FROM main.sqlite_schema m
		         JOIN pragma_foreign_key_list(m.name) fk
		WHERE m.type = 'table'
		  AND fk."table" = ?
		  AND fk."to" = 'id'
		ORDER BY m.name`, usersTable)
	if err != nil {
		return nil, errors.Wrap(err, "query referencing tables")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close rows"))
		}
	}()

	tables := []ownedTable{{name: usersTable, column: "id"}}
	for rows.Next() {
		var t ownedTable
		if err = rows.Scan(&t.name, &t.column); err != nil {
			return nil, errors.Wrap(err, "scan referencing table")
		}
		tables = append(tables, t)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate referencing tables")
	}
	return tables, nil
}

func copyOwnedRows(ctx context.Context, tx *sql.Tx, table ownedTable, userID int) error {
	var createSQL string
	err := tx.QueryRowContext(ctx,
		"SELECT sql FROM main.sqlite_schema WHERE type = 'table' AND name = ?", table.name).Scan(&createSQL)
	if err != nil {
		return errors.Wrap(err, "read table definition")
	}
	prefix := "CREATE TABLE " + table.name
	if !strings.HasPrefix(createSQL, prefix) {
		return errors.New("unexpected table definition: " + createSQL)
	}
	if _, err = tx.ExecContext(ctx, "CREATE TABLE export."+table.name+createSQL[len(prefix):]); err != nil {
		return errors.Wrap(err, "create export table")
	}

	// Identifiers come from sqlite_schema, not from user input.
	query := fmt.Sprintf(`INSERT INTO export.%[1]s SELECT * FROM main.%[1]s WHERE "%[2]s" = ?`,
		table.name, table.column)
	if _, err = tx.ExecContext(ctx, query, userID); err != nil {
		return errors.Wrap(err, "copy rows")
	}
	return nil
}
