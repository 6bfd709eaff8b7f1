package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/lockedin/internal/errors"
)

// objectType is a row type in sqlite_schema.
type objectType string

const (
	objectTable   objectType = "table"
	objectIndex   objectType = "index"
	objectTrigger objectType = "trigger"
)

// schemaDiff compares one named object between the live database and the target schema.
type schemaDiff struct {
	name      string
	liveSQL   sql.NullString
	targetSQL sql.NullString
}

func (d schemaDiff) removed() bool { return !d.targetSQL.Valid }

func (d schemaDiff) added() bool { return !d.liveSQL.Valid }

// changed compares the definitions ignoring double quotes, which ALTER TABLE ... RENAME adds around table names.
func (d schemaDiff) changed() bool {
	if d.removed() || d.added() {
		return false
	}
	return strings.ReplaceAll(d.liveSQL.String, `"`, "") != strings.ReplaceAll(d.targetSQL.String, `"`, "")
}

// migrateTo makes the live schema match schemaDefinition.
//
// The migration is declarative. The target schema is created in a scratch in-memory database that is attached
// as "schemaTarget" and the two sqlite_schema tables are diffed. Removed tables are dropped, new tables created and
// changed tables rebuilt with the generalized ALTER TABLE procedure from
// https://www.sqlite.org/lang_altertable.html#otheralter, copying the columns both definitions share. Indexes and
// triggers are synchronised afterwards.
//
// Based on https://david.rothlis.net/declarative-schema-migration-for-sqlite/.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	start := time.Now()

	detach, err := db.attachSchemaTarget(ctx, schemaDefinition)
	if err != nil {
		return errors.Wrap(err, "attach schema target")
	}
	defer detach()

	// Foreign keys cannot be toggled inside a transaction.
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign keys")
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, errors.Wrap(fkErr, "enable foreign keys"))
		}
	}()

	err = db.Transact(ctx, func(tx *sql.Tx) error {
		m := &migrator{tx: tx, logger: db.logger}
		steps := []struct {
			name string
			run  func(context.Context) error
		}{
			{name: "tables", run: m.migrateTables},
			{name: "triggers", run: func(ctx context.Context) error { return m.syncObjects(ctx, objectTrigger) }},
			{name: "indexes", run: func(ctx context.Context) error { return m.syncObjects(ctx, objectIndex) }},
			{name: "foreign key check", run: m.checkForeignKeys},
		}
		for _, step := range steps {
			if stepErr := step.run(ctx); stepErr != nil {
				return errors.Wrap(stepErr, "migrate", slog.String("step", step.name))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

// attachSchemaTarget creates the target schema in a scratch database and attaches it to the writer connection.
// The returned function detaches it again.
func (db *Database) attachSchemaTarget(ctx context.Context, schemaDefinition string) (func(), error) {
	targetDSN := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", targetDSN)
	if err != nil {
		return nil, errors.Wrap(err, "open schema target")
	}
	// The shared cache keeps the in-memory database alive while the writer has it attached.
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close schema target",
				errors.SlogError(closeErr))
		}
	}()

	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, errors.Wrap(err, "create target schema")
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", targetDSN); err != nil {
		return nil, errors.Wrap(err, "attach")
	}

	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach schema target", errors.SlogError(detachErr))
		}
	}, nil
}

type migrator struct {
	tx     *sql.Tx
	logger *slog.Logger
}

func (m *migrator) exec(ctx context.Context, msg string, query string) error {
	m.logger.LogAttrs(ctx, slog.LevelInfo, msg, slog.String("query", query))
	if _, err := m.tx.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, msg, slog.String("query", query))
	}
	return nil
}

// diff lists every object of typ that exists in either schema.
func (m *migrator) diff(ctx context.Context, typ objectType) (_ []schemaDiff, err error) {
	rows, err := m.tx.QueryContext(ctx, `
SELECT COALESCE(live.name, target.name), live.sql, target.sql
FROM (SELECT name, sql FROM main.sqlite_schema WHERE type = :type) AS live
         FULL OUTER JOIN (SELECT name, sql FROM schemaTarget.sqlite_schema WHERE type = :type) AS target
                         ON live.name = target.name
WHERE COALESCE(live.name, target.name) NOT LIKE 'sqlite_%'
  AND COALESCE(live.name, target.name) NOT LIKE '_litestream_%'
ORDER BY 1`, sql.Named("type", string(typ)))
	if err != nil {
		return nil, errors.Wrap(err, "query schema diff", slog.String("type", string(typ)))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close rows"))
		}
	}()

	var diffs []schemaDiff
	for rows.Next() {
		var d schemaDiff
		if err = rows.Scan(&d.name, &d.liveSQL, &d.targetSQL); err != nil {
			return nil, errors.Wrap(err, "scan schema diff")
		}
		diffs = append(diffs, d)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate schema diff")
	}
	return diffs, nil
}

func (m *migrator) migrateTables(ctx context.Context) error {
	diffs, err := m.diff(ctx, objectTable)
	if err != nil {
		return err
	}
	for _, d := range diffs {
		switch {
		case d.removed():
			err = m.exec(ctx, "dropping table", "DROP TABLE "+d.name)
		case d.added():
			err = m.exec(ctx, "creating table", d.targetSQL.String)
		case d.changed():
			err = m.rebuildTable(ctx, d)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// rebuildTable recreates a table with its new definition and carries over the columns both definitions share.
func (m *migrator) rebuildTable(ctx context.Context, d schemaDiff) error {
	m.logger.LogAttrs(ctx, slog.LevelInfo, "rebuilding table",
		slog.String("table", d.name),
		slog.String("live_sql", d.liveSQL.String),
		slog.String("new_sql", d.targetSQL.String))

	tmp := d.name + "_migration_temp"
	if err := m.exec(ctx, "creating replacement table",
		strings.Replace(d.targetSQL.String, d.name, tmp, 1)); err != nil {
		return err
	}

	columns, err := m.sharedColumns(ctx, d.name)
	if err != nil {
		return err
	}
	cols := strings.Join(columns, ", ")
	steps := []struct{ msg, query string }{
		{"copying rows", fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tmp, cols, cols, d.name)},
		{"dropping old table", "DROP TABLE " + d.name},
		{"renaming replacement table", fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmp, d.name)},
	}
	for _, s := range steps {
		if err = m.exec(ctx, s.msg, s.query); err != nil {
			return err
		}
	}
	return nil
}

// sharedColumns returns the double-quoted names of columns present in both versions of table.
func (m *migrator) sharedColumns(ctx context.Context, table string) (_ []string, err error) {
	rows, err := m.tx.QueryContext(ctx, `
SELECT '"' || target.name || '"'
FROM PRAGMA_TABLE_INFO(:table) AS live
         JOIN PRAGMA_TABLE_INFO(:table, 'schemaTarget') AS target ON target.name = live.name`,
		sql.Named("table", table))
	if err != nil {
		return nil, errors.Wrap(err, "query shared columns", slog.String("table", table))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close rows"))
		}
	}()

	var columns []string
	for rows.Next() {
		var c string
		if err = rows.Scan(&c); err != nil {
			return nil, errors.Wrap(err, "scan column")
		}
		columns = append(columns, c)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate columns")
	}
	return columns, nil
}

// syncObjects drops, creates and replaces indexes or triggers so that they match the target schema.
func (m *migrator) syncObjects(ctx context.Context, typ objectType) error {
	diffs, err := m.diff(ctx, typ)
	if err != nil {
		return err
	}
	drop := fmt.Sprintf("DROP %s ", strings.ToUpper(string(typ)))
	for _, d := range diffs {
		switch {
		case d.removed():
			err = m.exec(ctx, "dropping "+string(typ), drop+d.name)
		case d.added():
			err = m.exec(ctx, "creating "+string(typ), d.targetSQL.String)
		case d.changed():
			if err = m.exec(ctx, "dropping changed "+string(typ), drop+d.name); err == nil {
				err = m.exec(ctx, "creating changed "+string(typ), d.targetSQL.String)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// checkForeignKeys fails when the migrated data violates a foreign key constraint.
func (m *migrator) checkForeignKeys(ctx context.Context) (err error) {
	rows, err := m.tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return errors.Wrap(err, "foreign key check")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close rows"))
		}
	}()
	if rows.Next() {
		var (
			table  string
			rowID  sql.NullInt64
			parent string
			fkID   int
		)
		if err = rows.Scan(&table, &rowID, &parent, &fkID); err != nil {
			return errors.Wrap(err, "scan foreign key violation")
		}
		return errors.New(fmt.Sprintf("foreign key violation in %s row %d referencing %s", table, rowID.Int64,
			parent))
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "iterate foreign key check")
	}
	return nil
}
