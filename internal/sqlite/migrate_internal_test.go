package sqlite

import (
	"log/slog"
	"testing"

	"github.com/myrjola/lockedin/internal/testhelpers"
)

func TestDatabase_migrateTo(t *testing.T) {
	t.Parallel()

	const (
		goals         = "CREATE TABLE goals (id INTEGER PRIMARY KEY, target INTEGER)"
		goalsWithNote = "CREATE TABLE goals (id INTEGER PRIMARY KEY, target INTEGER, note TEXT)"
		goalsIndex    = "CREATE INDEX goals_target ON goals (target)"
		failTrigger   = "CREATE TRIGGER goals_guard AFTER INSERT ON goals BEGIN SELECT RAISE (FAIL, 'no'); END"
	)

	tests := []struct {
		name     string
		schemas  []string
		query    string
		wantFail bool
	}{
		{name: "empty schema", schemas: []string{""}, query: "SELECT * FROM sqlite_schema"},
		{name: "create table", schemas: []string{goals}, query: "INSERT INTO goals (target) VALUES (4)"},
		{
			name:     "drop table",
			schemas:  []string{goals, ""},
			query:    "INSERT INTO goals (target) VALUES (4)",
			wantFail: true,
		},
		{
			name:    "add column",
			schemas: []string{goals, goalsWithNote},
			query:   "INSERT INTO goals (target, note) VALUES (4, 'x')",
		},
		{
			name:     "remove column",
			schemas:  []string{goalsWithNote, goals},
			query:    "INSERT INTO goals (target, note) VALUES (4, 'x')",
			wantFail: true,
		},
		{name: "create index", schemas: []string{goals + ";" + goalsIndex}, query: "DROP INDEX goals_target"},
		{
			name:     "drop index",
			schemas:  []string{goals + ";" + goalsIndex, goals},
			query:    "DROP INDEX goals_target",
			wantFail: true,
		},
		{
			name:    "change index",
			schemas: []string{goals + ";" + goalsIndex, goals + "; CREATE INDEX goals_target ON goals (id, target)"},
			query:   "DROP INDEX goals_target",
		},
		{
			name:    "index survives table rebuild",
			schemas: []string{goals + ";" + goalsIndex, goalsWithNote + ";" + goalsIndex},
			query:   "DROP INDEX goals_target",
		},
		{
			name:     "create trigger",
			schemas:  []string{goals + ";" + failTrigger},
			query:    "INSERT INTO goals (target) VALUES (4)",
			wantFail: true,
		},
		{
			name:    "drop trigger",
			schemas: []string{goals + ";" + failTrigger, goals},
			query:   "INSERT INTO goals (target) VALUES (4)",
		},
		{
			name: "change trigger",
			schemas: []string{
				goals + ";" + failTrigger,
				goals + "; CREATE TRIGGER goals_guard AFTER INSERT ON goals BEGIN SELECT 1; END",
			},
			query: "INSERT INTO goals (target) VALUES (4)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := t.Context()
			logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
			db, err := connect(ctx, ":memory:", logger)
			if err != nil {
				t.Fatalf("connect: %v", err)
			}
			t.Cleanup(func() {
				if err = db.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			})

			for _, schema := range tt.schemas {
				logger.LogAttrs(ctx, slog.LevelInfo, "migrating", slog.String("schema", schema))
				if err = db.migrateTo(ctx, schema); err != nil {
					t.Fatalf("migrateTo: %v", err)
				}
			}

			_, err = db.ReadWrite.ExecContext(ctx, tt.query)
			if tt.wantFail && err == nil {
				t.Errorf("expected %q to fail", tt.query)
			}
			if !tt.wantFail && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.query, err)
			}
		})
	}
}

func TestDatabase_migrateTo_keepsRows(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	db, err := connect(ctx, ":memory:", testhelpers.NewLogger(testhelpers.NewWriter(t)))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = db.migrateTo(ctx, "CREATE TABLE streaks (user_id INTEGER PRIMARY KEY, current INTEGER)"); err != nil {
		t.Fatalf("initial migration: %v", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx,
		"INSERT INTO streaks (user_id, current) VALUES (1, 6), (2, 12)"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err = db.migrateTo(ctx,
		"CREATE TABLE streaks (user_id INTEGER PRIMARY KEY, current INTEGER, longest INTEGER NOT NULL DEFAULT 0)")
	if err != nil {
		t.Fatalf("rebuild migration: %v", err)
	}

	var sum int
	if err = db.ReadOnly.QueryRowContext(ctx, "SELECT SUM(current) FROM streaks").Scan(&sum); err != nil {
		t.Fatalf("query: %v", err)
	}
	if sum != 18 {
		t.Errorf("sum of current streaks = %d, want 18", sum)
	}
}
