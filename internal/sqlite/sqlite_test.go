package sqlite_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/myrjola/lockedin/internal/sqlite"
	"github.com/myrjola/lockedin/internal/testhelpers"
)

func newTestDatabase(t *testing.T) *sqlite.Database {
	t.Helper()
	db, err := sqlite.NewDatabase(t.Context(), ":memory:", testhelpers.NewLogger(testhelpers.NewWriter(t)))
	if err != nil {
		t.Fatalf("new database: %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})
	return db
}

func TestNewDatabase_AppliesFixtures(t *testing.T) {
	db := newTestDatabase(t)

	var focus string
	err := db.ReadOnly.QueryRowContext(t.Context(),
		"SELECT value FROM app_config WHERE key = 'current_focus'").Scan(&focus)
	if err != nil {
		t.Fatalf("query focus: %v", err)
	}
	if focus != "4 workouts per week" {
		t.Errorf("focus = %q", focus)
	}
}

func TestDatabase_Transact(t *testing.T) {
	db := newTestDatabase(t)
	ctx := t.Context()

	insertUser := func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, webauthn_user_id, display_name) VALUES (1, X'01', 'Alex')")
		return err
	}

	errBoom := errors.New("boom")
	err := db.Transact(ctx, func(tx *sql.Tx) error {
		if err := insertUser(tx); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Transact error = %v, want %v", err, errBoom)
	}

	var count int
	if err = db.ReadOnly.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 0 {
		t.Fatalf("rolled back transaction left %d users", count)
	}

	if err = db.Transact(ctx, insertUser); err != nil {
		t.Fatalf("Transact: %v", err)
	}
	err = db.Transact(ctx, insertUser)
	if !sqlite.IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if sqlite.IsUniqueViolation(errBoom) {
		t.Error("IsUniqueViolation(errBoom) = true")
	}
}

func TestSchema_OneWorkoutPerDay(t *testing.T) {
	db := newTestDatabase(t)
	ctx := t.Context()

	if _, err := db.ReadWrite.ExecContext(ctx,
		"INSERT INTO users (id, webauthn_user_id, display_name) VALUES (1, X'01', 'Alex')"); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	insert := `INSERT INTO workouts (id, user_id, completed_on, points_earned, retroactive)
VALUES (?, 1, '2025-03-14', 10, 0)`
	if _, err := db.ReadWrite.ExecContext(ctx, insert, "6f1d6c1c-5b6e-4f8e-9a3a-1f0c7f4f2a01"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := db.ReadWrite.ExecContext(ctx, insert, "6f1d6c1c-5b6e-4f8e-9a3a-1f0c7f4f2a02")
	if !sqlite.IsUniqueViolation(err) {
		t.Errorf("second insert error = %v, want unique violation", err)
	}
}
