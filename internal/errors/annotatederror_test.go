package errors_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/testhelpers"
)

func TestAnnotatedError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "sentinel",
			err:  errors.NewSentinel("already logged"),
			want: "already logged",
		},
		{
			name: "wrapped with annotation",
			err:  errors.Wrap(errors.NewSentinel("already logged"), "log today", slog.String("date", "2025-03-14")),
			want: "log today: already logged",
		},
		{
			name: "nested wraps",
			err: errors.Wrap(
				errors.Wrap(errors.NewSentinel("constraint failed"), "insert workout"),
				"log today",
			),
			want: "log today: insert workout: constraint failed",
		},
		{
			name: "wrapped nil keeps the message",
			err:  errors.Wrap(nil, "unexpected nil"),
			want: "unexpected nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	root := errors.NewSentinel("out of window")
	wrapped := errors.Wrap(fmt.Errorf("retroactive: %w", root), "log retroactive")

	if !errors.Is(wrapped, root) {
		t.Errorf("Is() = false, want true for wrapped error")
	}
	if errors.Is(wrapped, errors.NewSentinel("out of window")) {
		t.Errorf("Is() = true, want false for a distinct sentinel with the same text")
	}
	if unwrapped := errors.Unwrap(root); unwrapped != nil {
		t.Errorf("Unwrap(sentinel) = %v, want nil", unwrapped)
	}
}

type storageError struct {
	table string
}

func (e *storageError) Error() string {
	return "storage failure in " + e.table
}

func TestAs(t *testing.T) {
	root := &storageError{table: "workouts"}
	wrapped := errors.Wrap(errors.Join(errors.NewSentinel("other"), root), "persist")

	var target *storageError
	if !errors.As(wrapped, &target) {
		t.Fatal("As() = false, want true")
	}
	if target != root {
		t.Errorf("As() target = %v, want %v", target, root)
	}
}

func TestSlogError(t *testing.T) {
	_, _, line, _ := runtime.Caller(0)
	err := errors.Wrap(errors.NewSentinel("root cause"), "context", slog.String("key", "value"), slog.Int("user_id", 7))
	err = errors.Wrap(err, "outer", slog.String("date", "2025-03-14"))

	var buf bytes.Buffer
	logger := testhelpers.NewLogger(&buf)
	logger.Info("test", errors.SlogError(err))
	logLine := buf.String()

	for _, want := range []string{
		"error.message=\"outer: context: root cause\"",
		"error.annotations.key=value",
		"error.annotations.user_id=7",
		"error.annotations.date=2025-03-14",
		// The outermost wrap is reported.
		"annotatederror_test.go:" + strconv.Itoa(line+2),
	} {
		if !strings.Contains(logLine, want) {
			t.Errorf("expected log line %s to contain %s", logLine, want)
		}
	}
	if strings.Contains(logLine, "annotatederror.go") {
		t.Fatal("source points into the errors package instead of the caller")
	}

	// None of these may panic.
	errors.SlogError(errors.Join(nil, nil, errors.NewSentinel("sentinel"), errors.New("test")))
	errors.SlogError(nil)
	errors.SlogError(fmt.Errorf("test: %w", errors.NewSentinel("sentinel")))
	errors.SlogError(errors.Wrap(errors.Join(nil, nil), "wrap error"))
}

func TestDecoratePanic(t *testing.T) {
	var line int
	defer func() {
		err := errors.DecoratePanic(recover())
		if err == nil {
			t.Fatal("expected error")
		}
		if got, want := err.Error(), "panic: boom"; got != want {
			t.Errorf("err.Error() = %q, want %q", got, want)
		}
		want := "annotatederror_test.go:" + strconv.Itoa(line+1)
		if got := errors.SlogError(err).String(); !strings.Contains(got, want) {
			t.Errorf("SlogError() = %q, expected it to contain %q", got, want)
		}
	}()
	_, _, line, _ = runtime.Caller(0)
	panic("boom")
}

func TestDecoratePanic_Nil(t *testing.T) {
	if err := errors.DecoratePanic(nil); err != nil {
		t.Errorf("DecoratePanic(nil) = %v, want nil", err)
	}
}
