package workout

import (
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/sqlite"
)

// Failure categories. Every error returned by Service matches exactly one of them with errors.Is.
var (
	ErrValidation      = errors.NewSentinel("invalid input")
	ErrConflict        = errors.NewSentinel("conflict")
	ErrWindowViolation = errors.NewSentinel("outside the allowed date window")
	ErrNotFound        = errors.NewSentinel("not found")
	ErrStorage         = errors.NewSentinel("storage failure")
)

// Specific failures. Each one also matches its category.
var (
	ErrAlreadyLogged       error = &kindError{msg: "workout already logged for date", kind: ErrConflict}
	ErrFutureDate          error = &kindError{msg: "date is in the future", kind: ErrWindowViolation}
	ErrOutOfWindow         error = &kindError{msg: "date is more than 7 days ago", kind: ErrWindowViolation}
	ErrNotFoundOrForbidden error = &kindError{msg: "workout not found or not owned by user", kind: ErrNotFound}
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// userError carries the message shown to the user next to the failure kind and the underlying cause.
type userError struct {
	kind    error
	message string
	cause   error
}

func (e *userError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *userError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func newUserError(kind error, message string) error {
	return &userError{kind: kind, message: message, cause: nil}
}

func validationError(message string, cause error) error {
	return &userError{kind: ErrValidation, message: message, cause: cause}
}

const genericStorageMessage = "Something went wrong saving your progress. Please try again."

// UserMessage returns the text to show the user for err. Unclassified errors get a generic retry message.
func UserMessage(err error) string {
	var ue *userError
	if errors.As(err, &ue) {
		return ue.message
	}
	return genericStorageMessage
}

// classify makes sure err belongs to one of the failure categories. A unique constraint violation on the workouts
// table means a concurrent request logged the same date first, so it is reported like a sequential duplicate.
func classify(err error, duplicateMessage string) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrValidation, ErrConflict, ErrWindowViolation, ErrNotFound, ErrStorage} {
		if errors.Is(err, kind) {
			return err
		}
	}
	if sqlite.IsUniqueViolation(err) {
		return &userError{kind: ErrAlreadyLogged, message: duplicateMessage, cause: err}
	}
	return &userError{kind: ErrStorage, message: genericStorageMessage, cause: err}
}

var (
	errAlreadyLoggedToday = newUserError(ErrAlreadyLogged, msgAlreadyLoggedToday)
	errAlreadyLoggedDate  = newUserError(ErrAlreadyLogged, msgAlreadyLoggedDate)
	errFutureDate         = newUserError(ErrFutureDate, "Cannot log workouts for future dates")
	errLogOutOfWindow     = newUserError(ErrOutOfWindow, "Can only log workouts from the last 7 days")
	errDeleteOutOfWindow  = newUserError(ErrOutOfWindow, "Can only delete workouts from the last 7 days")
	errWorkoutNotFound    = newUserError(ErrNotFoundOrForbidden, "Workout not found or access denied")
)

const (
	msgAlreadyLoggedToday = "You have already logged a workout today!"
	msgAlreadyLoggedDate  = "You already logged a workout for this date!"
)
