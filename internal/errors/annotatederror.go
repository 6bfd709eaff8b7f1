// Package errors wraps the standard library errors package with annotated errors that carry structured
// slog attributes and the source location where they were created.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// annotatedError is an error enriched with a message, slog attributes and the location it was created at.
type annotatedError struct {
	msg         string
	cause       error
	annotations []slog.Attr
	source      string
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	if e.msg == "" {
		return e.cause.Error()
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

// NewSentinel creates a package level sentinel error. It does not capture a source location since sentinels are
// declared once and compared with [Is].
func NewSentinel(msg string) error {
	return errors.New(msg) //nolint:err113 // this is the sentinel constructor.
}

// New is an alias for the standard library errors.New.
func New(msg string) error {
	return errors.New(msg) //nolint:err113 // dynamic errors are fine for one-off failures.
}

// Wrap annotates err with msg and attrs and records the caller's source location.
//
// Wrapping a nil error produces an annotated error with only the message so that accidental nil wraps still
// surface in logs instead of being silently dropped.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	return &annotatedError{
		msg:         msg,
		cause:       err,
		annotations: attrs,
		source:      callerSource(2), //nolint:mnd // skip callerSource and Wrap.
	}
}

// DecoratePanic converts a value recovered from a panic into an annotated error that points to the panic site.
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	var cause error
	if err, ok := recovered.(error); ok {
		cause = err
	} else {
		cause = fmt.Errorf("%v", recovered) //nolint:err113 // panic values are dynamic.
	}
	return &annotatedError{
		msg:         "panic",
		cause:       cause,
		annotations: nil,
		source:      panicSource(),
	}
}

// SlogError renders err as a slog group attribute named "error" that contains the message, the annotations of every
// annotated error in the chain and the source location of the outermost annotated error.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	attrs := []any{slog.String("message", err.Error())}

	var (
		annotations []any
		source      string
	)
	walk(err, func(e error) {
		ae, ok := e.(*annotatedError) //nolint:errorlint // walk already unwraps the chain.
		if !ok {
			return
		}
		for _, a := range ae.annotations {
			annotations = append(annotations, a)
		}
		if source == "" {
			source = ae.source
		}
	})
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Group("annotations", annotations...))
	}
	if source != "" {
		attrs = append(attrs, slog.String("source", source))
	}
	return slog.Group("error", attrs...)
}

// walk visits err and every error reachable through Unwrap, including joined errors.
func walk(err error, visit func(error)) {
	if err == nil {
		return
	}
	visit(err)
	switch u := err.(type) { //nolint:errorlint // we need the raw unwrap interfaces here.
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			walk(e, visit)
		}
	case interface{ Unwrap() error }:
		walk(u.Unwrap(), visit)
	}
}

func callerSource(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// panicSource finds the first frame after runtime.gopanic, which is where panic was called.
func panicSource() string {
	pcs := make([]uintptr, 32) //nolint:mnd // deep enough for any panic site.
	n := runtime.Callers(2, pcs) //nolint:mnd // skip runtime.Callers and panicSource.
	frames := runtime.CallersFrames(pcs[:n])
	sawPanic := false
	for {
		frame, more := frames.Next()
		if sawPanic && !strings.HasPrefix(frame.Function, "runtime.") {
			return filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
		}
		if frame.Function == "runtime.gopanic" {
			sawPanic = true
		}
		if !more {
			break
		}
	}
	return callerSource(3) //nolint:mnd // fall back to whoever called DecoratePanic.
}

// Is is an alias for the standard library errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is an alias for the standard library errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap is an alias for the standard library errors.Unwrap.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join is an alias for the standard library errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
