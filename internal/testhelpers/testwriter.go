// Package testhelpers contains helpers shared by tests across packages.
package testhelpers

import (
	"io"
	"strings"
	"testing"
)

// Writer is an [io.Writer] that forwards to t.Log so that logs only show up for failing tests.
type Writer struct {
	t        *testing.T
	testDone chan struct{}
}

// NewWriter creates a Writer bound to t. Writing after t has finished panics, which catches goroutines that
// outlive their test, such as a server that was not shut down.
func NewWriter(t *testing.T) io.Writer {
	w := &Writer{
		t:        t,
		testDone: make(chan struct{}),
	}
	t.Cleanup(func() {
		close(w.testDone)
	})
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	select {
	case <-w.testDone:
		panic("testwriter: write after test completion, is the server shut down in t.Cleanup?")
	default:
		if output := strings.TrimSuffix(string(p), "\n"); output != "" {
			w.t.Log(output)
		}
		return len(p), nil
	}
}
