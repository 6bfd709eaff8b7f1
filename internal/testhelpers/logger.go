package testhelpers

import (
	"io"
	"log/slog"

	"github.com/myrjola/lockedin/internal/logging"
)

// NewLogger creates a debug level logger writing to logSink, usually a [Writer] from NewWriter.
func NewLogger(logSink io.Writer) *slog.Logger {
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	})))
}
