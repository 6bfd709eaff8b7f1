package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/myrjola/lockedin/internal/e2etest"
	"github.com/myrjola/lockedin/internal/errors"
)

const defaultTimeout = 2 * time.Second

func newHTTPServer(handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{ //nolint:exhaustruct // Defaults are fine for the rest.
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		Handler:           handler,
		IdleTimeout:       time.Minute,
		ReadTimeout:       defaultTimeout,
		WriteTimeout:      defaultTimeout,
		ReadHeaderTimeout: time.Second,
	}
}

// serveUntilDone serves on listener until ctx is done and then shuts the server down gracefully.
func serveUntilDone(ctx context.Context, srv *http.Server, listener net.Listener, logger *slog.Logger) error {
	shutdownComplete := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.LogAttrs(ctx, slog.LevelInfo, "shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
		defer cancel()
		var err error
		if err = srv.Shutdown(shutdownCtx); err != nil {
			err = errors.Wrap(err, "shutdown server")
		}
		shutdownComplete <- err
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server serve")
	}
	return <-shutdownComplete
}

// configureAndStartServer configures and starts the HTTP server. It returns once ctx is done and the server has
// shut down.
func (app *application) configureAndStartServer(ctx context.Context, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "TCP listen", slog.String("listen_addr", addr))
	}
	app.logger.LogAttrs(ctx, slog.LevelInfo, "starting server", slog.Any(e2etest.LogAddrKey, listener.Addr().String()))
	return serveUntilDone(ctx, newHTTPServer(handler, app.logger), listener, app.logger)
}

// launchMetricsServer serves the Prometheus handler on addr in the background until ctx is done.
func launchMetricsServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	go func() {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "metrics listen failed", errors.SlogError(err))
			return
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "starting metrics server",
			slog.String("metrics_addr", listener.Addr().String()))
		if err = serveUntilDone(ctx, newHTTPServer(mux, logger), listener, logger); err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "metrics server stopped", errors.SlogError(err))
		}
	}()
}
