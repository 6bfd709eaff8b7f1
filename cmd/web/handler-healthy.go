package main

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/myrjola/lockedin/internal/errors"
)

// healthy reports whether the server can reach its database.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	if err := app.workoutService.Ping(r.Context()); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "health check failed", errors.SlogError(err))
		app.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// testTimeout sleeps for the sleep_ms query parameter so that the request timeout can be exercised.
func (app *application) testTimeout(w http.ResponseWriter, r *http.Request) {
	sleepMS, err := strconv.Atoi(r.URL.Query().Get("sleep_ms"))
	if err != nil || sleepMS < 0 {
		app.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "sleep_ms must be a non-negative integer"})
		return
	}
	time.Sleep(time.Duration(sleepMS) * time.Millisecond)
	app.writeJSON(w, r, http.StatusOK, map[string]int{"slept_ms": sleepMS})
}
