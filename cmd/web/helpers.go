package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/workout"
)

const (
	flashSessionKey      = "flash"
	flashErrorSessionKey = "flash_error"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.render(w, r, http.StatusInternalServerError, "error", newBaseTemplateData(r))
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.render(w, r, http.StatusNotFound, "not-found", newBaseTemplateData(r))
}

// redirect detects if the request is originating from a fetch API call or a top-level navigation and points the user
// to the correct URL.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("Sec-Fetch-Dest") == "empty" {
		w.Header().Set("Content-Location", path)
		w.WriteHeader(http.StatusOK)
		return
	}

	http.Redirect(w, r, path, http.StatusSeeOther)
}

// flash stores a message shown once on the next rendered page.
func (app *application) flash(r *http.Request, message string) {
	app.sessionManager.Put(r.Context(), flashSessionKey, message)
}

// flashError handles a failed service call from a form post. Failures the user can act on become a flash message,
// anything else is a server error. It reports whether the request is fully handled.
func (app *application) flashError(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, workout.ErrStorage) {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "storage failure", errors.SlogError(err))
	}
	if statusForError(err) == http.StatusInternalServerError {
		app.serverError(w, r, err)
		return true
	}
	app.sessionManager.Put(r.Context(), flashErrorSessionKey, workout.UserMessage(err))
	return false
}

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "encode response", errors.SlogError(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// statusForError maps a service failure category to the HTTP status of the JSON API.
func statusForError(err error) int {
	switch {
	case errors.Is(err, workout.ErrValidation), errors.Is(err, workout.ErrWindowViolation):
		return http.StatusBadRequest
	case errors.Is(err, workout.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, workout.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workout.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes the client message of err with the matching status code.
func (app *application) writeJSONError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	app.logger.LogAttrs(r.Context(), level, "request rejected", errors.SlogError(err))
	app.writeJSON(w, r, status, errorResponse{Error: workout.UserMessage(err)})
}

// workoutIDParam returns the "id" path parameter when it is a well-formed workout id.
func workoutIDParam(r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
