package main

import (
	"log/slog"
	"net/http"

	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/webauthnhandler"
)

func (app *application) writeCeremonyJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// beginRegistration starts a passkey registration. The optional display_name form or query value names the new
// partner.
func (app *application) beginRegistration(w http.ResponseWriter, r *http.Request) {
	out, err := app.webAuthnHandler.BeginRegistration(r.Context(), r.FormValue("display_name"))
	if errors.Is(err, webauthnhandler.ErrInvalidDisplayName) {
		app.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Display name is too long."})
		return
	}
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "begin registration"))
		return
	}
	app.writeCeremonyJSON(w, out)
}

func (app *application) finishRegistration(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.FinishRegistration(r); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "registration failed", errors.SlogError(err))
		app.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Registration failed."})
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *application) beginLogin(w http.ResponseWriter, r *http.Request) {
	out, err := app.webAuthnHandler.BeginLogin(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "begin login"))
		return
	}
	app.writeCeremonyJSON(w, out)
}

func (app *application) finishLogin(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.FinishLogin(r); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "login failed", errors.SlogError(err))
		app.writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "Sign in failed."})
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.Logout(r.Context()); err != nil {
		app.serverError(w, r, errors.Wrap(err, "logout"))
		return
	}
	redirect(w, r, "/")
}
