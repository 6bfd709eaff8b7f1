package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/gamification"
	"github.com/myrjola/lockedin/internal/workout"
)

type preferencesTemplateData struct {
	BaseTemplateData
	DisplayName  string
	WeeklyTarget int
	Targets      []int
	Shared       bool
}

func weeklyTargetOptions() []int {
	targets := make([]int, 0, gamification.MaxWeeklyTarget)
	for t := gamification.MinWeeklyTarget; t <= gamification.MaxWeeklyTarget; t++ {
		targets = append(targets, t)
	}
	return targets
}

func (app *application) preferencesGET(w http.ResponseWriter, r *http.Request) {
	target, err := app.workoutService.Preferences(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "get preferences"))
		return
	}
	profile, err := app.workoutService.Profile(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "get profile"))
		return
	}
	app.render(w, r, http.StatusOK, "preferences", preferencesTemplateData{
		BaseTemplateData: app.baseData(r),
		DisplayName:      profile.DisplayName,
		WeeklyTarget:     target,
		Targets:          weeklyTargetOptions(),
		Shared:           app.workoutService.PreferenceScope() == workout.ScopeShared,
	})
}

func (app *application) preferencesPOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse form"))
		return
	}
	// A malformed number is out of range as far as the service is concerned.
	target, convErr := strconv.Atoi(r.PostForm.Get("weekly_target"))
	if convErr != nil {
		target = 0
	}
	if err := app.workoutService.SavePreferences(r.Context(), target); err != nil {
		if app.flashError(w, r, err) {
			return
		}
		redirect(w, r, "/preferences")
		return
	}
	app.flash(r, fmt.Sprintf("Weekly target set to %d.", target))
	redirect(w, r, "/preferences")
}

func (app *application) profilePOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse form"))
		return
	}
	name, err := app.workoutService.SetDisplayName(r.Context(), r.PostForm.Get("display_name"))
	if err != nil {
		if app.flashError(w, r, err) {
			return
		}
	} else {
		app.flash(r, fmt.Sprintf("You are now %s.", name))
	}
	redirect(w, r, "/preferences")
}

func (app *application) resetProgressPOST(w http.ResponseWriter, r *http.Request) {
	if err := app.workoutService.ResetProgress(r.Context()); err != nil {
		if app.flashError(w, r, err) {
			return
		}
		redirect(w, r, "/preferences")
		return
	}
	app.flash(r, "Fresh start! All your progress was reset.")
	redirect(w, r, "/")
}

func (app *application) exportUserDataGET(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	exportPath, err := app.workoutService.ExportUserData(ctx, os.TempDir())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "export user data"))
		return
	}
	defer func() {
		if removeErr := os.Remove(exportPath); removeErr != nil {
			app.logger.LogAttrs(ctx, slog.LevelWarn, "remove export file",
				slog.String("path", exportPath), errors.SlogError(removeErr))
		}
	}()

	file, err := os.Open(exportPath)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "open export file"))
		return
	}
	defer func() {
		_ = file.Close()
	}()

	w.Header().Set("Content-Type", "application/x-sqlite3")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(exportPath)))
	if _, err = io.Copy(w, file); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "stream export file", errors.SlogError(err))
	}
}
