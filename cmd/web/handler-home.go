package main

import (
	"net/http"

	"github.com/myrjola/lockedin/internal/calendar"
	"github.com/myrjola/lockedin/internal/contexthelpers"
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/workout"
)

const retroactiveWindowDays = 7

type homeTemplateData struct {
	BaseTemplateData
	Me                  workout.Stats
	Comparison          workout.Comparison
	Recent              []workout.Workout
	Focus               workout.Focus
	Modules             []workout.HabitModule
	UnreadNotifications int
	Today               calendar.Date
	// RetroMin and RetroMax bound the date picker of the retroactive log form.
	RetroMin calendar.Date
	RetroMax calendar.Date
}

func (app *application) home(w http.ResponseWriter, r *http.Request) {
	data := homeTemplateData{BaseTemplateData: app.baseData(r)} //nolint:exhaustruct // Filled below when signed in.
	if !data.Authenticated {
		app.render(w, r, http.StatusOK, "home", data)
		return
	}

	ctx := r.Context()
	comparison, err := app.workoutService.Comparison(ctx)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "comparison"))
		return
	}
	me, err := app.workoutService.Stats(ctx, contexthelpers.AuthenticatedUserID(ctx))
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "stats"))
		return
	}
	recent, err := app.workoutService.RecentWorkouts(ctx)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "recent workouts"))
		return
	}
	focus, err := app.workoutService.Focus(ctx)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "focus"))
		return
	}
	modules, err := app.workoutService.Modules(ctx)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "habit modules"))
		return
	}
	notifications, err := app.workoutService.Notifications(ctx)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "notifications"))
		return
	}

	today := app.workoutService.Today()
	data.Me = me
	data.Comparison = comparison
	data.Recent = recent
	data.Focus = focus
	data.Modules = modules
	data.UnreadNotifications = notifications.Unread
	data.Today = today
	data.RetroMin = today.AddDays(-retroactiveWindowDays)
	data.RetroMax = today.AddDays(-1)

	app.render(w, r, http.StatusOK, "home", data)
}

func (app *application) focusPOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse form"))
		return
	}
	if err := app.workoutService.SetFocus(r.Context(), r.PostForm.Get("focus")); err != nil {
		if app.flashError(w, r, err) {
			return
		}
	} else {
		app.flash(r, "Focus updated.")
	}
	redirect(w, r, "/")
}
