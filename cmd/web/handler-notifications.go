package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/workout"
)

type notificationsTemplateData struct {
	BaseTemplateData
	Notifications workout.Notifications
}

func (app *application) notificationsGET(w http.ResponseWriter, r *http.Request) {
	notifications, err := app.workoutService.Notifications(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "notifications"))
		return
	}
	app.render(w, r, http.StatusOK, "notifications", notificationsTemplateData{
		BaseTemplateData: app.baseData(r),
		Notifications:    notifications,
	})
}

func (app *application) notificationDismissPOST(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		app.notFound(w, r)
		return
	}
	if err = app.workoutService.DismissNotification(r.Context(), id); err != nil && app.flashError(w, r, err) {
		return
	}
	redirect(w, r, "/notifications")
}

func (app *application) notificationsDismissAllPOST(w http.ResponseWriter, r *http.Request) {
	n, err := app.workoutService.DismissAllNotifications(r.Context())
	if err != nil {
		if app.flashError(w, r, err) {
			return
		}
	} else {
		app.flash(r, fmt.Sprintf("Dismissed %d notifications.", n))
	}
	redirect(w, r, "/notifications")
}
