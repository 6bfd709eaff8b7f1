package main

import (
	"net/http"

	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/gamification"
	"github.com/myrjola/lockedin/internal/workout"
)

// flashLogResult shows the outcome of a log together with any milestones it unlocked.
func (app *application) flashLogResult(r *http.Request, result workout.LogResult) {
	message := result.Message
	for _, m := range result.Milestones {
		message += " " + m.Message()
	}
	app.flash(r, message)
}

func (app *application) workoutTodayPOST(w http.ResponseWriter, r *http.Request) {
	result, err := app.workoutService.LogToday(r.Context())
	if err != nil {
		if app.flashError(w, r, err) {
			return
		}
	} else {
		app.flashLogResult(r, result)
	}
	redirect(w, r, "/")
}

func (app *application) workoutRetroactivePOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse form"))
		return
	}
	ctx := r.Context()
	date, err := workout.ParseDate(r.PostForm.Get("date"))
	if err == nil {
		var result workout.LogResult
		if result, err = app.workoutService.LogRetroactive(ctx, date); err == nil {
			app.flashLogResult(r, result)
		}
	}
	if err != nil && app.flashError(w, r, err) {
		return
	}
	redirect(w, r, "/")
}

func (app *application) workoutDeletePOST(w http.ResponseWriter, r *http.Request) {
	id, ok := workoutIDParam(r)
	if !ok {
		app.notFound(w, r)
		return
	}
	result, err := app.workoutService.DeleteWorkout(r.Context(), id)
	if err != nil {
		if app.flashError(w, r, err) {
			return
		}
	} else {
		app.flash(r, result.Message)
	}
	redirect(w, r, "/")
}

type milestonesTemplateData struct {
	BaseTemplateData
	Ladders []workout.MilestoneLadder
}

func (app *application) milestonesGET(w http.ResponseWriter, r *http.Request) {
	ladders, err := app.workoutService.MilestoneOverview(r.Context())
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "milestone overview"))
		return
	}
	app.render(w, r, http.StatusOK, "milestones", milestonesTemplateData{
		BaseTemplateData: app.baseData(r),
		Ladders:          ladders,
	})
}

// milestoneJSON is the wire form of a reached milestone.
type milestoneJSON struct {
	Category gamification.Category `json:"category"`
	Value    int                   `json:"value"`
	Message  string                `json:"message"`
}

func toMilestonesJSON(milestones []gamification.Milestone) []milestoneJSON {
	out := make([]milestoneJSON, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, milestoneJSON{Category: m.Category, Value: m.Value, Message: m.Message()})
	}
	return out
}
