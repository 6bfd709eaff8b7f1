package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/myrjola/lockedin/internal/contexthelpers"
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/workout"
)

const maxAPIBodyBytes = 4 << 10

type logResponse struct {
	WorkoutID     string          `json:"workoutId"`
	Date          string          `json:"date"`
	PointsEarned  int             `json:"pointsEarned"`
	CurrentStreak int             `json:"currentStreak"`
	StreakBroken  bool            `json:"streakBroken"`
	GoalCompleted bool            `json:"goalCompleted"`
	Milestones    []milestoneJSON `json:"milestones"`
	Message       string          `json:"message"`
}

func toLogResponse(result workout.LogResult) logResponse {
	return logResponse{
		WorkoutID:     result.WorkoutID,
		Date:          result.Date.String(),
		PointsEarned:  result.PointsEarned,
		CurrentStreak: result.CurrentStreak,
		StreakBroken:  result.StreakBroken,
		GoalCompleted: result.GoalCompleted,
		Milestones:    toMilestonesJSON(result.Milestones),
		Message:       result.Message,
	}
}

func (app *application) apiLogToday(w http.ResponseWriter, r *http.Request) {
	result, err := app.workoutService.LogToday(r.Context())
	if err != nil {
		app.writeJSONError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, toLogResponse(result))
}

type retroactiveRequest struct {
	Date string `json:"date"`
}

func (app *application) apiLogRetroactive(w http.ResponseWriter, r *http.Request) {
	var req retroactiveRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxAPIBodyBytes)).Decode(&req)
	// An empty body logs yesterday.
	if err != nil && !errors.Is(err, io.EOF) {
		app.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Request body must be JSON."})
		return
	}
	date, err := workout.ParseDate(req.Date)
	if err != nil {
		app.writeJSONError(w, r, err)
		return
	}
	result, err := app.workoutService.LogRetroactive(r.Context(), date)
	if err != nil {
		app.writeJSONError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, toLogResponse(result))
}

type deleteResponse struct {
	CurrentStreak int    `json:"currentStreak"`
	Message       string `json:"message"`
}

func (app *application) apiDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	id, ok := workoutIDParam(r)
	if !ok {
		app.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "Workout not found or access denied"})
		return
	}
	result, err := app.workoutService.DeleteWorkout(r.Context(), id)
	if err != nil {
		app.writeJSONError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, deleteResponse{CurrentStreak: result.CurrentStreak, Message: result.Message})
}

type weekJSON struct {
	WeekStart string `json:"weekStart"`
	Completed int    `json:"completed"`
	Target    int    `json:"target"`
	Achieved  bool   `json:"achieved"`
}

type statsResponse struct {
	UserID           int      `json:"userId"`
	DisplayName      string   `json:"displayName"`
	TotalWorkouts    int      `json:"totalWorkouts"`
	TotalPoints      int      `json:"totalPoints"`
	CurrentStreak    int      `json:"currentStreak"`
	LongestStreak    int      `json:"longestStreak"`
	LastWorkout      string   `json:"lastWorkout,omitempty"`
	LoggedToday      bool     `json:"loggedToday"`
	Week             weekJSON `json:"week"`
	WeeklyGoalStreak int      `json:"weeklyGoalStreak"`
}

func toStatsResponse(s workout.Stats) statsResponse {
	var last string
	if !s.LastWorkout.IsZero() {
		last = s.LastWorkout.String()
	}
	return statsResponse{
		UserID:        s.User.ID,
		DisplayName:   s.User.DisplayName,
		TotalWorkouts: s.TotalWorkouts,
		TotalPoints:   s.TotalPoints,
		CurrentStreak: s.CurrentStreak,
		LongestStreak: s.LongestStreak,
		LastWorkout:   last,
		LoggedToday:   s.LoggedToday,
		Week: weekJSON{
			WeekStart: s.Week.WeekStart.String(),
			Completed: s.Week.Completed,
			Target:    s.Week.Target,
			Achieved:  s.Week.Achieved,
		},
		WeeklyGoalStreak: s.WeeklyGoalStreak,
	}
}

func (app *application) apiStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := app.workoutService.Stats(ctx, contexthelpers.AuthenticatedUserID(ctx))
	if err != nil {
		app.writeJSONError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, toStatsResponse(stats))
}

type rungJSON struct {
	Value      int        `json:"value"`
	Achieved   bool       `json:"achieved"`
	AchievedAt *time.Time `json:"achievedAt,omitempty"`
}

type ladderJSON struct {
	Category       string     `json:"category"`
	Label          string     `json:"label"`
	Rungs          []rungJSON `json:"rungs"`
	Current        int        `json:"current"`
	Next           int        `json:"next,omitempty"`
	ProgressToNext float64    `json:"progressToNext"`
}

func (app *application) apiMilestones(w http.ResponseWriter, r *http.Request) {
	ladders, err := app.workoutService.MilestoneOverview(r.Context())
	if err != nil {
		app.writeJSONError(w, r, err)
		return
	}
	out := make([]ladderJSON, 0, len(ladders))
	for _, l := range ladders {
		rungs := make([]rungJSON, 0, len(l.Rungs))
		for _, rung := range l.Rungs {
			var achievedAt *time.Time
			if rung.Achieved {
				achievedAt = &rung.AchievedAt
			}
			rungs = append(rungs, rungJSON{Value: rung.Value, Achieved: rung.Achieved, AchievedAt: achievedAt})
		}
		out = append(out, ladderJSON{
			Category:       string(l.Category),
			Label:          l.Label,
			Rungs:          rungs,
			Current:        l.Progress.Current,
			Next:           l.Progress.Next,
			ProgressToNext: l.Progress.ProgressPct,
		})
	}
	app.writeJSON(w, r, http.StatusOK, out)
}
