package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode %s response: %v", resp.Request.URL.Path, err)
	}
	return v
}

func Test_application_api(t *testing.T) {
	ctx := t.Context()
	server := startTestServer(t)
	client := server.Client()

	t.Run("Anonymous calls are unauthorized", func(t *testing.T) {
		for _, tt := range []struct{ method, path string }{
			{http.MethodPost, "/api/workouts"},
			{http.MethodPost, "/api/workouts/retroactive"},
			{http.MethodGet, "/api/stats"},
			{http.MethodGet, "/api/milestones"},
			{http.MethodGet, "/api/modules"},
		} {
			resp, err := client.DoJSON(ctx, tt.method, tt.path, nil)
			if err != nil {
				t.Fatalf("%s %s: %v", tt.method, tt.path, err)
			}
			got := decodeJSON[errorResponse](t, resp)
			if resp.StatusCode != http.StatusUnauthorized || got.Error == "" {
				t.Errorf("%s %s = %d %+v, want 401 with error", tt.method, tt.path, resp.StatusCode, got)
			}
		}
	})

	if _, err := client.Register(ctx, "Alice"); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	var logged logResponse
	t.Run("Log today", func(t *testing.T) {
		resp, err := client.DoJSON(ctx, http.MethodPost, "/api/workouts", nil)
		if err != nil {
			t.Fatalf("log today: %v", err)
		}
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("status = %d, want 201", resp.StatusCode)
		}
		logged = decodeJSON[logResponse](t, resp)
		want := logResponse{
			WorkoutID:     logged.WorkoutID,
			Date:          logged.Date,
			PointsEarned:  logged.PointsEarned,
			CurrentStreak: 1,
			StreakBroken:  false,
			GoalCompleted: false,
			Milestones:    []milestoneJSON{},
			Message:       "Session logged! 1 day streak!",
		}
		if diff := cmp.Diff(want, logged); diff != "" {
			t.Errorf("log response mismatch (-want +got):\n%s", diff)
		}
		if logged.WorkoutID == "" || logged.PointsEarned <= 0 {
			t.Errorf("log response = %+v", logged)
		}
	})

	t.Run("Second log today conflicts", func(t *testing.T) {
		resp, err := client.DoJSON(ctx, http.MethodPost, "/api/workouts", nil)
		if err != nil {
			t.Fatalf("log today: %v", err)
		}
		got := decodeJSON[errorResponse](t, resp)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
		if got.Error != "You have already logged a workout today!" {
			t.Errorf("error = %q", got.Error)
		}
	})

	t.Run("Retroactive defaults to yesterday", func(t *testing.T) {
		resp, err := client.DoJSON(ctx, http.MethodPost, "/api/workouts/retroactive", nil)
		if err != nil {
			t.Fatalf("log retroactive: %v", err)
		}
		got := decodeJSON[logResponse](t, resp)
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("status = %d, want 201: %+v", resp.StatusCode, got)
		}
		if got.Date == "" || got.Date == logged.Date {
			t.Errorf("retroactive response = %+v", got)
		}
	})

	t.Run("Retroactive rejects bad input", func(t *testing.T) {
		for _, tt := range []struct {
			body       any
			wantStatus int
		}{
			{body: retroactiveRequest{Date: "14/03/2025"}, wantStatus: http.StatusBadRequest},
			{body: retroactiveRequest{Date: "2999-01-01"}, wantStatus: http.StatusBadRequest},
			{body: retroactiveRequest{Date: "2000-01-01"}, wantStatus: http.StatusBadRequest},
			{body: "not an object", wantStatus: http.StatusBadRequest},
		} {
			resp, err := client.DoJSON(ctx, http.MethodPost, "/api/workouts/retroactive", tt.body)
			if err != nil {
				t.Fatalf("log retroactive: %v", err)
			}
			got := decodeJSON[errorResponse](t, resp)
			if resp.StatusCode != tt.wantStatus || got.Error == "" {
				t.Errorf("body %v = %d %+v, want %d", tt.body, resp.StatusCode, got, tt.wantStatus)
			}
		}
	})

	t.Run("Stats", func(t *testing.T) {
		resp, err := client.DoJSON(ctx, http.MethodGet, "/api/stats", nil)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		got := decodeJSON[statsResponse](t, resp)
		if got.DisplayName != "Alice" || got.TotalWorkouts != 2 || got.CurrentStreak != 1 || !got.LoggedToday {
			t.Errorf("stats = %+v", got)
		}
		if got.Week.Target != 4 {
			t.Errorf("week target = %d, want 4", got.Week.Target)
		}
	})

	t.Run("Milestones", func(t *testing.T) {
		resp, err := client.DoJSON(ctx, http.MethodGet, "/api/milestones", nil)
		if err != nil {
			t.Fatalf("milestones: %v", err)
		}
		got := decodeJSON[[]ladderJSON](t, resp)
		if len(got) == 0 {
			t.Fatal("no milestone ladders")
		}
		for _, l := range got {
			if l.Category == "total_sessions" && (l.Current != 2 || !l.Rungs[0].Achieved) {
				t.Errorf("total sessions ladder = %+v", l)
			}
		}
	})

	t.Run("Delete", func(t *testing.T) {
		resp, err := client.DoJSON(ctx, http.MethodDelete, "/api/workouts/"+logged.WorkoutID, nil)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		got := decodeJSON[deleteResponse](t, resp)
		if resp.StatusCode != http.StatusOK || got.Message == "" {
			t.Errorf("delete = %d %+v", resp.StatusCode, got)
		}

		resp, err = client.DoJSON(ctx, http.MethodDelete, "/api/workouts/"+logged.WorkoutID, nil)
		if err != nil {
			t.Fatalf("delete again: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("second delete status = %d, want 404", resp.StatusCode)
		}

		resp, err = client.DoJSON(ctx, http.MethodDelete, "/api/workouts/not-a-uuid", nil)
		if err != nil {
			t.Fatalf("delete malformed id: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("malformed id status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("Partner cannot delete someone else's workout", func(t *testing.T) {
		resp, err := client.DoJSON(ctx, http.MethodPost, "/api/workouts", nil)
		if err != nil {
			t.Fatalf("log today: %v", err)
		}
		mine := decodeJSON[logResponse](t, resp)

		partner, err := server.NewClient()
		if err != nil {
			t.Fatalf("partner client: %v", err)
		}
		if _, err = partner.Register(ctx, "Bob"); err != nil {
			t.Fatalf("register partner: %v", err)
		}
		resp, err = partner.DoJSON(ctx, http.MethodDelete, "/api/workouts/"+mine.WorkoutID, nil)
		if err != nil {
			t.Fatalf("partner delete: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("partner delete status = %d, want 404", resp.StatusCode)
		}

		var stored int
		err = server.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM workouts WHERE id = ?", mine.WorkoutID).
			Scan(&stored)
		if err != nil {
			t.Fatalf("count workouts: %v", err)
		}
		if stored != 1 {
			t.Errorf("stored workouts with id = %d, want 1", stored)
		}
	})
}
