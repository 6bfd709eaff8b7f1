package main

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/myrjola/lockedin/internal/e2etest"
	"github.com/myrjola/lockedin/internal/testhelpers"
)

func testLookupEnv(key string) (string, bool) {
	switch key {
	case "LOCKEDIN_SQLITE_URL":
		return ":memory:", true
	case "LOCKEDIN_ADDR":
		return "localhost:0", true
	case "LOCKEDIN_DOTENV_PATH":
		return "", true
	default:
		return "", false
	}
}

func startTestServer(t *testing.T) *e2etest.Server {
	t.Helper()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	return server
}

func flashText(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find(".flash").Text())
}

func Test_application_home(t *testing.T) {
	var (
		ctx = t.Context()
		doc *goquery.Document
		err error
	)
	client := startTestServer(t).Client()

	t.Run("Anonymous visitor sees sign in and register", func(t *testing.T) {
		if doc, err = client.GetDoc(ctx, "/"); err != nil {
			t.Fatalf("Failed to get document: %v", err)
		}
		if doc.Find("#sign-in").Length() != 1 {
			t.Error("Expected sign in button")
		}
		if doc.Find("#register-form").Length() != 1 {
			t.Error("Expected registration form")
		}
		if doc.Find("form[action='/workouts/today']").Length() != 0 {
			t.Error("Anonymous visitor must not see the log form")
		}
	})

	t.Run("Register shows the dashboard", func(t *testing.T) {
		if doc, err = client.Register(ctx, "Alice"); err != nil {
			t.Fatalf("Failed to register: %v", err)
		}
		if got := doc.Find("h1").Text(); got != "Hi Alice" {
			t.Errorf("h1 = %q, want %q", got, "Hi Alice")
		}
		if got := strings.TrimSpace(doc.Find(".partner .streak").First().Text()); got != "0" {
			t.Errorf("streak = %q, want 0", got)
		}
	})

	t.Run("Log today", func(t *testing.T) {
		if doc, err = client.SubmitForm(ctx, doc, "/workouts/today", nil); err != nil {
			t.Fatalf("Failed to log workout: %v", err)
		}
		if got := flashText(doc); got != "Session logged! 1 day streak!" {
			t.Errorf("flash = %q", got)
		}
		if got := strings.TrimSpace(doc.Find(".partner .streak").First().Text()); got != "1" {
			t.Errorf("streak = %q, want 1", got)
		}
		if doc.Find("form[action='/workouts/today']").Length() != 0 {
			t.Error("Log form still shown after logging today")
		}
		if doc.Find(".recent .workout").Length() != 1 {
			t.Errorf("Expected one recent workout, got %d", doc.Find(".recent .workout").Length())
		}
	})

	t.Run("Flash is shown once", func(t *testing.T) {
		if doc, err = client.GetDoc(ctx, "/"); err != nil {
			t.Fatalf("Failed to get document: %v", err)
		}
		if got := flashText(doc); got != "" {
			t.Errorf("flash = %q, want none", got)
		}
	})

	t.Run("Log a missed day", func(t *testing.T) {
		form, findErr := e2etest.FindForm(doc, "/workouts/retroactive")
		if findErr != nil {
			t.Fatalf("Failed to find form: %v", findErr)
		}
		date := form.Find("input[name=date]").AttrOr("value", "")
		if date == "" {
			t.Fatal("Retroactive form has no default date")
		}
		if doc, err = client.SubmitForm(ctx, doc, "/workouts/retroactive", map[string]string{"Date": date}); err != nil {
			t.Fatalf("Failed to log retroactive workout: %v", err)
		}
		if got := flashText(doc); !strings.HasPrefix(got, "Workout logged for") {
			t.Errorf("flash = %q", got)
		}
		if doc.Find(".recent .tag").Length() != 1 {
			t.Error("Expected the missed day to be tagged as logged later")
		}
	})

	t.Run("Same missed day is rejected", func(t *testing.T) {
		date := doc.Find("form[action='/workouts/retroactive'] input[name=date]").AttrOr("value", "")
		if doc, err = client.SubmitForm(ctx, doc, "/workouts/retroactive", map[string]string{"Date": date}); err != nil {
			t.Fatalf("Failed to submit form: %v", err)
		}
		if got := strings.TrimSpace(doc.Find(".flash-error").Text()); got != "You already logged a workout for this date!" {
			t.Errorf("error flash = %q", got)
		}
	})

	t.Run("Future date is rejected", func(t *testing.T) {
		if doc, err = client.SubmitForm(ctx, doc, "/workouts/retroactive", map[string]string{"Date": "2999-01-01"}); err != nil {
			t.Fatalf("Failed to submit form: %v", err)
		}
		if got := strings.TrimSpace(doc.Find(".flash-error").Text()); got != "Cannot log workouts for future dates" {
			t.Errorf("error flash = %q", got)
		}
	})

	t.Run("Delete a workout", func(t *testing.T) {
		action := doc.Find(".recent .workout form").First().AttrOr("action", "")
		if !strings.HasPrefix(action, "/workouts/") {
			t.Fatalf("delete form action = %q", action)
		}
		if doc, err = client.SubmitForm(ctx, doc, action, nil); err != nil {
			t.Fatalf("Failed to delete workout: %v", err)
		}
		if got := flashText(doc); !strings.HasPrefix(got, "Workout deleted.") {
			t.Errorf("flash = %q", got)
		}
		if doc.Find(".recent .workout").Length() != 1 {
			t.Errorf("Expected one workout left, got %d", doc.Find(".recent .workout").Length())
		}
	})

	t.Run("Set focus", func(t *testing.T) {
		fields := map[string]string{"What are you working towards?": "Run **twice** a week"}
		if doc, err = client.SubmitForm(ctx, doc, "/focus", fields); err != nil {
			t.Fatalf("Failed to set focus: %v", err)
		}
		if got := doc.Find(".focus-text strong").Text(); got != "twice" {
			t.Errorf("rendered focus emphasis = %q, want %q", got, "twice")
		}
	})

	t.Run("Focus with raw HTML is not rendered as HTML", func(t *testing.T) {
		fields := map[string]string{"What are you working towards?": "<script>alert(1)</script>"}
		if doc, err = client.SubmitForm(ctx, doc, "/focus", fields); err != nil {
			t.Fatalf("Failed to set focus: %v", err)
		}
		if doc.Find(".focus-text script").Length() != 0 {
			t.Error("raw HTML from focus was rendered")
		}
	})

	t.Run("Logout and login keep the progress", func(t *testing.T) {
		if doc, err = client.Logout(ctx); err != nil {
			t.Fatalf("Failed to logout: %v", err)
		}
		if doc.Find("#sign-in").Length() != 1 {
			t.Error("Expected sign in button after logout")
		}
		if doc, err = client.Login(ctx); err != nil {
			t.Fatalf("Failed to login: %v", err)
		}
		if doc.Find(".recent .workout").Length() != 1 {
			t.Errorf("Expected one workout after login, got %d", doc.Find(".recent .workout").Length())
		}
	})
}

func Test_application_notFound(t *testing.T) {
	client := startTestServer(t).Client()

	resp, err := client.Get(t.Context(), "/nonexistent")
	if err != nil {
		t.Fatalf("Failed to get nonexistent path: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	if got := doc.Find("h1").Text(); got != "Page not found" {
		t.Errorf("h1 = %q", got)
	}
}

func Test_application_static(t *testing.T) {
	client := startTestServer(t).Client()

	resp, err := client.Get(t.Context(), "/main.css")
	if err != nil {
		t.Fatalf("Failed to get stylesheet: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Cache-Control"); !strings.Contains(got, "immutable") {
		t.Errorf("Cache-Control = %q", got)
	}
}

func Test_application_healthy(t *testing.T) {
	client := startTestServer(t).Client()

	resp, err := client.Get(t.Context(), "/api/healthy")
	if err != nil {
		t.Fatalf("Failed to get health: %v", err)
	}
	got := decodeJSON[map[string]string](t, resp)
	if resp.StatusCode != 200 || got["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, got)
	}
	if csp := resp.Header.Get("Content-Security-Policy"); !strings.Contains(csp, "report-uri /api/csp-violation") {
		t.Errorf("Content-Security-Policy = %q", csp)
	}
}
