package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func Test_application_cspViolation(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		logContains []string
	}{
		{
			name: "full report",
			body: `{"csp-report": {"document-uri": "https://lockedin.example/", ` +
				`"violated-directive": "script-src", "blocked-uri": "https://evil.example/x.js", ` +
				`"line-number": 42, "disposition": "enforce"}}`,
			wantStatus:  http.StatusNoContent,
			logContains: []string{"CSP violation", "script-src", "https://evil.example/x.js", "line_number=42"},
		},
		{
			name:        "minimal report",
			body:        `{"csp-report": {"violated-directive": "img-src"}}`,
			wantStatus:  http.StatusNoContent,
			logContains: []string{"CSP violation", "img-src"},
		},
		{
			name:        "malformed JSON",
			body:        `{"csp-report": `,
			wantStatus:  http.StatusBadRequest,
			logContains: []string{"parse CSP report"},
		},
		{
			name:        "empty body",
			body:        "",
			wantStatus:  http.StatusBadRequest,
			logContains: []string{"parse CSP report"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			app := &application{ //nolint:exhaustruct // Only the logger is used.
				logger: slog.New(slog.NewTextHandler(&logs, nil)),
			}
			req := httptest.NewRequest(http.MethodPost, "/api/csp-violation", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/csp-report")
			w := httptest.NewRecorder()

			app.cspViolation(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			for _, want := range tt.logContains {
				if !strings.Contains(logs.String(), want) {
					t.Errorf("log does not contain %q:\n%s", want, logs.String())
				}
			}
		})
	}
}
