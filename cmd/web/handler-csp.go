package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/myrjola/lockedin/internal/errors"
)

const maxCSPReportBytes = 64 << 10

// cspViolationReport is the legacy report-uri body browsers send.
type cspViolationReport struct {
	Report struct {
		DocumentURI       string `json:"document-uri"`
		ViolatedDirective string `json:"violated-directive"`
		BlockedURI        string `json:"blocked-uri"`
		SourceFile        string `json:"source-file"`
		LineNumber        int    `json:"line-number"`
		Disposition       string `json:"disposition"`
	} `json:"csp-report"`
}

// cspViolation logs reports of the Content-Security-Policy report-uri directive.
func (app *application) cspViolation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCSPReportBytes))
	if err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "read CSP report", errors.SlogError(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var report cspViolationReport
	if err = json.Unmarshal(body, &report); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelWarn, "parse CSP report", errors.SlogError(err),
			slog.Int("body_bytes", len(body)))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	app.logger.LogAttrs(ctx, slog.LevelWarn, "CSP violation",
		slog.String("document_uri", report.Report.DocumentURI),
		slog.String("violated_directive", report.Report.ViolatedDirective),
		slog.String("blocked_uri", report.Report.BlockedURI),
		slog.String("source_file", report.Report.SourceFile),
		slog.Int("line_number", report.Report.LineNumber),
		slog.String("disposition", report.Report.Disposition),
		slog.String("user_agent", r.UserAgent()))

	w.WriteHeader(http.StatusNoContent)
}
