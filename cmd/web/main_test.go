package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/lockedin/internal/gamification"
	"github.com/myrjola/lockedin/internal/testhelpers"
	"github.com/myrjola/lockedin/internal/workout"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		val, ok := env[key]
		return val, ok
	}
}

func Test_loadConfig(t *testing.T) {
	dotEnv := filepath.Join(t.TempDir(), ".env")
	content := "LOCKEDIN_TIMEZONE=Europe/Helsinki\nLOCKEDIN_DEFAULT_WEEKLY_TARGET=5\nLOCKEDIN_ADDR=localhost:9999\n"
	if err := os.WriteFile(dotEnv, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	tests := []struct {
		name    string
		env     map[string]string
		want    config
		wantErr bool
	}{
		{
			name: "defaults",
			env:  map[string]string{"LOCKEDIN_DOTENV_PATH": filepath.Join(t.TempDir(), "missing.env")},
			want: config{
				Addr:                "localhost:8081",
				FQDN:                "localhost",
				SqliteURL:           "./lockedin.sqlite3",
				TemplatePath:        "",
				Timezone:            "Australia/Sydney",
				PreferenceScope:     "per_user",
				MilestoneRule:       "exact",
				DefaultWeeklyTarget: 4,
				MetricsAddr:         "",
			},
		},
		{
			name: "dotenv fills in and environment wins",
			env: map[string]string{
				"LOCKEDIN_DOTENV_PATH": dotEnv,
				"LOCKEDIN_ADDR":        "localhost:0",
			},
			want: config{
				Addr:                "localhost:0",
				FQDN:                "localhost",
				SqliteURL:           "./lockedin.sqlite3",
				TemplatePath:        "",
				Timezone:            "Europe/Helsinki",
				PreferenceScope:     "per_user",
				MilestoneRule:       "exact",
				DefaultWeeklyTarget: 5,
				MetricsAddr:         "",
			},
		},
		{
			name: "malformed number",
			env: map[string]string{
				"LOCKEDIN_DOTENV_PATH":           "",
				"LOCKEDIN_DEFAULT_WEEKLY_TARGET": "four",
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadConfig(mapLookup(tt.env))
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadConfig() error = %v, wantErr %t", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("loadConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_config_serviceConfig(t *testing.T) {
	valid := config{ //nolint:exhaustruct // Only the household rules matter.
		PreferenceScope:     "shared",
		MilestoneRule:       "crossed",
		DefaultWeeklyTarget: 7,
	}
	got, err := valid.serviceConfig()
	if err != nil {
		t.Fatalf("serviceConfig() error = %v", err)
	}
	want := workout.Config{
		PreferenceScope:     workout.ScopeShared,
		MilestoneRule:       gamification.RuleCrossedThreshold,
		DefaultWeeklyTarget: 7,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("serviceConfig() mismatch (-want +got):\n%s", diff)
	}

	invalid := map[string]func(*config){
		"unknown scope":   func(c *config) { c.PreferenceScope = "household" },
		"unknown rule":    func(c *config) { c.MilestoneRule = "nearest" },
		"target too low":  func(c *config) { c.DefaultWeeklyTarget = 0 },
		"target too high": func(c *config) { c.DefaultWeeklyTarget = 8 },
	}
	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			if _, err = cfg.serviceConfig(); err == nil {
				t.Error("serviceConfig() succeeded, want error")
			}
		})
	}
}

func Test_run_invalidTimezone(t *testing.T) {
	env := map[string]string{
		"LOCKEDIN_DOTENV_PATH": "",
		"LOCKEDIN_SQLITE_URL":  ":memory:",
		"LOCKEDIN_ADDR":        "localhost:0",
		"LOCKEDIN_TIMEZONE":    "Mars/Olympus_Mons",
	}
	if err := run(t.Context(), testhelpers.NewLogger(testhelpers.NewWriter(t)), mapLookup(env)); err == nil {
		t.Error("run() with an unknown timezone succeeded, want error")
	}
}
