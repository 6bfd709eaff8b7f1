package envstruct_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/lockedin/internal/envstruct"
)

func noEnv(string) (string, bool) { return "", false }

func TestPopulate(t *testing.T) {
	type required struct {
		Addr string `env:"ADDR"`
	}
	type mixed struct {
		Addr       string `env:"ADDR"`
		Timezone   string `env:"TIMEZONE"`
		NotFromEnv string
		Counter    int
	}
	type withDefaults struct {
		Rule    string `env:"RULE" envDefault:"exact"`
		Target  int    `env:"TARGET" envDefault:"4"`
		Enabled bool   `env:"ENABLED" envDefault:"true"`
	}
	type typed struct {
		Target  int  `env:"TARGET"`
		Enabled bool `env:"ENABLED"`
	}
	type unsupported struct {
		Ratio float64 `env:"RATIO"`
	}

	tests := []struct {
		name      string
		v         any
		lookupEnv func(string) (string, bool)
		want      any
		wantErr   error
	}{
		{name: "nil", v: nil, lookupEnv: noEnv, wantErr: envstruct.ErrInvalidValue},
		{name: "not pointer", v: struct{}{}, lookupEnv: noEnv, wantErr: envstruct.ErrInvalidValue},
		{name: "empty struct", v: &struct{}{}, lookupEnv: noEnv, want: &struct{}{}},
		{name: "missing env", v: &required{}, lookupEnv: noEnv, wantErr: envstruct.ErrEnvNotSet},
		{
			name:      "env is set",
			v:         &required{},
			lookupEnv: func(string) (string, bool) { return "localhost:8081", true },
			want:      &required{Addr: "localhost:8081"},
		},
		{
			name:      "picks correct env variable",
			v:         &mixed{},
			lookupEnv: func(s string) (string, bool) { return strings.ToLower(s), true },
			want:      &mixed{Addr: "addr", Timezone: "timezone", NotFromEnv: "", Counter: 0},
		},
		{
			name:      "defaults",
			v:         &withDefaults{},
			lookupEnv: noEnv,
			want:      &withDefaults{Rule: "exact", Target: 4, Enabled: true},
		},
		{
			name: "env overrides defaults",
			v:    &withDefaults{},
			lookupEnv: func(s string) (string, bool) {
				return map[string]string{"RULE": "crossed", "TARGET": "3", "ENABLED": "false"}[s], true
			},
			want: &withDefaults{Rule: "crossed", Target: 3, Enabled: false},
		},
		{
			name:      "int parse error",
			v:         &typed{},
			lookupEnv: func(string) (string, bool) { return "four", true },
			wantErr:   envstruct.ErrParse,
		},
		{
			name:      "unsupported kind",
			v:         &unsupported{},
			lookupEnv: func(string) (string, bool) { return "0.5", true },
			wantErr:   envstruct.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := envstruct.Populate(tt.v, tt.lookupEnv)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Populate() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Populate() unexpected error = %v", err)
			}
			if diff := cmp.Diff(tt.want, tt.v); diff != "" {
				t.Errorf("Populate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
