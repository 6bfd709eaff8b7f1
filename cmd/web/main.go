package main

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"
	_ "time/tzdata" // The reference timezone must resolve also on hosts without zoneinfo.

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/myrjola/lockedin/internal/calendar"
	"github.com/myrjola/lockedin/internal/envstruct"
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/gamification"
	"github.com/myrjola/lockedin/internal/logging"
	"github.com/myrjola/lockedin/internal/observability"
	"github.com/myrjola/lockedin/internal/sqlite"
	"github.com/myrjola/lockedin/internal/webauthnhandler"
	"github.com/myrjola/lockedin/internal/workout"
	"github.com/yuin/goldmark"
)

type application struct {
	logger          *slog.Logger
	webAuthnHandler *webauthnhandler.WebAuthnHandler
	sessionManager  *scs.SessionManager
	templateFS      fs.FS
	workoutService  *workout.Service
	markdown        goldmark.Markdown
	metrics         *observability.Metrics
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"LOCKEDIN_ADDR" envDefault:"localhost:8081"`
	// FQDN is the fully qualified domain name of the server used for WebAuthn Relying Party configuration.
	FQDN string `env:"LOCKEDIN_FQDN" envDefault:"localhost"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"LOCKEDIN_SQLITE_URL" envDefault:"./lockedin.sqlite3"`
	// TemplatePath is the path to the directory containing the HTML templates.
	TemplatePath string `env:"LOCKEDIN_TEMPLATE_PATH" envDefault:""`
	// Timezone decides where a day starts and ends for streaks and weekly goals.
	Timezone string `env:"LOCKEDIN_TIMEZONE" envDefault:"Australia/Sydney"`
	// PreferenceScope is per_user or shared.
	PreferenceScope string `env:"LOCKEDIN_PREFERENCE_SCOPE" envDefault:"per_user"`
	// MilestoneRule is exact or crossed.
	MilestoneRule       string `env:"LOCKEDIN_MILESTONE_RULE" envDefault:"exact"`
	DefaultWeeklyTarget int    `env:"LOCKEDIN_DEFAULT_WEEKLY_TARGET" envDefault:"4"`
	// MetricsAddr is the optional address of the Prometheus metrics listener.
	MetricsAddr string `env:"LOCKEDIN_METRICS_ADDR" envDefault:""`
}

// withDotEnv returns a lookup that falls back to the variables in the .env file at path when it exists.
func withDotEnv(lookupEnv func(string) (string, bool), path string) (func(string) (string, bool), error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return lookupEnv, nil
	}
	fileEnv, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrap(err, "read dotenv", slog.String("path", path))
	}
	return func(key string) (string, bool) {
		if val, ok := lookupEnv(key); ok {
			return val, true
		}
		val, ok := fileEnv[key]
		return val, ok
	}, nil
}

// loadConfig populates the config from the environment. LOCKEDIN_DOTENV_PATH points to an optional .env file that
// supplies variables missing from the environment.
func loadConfig(lookupEnv func(string) (string, bool)) (config, error) {
	var cfg config
	dotEnvPath, ok := lookupEnv("LOCKEDIN_DOTENV_PATH")
	if !ok {
		dotEnvPath = ".env"
	}
	lookupEnv, err := withDotEnv(lookupEnv, dotEnvPath)
	if err != nil {
		return cfg, err
	}
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return cfg, errors.Wrap(err, "populate config")
	}
	return cfg, nil
}

// serviceConfig validates the household rules.
func (cfg config) serviceConfig() (workout.Config, error) {
	scope, err := workout.ParsePreferenceScope(cfg.PreferenceScope)
	if err != nil {
		return workout.Config{}, errors.Wrap(err, "parse preference scope")
	}
	rule, err := gamification.ParseMilestoneRule(cfg.MilestoneRule)
	if err != nil {
		return workout.Config{}, errors.Wrap(err, "parse milestone rule")
	}
	if !gamification.ValidWeeklyTarget(cfg.DefaultWeeklyTarget) {
		return workout.Config{}, errors.New("default weekly target must be between 1 and 7")
	}
	return workout.Config{
		PreferenceScope:     scope,
		MilestoneRule:       rule,
		DefaultWeeklyTarget: cfg.DefaultWeeklyTarget,
	}, nil
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	cfg, err := loadConfig(lookupEnv)
	if err != nil {
		return err
	}
	serviceCfg, err := cfg.serviceConfig()
	if err != nil {
		return err
	}
	clock, err := calendar.LoadClock(cfg.Timezone)
	if err != nil {
		return errors.Wrap(err, "load clock")
	}

	var htmlTemplatePath string
	if htmlTemplatePath, err = resolveAndVerifyTemplatePath(cfg.TemplatePath); err != nil {
		return errors.Wrap(err, "resolve template path")
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db", slog.String("timezone", cfg.Timezone),
		slog.String("preference_scope", string(serviceCfg.PreferenceScope)),
		slog.String("milestone_rule", string(serviceCfg.MilestoneRule)))

	metrics := observability.NewMetrics()
	if cfg.MetricsAddr != "" {
		launchMetricsServer(ctx, cfg.MetricsAddr, metrics.Handler(), logger)
	}

	sessionManager := initializeSessionManager(db)

	var webAuthnHandler *webauthnhandler.WebAuthnHandler
	if webAuthnHandler, err = webauthnhandler.New(cfg.Addr, cfg.FQDN, logger, sessionManager, db); err != nil {
		return errors.Wrap(err, "new webauthn handler")
	}

	app := application{
		logger:          logger,
		webAuthnHandler: webAuthnHandler,
		sessionManager:  sessionManager,
		templateFS:      os.DirFS(htmlTemplatePath),
		workoutService:  workout.NewService(db, logger, clock, serviceCfg, metrics),
		markdown:        newMarkdown(),
		metrics:         metrics,
	}

	handler, err := app.routes()
	if err != nil {
		return errors.Wrap(err, "routes")
	}
	if err = app.configureAndStartServer(ctx, cfg.Addr, handler); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func initializeSessionManager(dbs *sqlite.Database) *scs.SessionManager {
	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(dbs.ReadWrite, 24*time.Hour) //nolint:mnd // day
	sessionManager.Lifetime = 30 * 24 * time.Hour                                          //nolint:mnd // a month
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.Secure = true
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	return sessionManager
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
