package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/myrjola/lockedin/internal/e2etest"
	"github.com/myrjola/lockedin/internal/logging"
	"github.com/myrjola/lockedin/internal/testhelpers"
	"golang.org/x/sync/errgroup"
)

const (
	numUsers                   = 10
	userRegistrationTimeout    = 30 * time.Second
	scenarioTimeout            = 30 * time.Second
	maxConcurrentRegistrations = 10
	maxConcurrentOperations    = 20
	successRateThreshold       = 95.0
	expectedArgsCount          = 2
	percentageMultiplier       = 100
)

type authenticatedUser struct {
	client *e2etest.Client
	name   string
}

// setupUsers registers numUsers partners concurrently. Every user gets their own client and session.
func setupUsers(ctx context.Context, url, hostname string, logger *slog.Logger) ([]*authenticatedUser, error) {
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting user registration", slog.Int("num_users", numUsers))

	users := make([]*authenticatedUser, numUsers)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRegistrations)
	for i := range numUsers {
		g.Go(func() error {
			userCtx, cancel := context.WithTimeout(ctx, userRegistrationTimeout)
			defer cancel()

			client, err := e2etest.NewClient(url, hostname, url)
			if err != nil {
				return fmt.Errorf("create client for user %d: %w", i, err)
			}
			name := fmt.Sprintf("Stress %d", i)
			if _, err = client.Register(userCtx, name); err != nil {
				return fmt.Errorf("register user %d: %w", i, err)
			}
			users[i] = &authenticatedUser{client: client, name: name}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("registration failure: %w", err)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "All users registered successfully", slog.Int("total_users", len(users)))
	return users, nil
}

func expectStatus(resp *http.Response, want int, what string) error {
	_ = resp.Body.Close()
	if resp.StatusCode != want {
		return fmt.Errorf("%s: unexpected status code %d", what, resp.StatusCode)
	}
	return nil
}

// logScenario walks through a day of a partner: log today, catch up yesterday, look at the progress and undo the
// catch-up.
func logScenario(ctx context.Context, user *authenticatedUser) error {
	client := user.client

	doc, err := client.GetDoc(ctx, "/")
	if err != nil {
		return fmt.Errorf("get dashboard: %w", err)
	}
	if doc.Find("form[action='/workouts/today']").Length() == 0 {
		return errors.New("log today form missing")
	}
	if _, err = client.SubmitForm(ctx, doc, "/workouts/today", nil); err != nil {
		return fmt.Errorf("log today: %w", err)
	}

	resp, err := client.DoJSON(ctx, http.MethodPost, "/api/workouts/retroactive", nil)
	if err != nil {
		return fmt.Errorf("log yesterday: %w", err)
	}
	if err = expectStatus(resp, http.StatusCreated, "log yesterday"); err != nil {
		return err
	}

	for _, path := range []string{"/api/stats", "/api/milestones"} {
		if resp, err = client.DoJSON(ctx, http.MethodGet, path, nil); err != nil {
			return fmt.Errorf("get %s: %w", path, err)
		}
		if err = expectStatus(resp, http.StatusOK, path); err != nil {
			return err
		}
	}
	if _, err = client.GetDoc(ctx, "/milestones"); err != nil {
		return fmt.Errorf("get milestones page: %w", err)
	}
	return nil
}

// runLoadTest runs logScenario for every user concurrently and fails when too many scenarios fail.
func runLoadTest(ctx context.Context, users []*authenticatedUser, logger *slog.Logger) error {
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting load test", slog.Int("num_users", len(users)))

	var successCount, failureCount atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)
	for _, user := range users {
		g.Go(func() error {
			scenarioCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
			defer cancel()

			if err := logScenario(scenarioCtx, user); err != nil {
				failureCount.Add(1)
				logger.LogAttrs(scenarioCtx, slog.LevelWarn, "Scenario failed",
					slog.String("user", user.name), slog.Any("error", err))
				return nil
			}
			successCount.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	successRate := float64(successCount.Load()) / float64(len(users)) * percentageMultiplier
	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed",
		slog.Int64("successful", successCount.Load()),
		slog.Int64("failed", failureCount.Load()),
		slog.Float64("success_rate", successRate))

	if successRate < successRateThreshold {
		return fmt.Errorf("load test failed: success rate %.1f%% below threshold", successRate)
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
		hostname = "localhost"
	}

	client, err := e2etest.NewClient(url, hostname, url)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", slog.Any("error", err))
		os.Exit(1)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}

	users, err := setupUsers(ctx, url, hostname, logger)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to setup users", slog.Any("error", err))
		os.Exit(1)
	}

	if err = runLoadTest(ctx, users, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "load test failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Stress test successful",
		slog.Duration("total_duration", time.Since(start)), slog.Int("users_tested", len(users)))
}
