package workout

import (
	"cmp"
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/gamification"
	"golang.org/x/sync/errgroup"
)

var errUserNotFound = newUserError(ErrNotFound, "User not found")

// Stats summarises the progress of userID as of today.
func (s *Service) Stats(ctx context.Context, userID int) (Stats, error) {
	stats, err := s.stats(ctx, s.repos.reader(), userID)
	if err != nil {
		return Stats{}, classify(err, "")
	}
	return stats, nil
}

func (s *Service) stats(ctx context.Context, r repositories, userID int) (Stats, error) {
	today := s.clock.Today()

	user, err := r.users.get(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Stats{}, errUserNotFound
	}
	if err != nil {
		return Stats{}, err
	}
	total, points, err := r.workouts.totals(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	streak, err := r.progress.streak(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	loggedToday, err := r.workouts.existsOn(ctx, userID, today)
	if err != nil {
		return Stats{}, err
	}
	week, found, err := r.progress.goal(ctx, userID, today.WeekStart())
	if err != nil {
		return Stats{}, err
	}
	if !found {
		target, err := r.preferences.weeklyTarget(ctx, userID, s.cfg.DefaultWeeklyTarget)
		if err != nil {
			return Stats{}, err
		}
		week = gamification.WeeklyGoal{WeekStart: today.WeekStart(), Target: target, Completed: 0, Achieved: false}
	}
	achievedWeeks, err := r.progress.achievedWeeks(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		User:             user,
		TotalWorkouts:    total,
		TotalPoints:      points,
		CurrentStreak:    streak.Current,
		LongestStreak:    streak.Longest,
		LastWorkout:      streak.LastWorkout,
		LoggedToday:      loggedToday,
		Week:             week,
		WeeklyGoalStreak: gamification.WeeklyGoalStreak(achievedWeeks),
	}, nil
}

// Comparison loads the stats of every user side by side. The authenticated user comes first and wins ties for the
// lead.
func (s *Service) Comparison(ctx context.Context) (Comparison, error) {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return Comparison{}, err
	}
	r := s.repos.reader()
	users, err := r.users.list(ctx)
	if err != nil {
		return Comparison{}, classify(err, "")
	}

	all := make([]Stats, len(users))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range users {
		g.Go(func() error {
			stats, err := s.stats(gctx, r, u.ID)
			if err != nil {
				return err
			}
			all[i] = stats
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return Comparison{}, classify(err, "")
	}

	slices.SortStableFunc(all, func(a, b Stats) int {
		return cmp.Compare(boolRank(a.User.ID != userID), boolRank(b.User.ID != userID))
	})
	var leader Stats
	for i, stats := range all {
		if i == 0 || stats.TotalWorkouts > leader.TotalWorkouts {
			leader = stats
		}
	}
	return Comparison{Users: all, LeaderID: leader.User.ID}, nil
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// MilestoneOverview returns every ladder with the authenticated user's achievements and the way to the next rung.
func (s *Service) MilestoneOverview(ctx context.Context) ([]MilestoneLadder, error) {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return nil, err
	}
	r := s.repos.reader()
	counters, err := s.counters(ctx, r, userID)
	if err != nil {
		return nil, classify(err, "")
	}
	achieved, err := r.progress.milestones(ctx, userID)
	if err != nil {
		return nil, classify(err, "")
	}

	ladders := make([]MilestoneLadder, 0, len(gamification.Categories))
	for _, category := range gamification.Categories {
		values := gamification.Ladder(category)
		rungs := make([]MilestoneRung, 0, len(values))
		for _, v := range values {
			rung := MilestoneRung{Value: v, Achieved: false, AchievedAt: time.Time{}}
			for _, m := range achieved {
				if m.Category == category && m.Value == v {
					rung.Achieved = true
					rung.AchievedAt = m.AchievedAt
				}
			}
			rungs = append(rungs, rung)
		}
		ladders = append(ladders, MilestoneLadder{
			Category: category,
			Label:    category.Label(),
			Rungs:    rungs,
			Progress: gamification.ProgressToNext(category, counters.value(category)),
		})
	}
	return ladders, nil
}

// RecentWorkouts lists the authenticated user's workouts that can still be deleted, newest first.
func (s *Service) RecentWorkouts(ctx context.Context) ([]Workout, error) {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return nil, err
	}
	since := s.clock.Today().AddDays(-editWindowDays)
	workouts, err := s.repos.reader().workouts.listSince(ctx, userID, since)
	if err != nil {
		return nil, classify(err, "")
	}
	return workouts, nil
}
