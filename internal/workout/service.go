package workout

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/lockedin/internal/calendar"
	"github.com/myrjola/lockedin/internal/contexthelpers"
	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/gamification"
	"github.com/myrjola/lockedin/internal/sqlite"
)

// editWindowDays is how far back workouts may be logged or deleted.
const editWindowDays = 7

// Metrics receives the outcome of every state changing operation.
type Metrics interface {
	WorkoutLogged(retroactive bool)
	MilestoneAwarded(category string)
	Rejected(operation, reason string)
	ObserveDuration(operation string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) WorkoutLogged(bool)                    {}
func (noopMetrics) MilestoneAwarded(string)               {}
func (noopMetrics) Rejected(string, string)               {}
func (noopMetrics) ObserveDuration(string, time.Duration) {}

// Service applies workouts to the streak, weekly goal and milestone state of the authenticated user.
type Service struct {
	repos   *repositoryFactory
	logger  *slog.Logger
	clock   calendar.Clock
	cfg     Config
	metrics Metrics
}

// NewService creates a new workout service. metrics may be nil.
func NewService(db *sqlite.Database, logger *slog.Logger, clock calendar.Clock, cfg Config, metrics Metrics) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		repos:   newRepositoryFactory(db, logger),
		logger:  logger,
		clock:   clock,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Ping checks that both connection pools of the database answer.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.repos.db.ReadOnly.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping read-only pool")
	}
	if err := s.repos.db.ReadWrite.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping read-write pool")
	}
	return nil
}

// Today is the current date in the configured timezone.
func (s *Service) Today() calendar.Date {
	return s.clock.Today()
}

// ParseDate parses a YYYY-MM-DD form value. The empty string yields the zero Date.
func ParseDate(s string) (calendar.Date, error) {
	if s == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.ParseDate(s)
	if err != nil {
		return calendar.Date{}, validationError("Invalid date format. Use YYYY-MM-DD.", err)
	}
	return d, nil
}

var errNotSignedIn = newUserError(ErrValidation, "Please sign in to continue.")

func authenticatedUser(ctx context.Context) (int, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if userID == 0 {
		return 0, errNotSignedIn
	}
	return userID, nil
}

// LogToday logs a workout for the authenticated user on today's date.
func (s *Service) LogToday(ctx context.Context) (_ LogResult, err error) {
	defer s.observe("log_today", time.Now(), &err)

	userID, err := authenticatedUser(ctx)
	if err != nil {
		return LogResult{}, err
	}
	today := s.clock.Today()

	var result LogResult
	err = s.repos.transact(ctx, func(r repositories) error {
		exists, err := r.workouts.existsOn(ctx, userID, today)
		if err != nil {
			return err
		}
		if exists {
			return errAlreadyLoggedToday
		}

		previous, err := r.progress.streak(ctx, userID)
		if err != nil {
			return err
		}
		streak, update := previous.Apply(today)

		before, err := s.counters(ctx, r, userID)
		if err != nil {
			return err
		}
		_, justCompleted, err := s.recordInWeek(ctx, r, userID, today.WeekStart())
		if err != nil {
			return err
		}
		points := gamification.ComputePoints(justCompleted, update.BonusPoints)

		w := Workout{
			ID:           uuid.NewString(),
			UserID:       userID,
			Date:         today,
			PointsEarned: points,
			Retroactive:  false,
			CreatedAt:    time.Time{},
		}
		if err = r.workouts.insert(ctx, w); err != nil {
			return err
		}
		if err = r.progress.saveStreak(ctx, userID, streak); err != nil {
			return err
		}

		after, err := s.counters(ctx, r, userID)
		if err != nil {
			return err
		}
		milestones, err := s.awardMilestones(ctx, r, userID, before, after, gamification.Categories...)
		if err != nil {
			return err
		}
		if err = s.notifyPartners(ctx, r, userID, "%s just locked in a session"); err != nil {
			return err
		}

		message := fmt.Sprintf("Session logged! %d day streak!", streak.Current)
		if update.Broken {
			message = "Session logged! Starting fresh streak."
		}
		result = LogResult{
			WorkoutID:     w.ID,
			Date:          today,
			PointsEarned:  points,
			CurrentStreak: streak.Current,
			StreakBroken:  update.Broken,
			GoalCompleted: justCompleted,
			Milestones:    milestones,
			Message:       message,
		}
		return nil
	})
	if err != nil {
		return LogResult{}, classify(err, msgAlreadyLoggedToday)
	}

	s.recordLogged(ctx, userID, result, false)
	return result, nil
}

// LogRetroactive logs a workout for a day within the last week. The zero Date means yesterday.
//
// Retroactive workouts always earn the base points and leave the streak untouched. They still count towards the
// weekly goal of their week and the milestone totals.
func (s *Service) LogRetroactive(ctx context.Context, date calendar.Date) (_ LogResult, err error) {
	defer s.observe("log_retroactive", time.Now(), &err)

	userID, err := authenticatedUser(ctx)
	if err != nil {
		return LogResult{}, err
	}
	today := s.clock.Today()
	if date.IsZero() {
		date = today.AddDays(-1)
	}
	if date.After(today) {
		return LogResult{}, errFutureDate
	}
	if today.DaysSince(date) > editWindowDays {
		return LogResult{}, errLogOutOfWindow
	}

	var result LogResult
	err = s.repos.transact(ctx, func(r repositories) error {
		exists, err := r.workouts.existsOn(ctx, userID, date)
		if err != nil {
			return err
		}
		if exists {
			return errAlreadyLoggedDate
		}

		before, err := s.counters(ctx, r, userID)
		if err != nil {
			return err
		}
		goal, _, err := s.recordInWeek(ctx, r, userID, date.WeekStart())
		if err != nil {
			return err
		}

		w := Workout{
			ID:           uuid.NewString(),
			UserID:       userID,
			Date:         date,
			PointsEarned: gamification.BasePoints,
			Retroactive:  true,
			CreatedAt:    time.Time{},
		}
		if err = r.workouts.insert(ctx, w); err != nil {
			return err
		}

		after, err := s.counters(ctx, r, userID)
		if err != nil {
			return err
		}
		milestones, err := s.awardMilestones(ctx, r, userID, before, after,
			gamification.CategoryTotalSessions, gamification.CategoryWeeklyGoalStreak)
		if err != nil {
			return err
		}
		if err = s.notifyPartners(ctx, r, userID, "%s logged a missed session"); err != nil {
			return err
		}

		result = LogResult{
			WorkoutID:     w.ID,
			Date:          date,
			PointsEarned:  w.PointsEarned,
			CurrentStreak: after.streak,
			StreakBroken:  false,
			GoalCompleted: false,
			Milestones:    milestones,
			Message: fmt.Sprintf("Workout logged for %s! Streak: %d days",
				date.Time().Format("Jan 2"), after.streak),
		}
		s.logger.LogAttrs(ctx, slog.LevelDebug, "retroactive week progress",
			slog.String("week_start", goal.WeekStart.String()), slog.Int("completed", goal.Completed),
			slog.Bool("achieved", goal.Achieved))
		return nil
	})
	if err != nil {
		return LogResult{}, classify(err, msgAlreadyLoggedDate)
	}

	s.recordLogged(ctx, userID, result, true)
	return result, nil
}

// DeleteWorkout removes one of the authenticated user's workouts from the last week and rebuilds the streak and
// the affected weekly goal from the remaining history. Milestones already earned are kept.
func (s *Service) DeleteWorkout(ctx context.Context, id string) (_ DeleteResult, err error) {
	defer s.observe("delete", time.Now(), &err)

	userID, err := authenticatedUser(ctx)
	if err != nil {
		return DeleteResult{}, err
	}
	today := s.clock.Today()

	var result DeleteResult
	err = s.repos.transact(ctx, func(r repositories) error {
		w, err := r.workouts.get(ctx, userID, id)
		if errors.Is(err, sql.ErrNoRows) {
			return errWorkoutNotFound
		}
		if err != nil {
			return err
		}
		if today.DaysSince(w.Date) > editWindowDays {
			return errDeleteOutOfWindow
		}
		if err = r.workouts.delete(ctx, userID, id); err != nil {
			return err
		}

		previous, err := r.progress.streak(ctx, userID)
		if err != nil {
			return err
		}
		dates, err := r.workouts.streakDates(ctx, userID)
		if err != nil {
			return err
		}
		streak := gamification.ReplayStreak(dates)
		streak.Longest = max(streak.Longest, previous.Longest)
		if err = r.progress.saveStreak(ctx, userID, streak); err != nil {
			return err
		}

		weekStart := w.Date.WeekStart()
		goal, found, err := r.progress.goal(ctx, userID, weekStart)
		if err != nil {
			return err
		}
		if found {
			var completed int
			if completed, err = r.workouts.countInWeek(ctx, userID, weekStart); err != nil {
				return err
			}
			if err = r.progress.saveGoal(ctx, userID, goal.Recount(completed)); err != nil {
				return err
			}
		}

		result = DeleteResult{
			CurrentStreak: streak.Current,
			Message:       fmt.Sprintf("Workout deleted. Current streak: %d days", streak.Current),
		}
		return nil
	})
	if err != nil {
		return DeleteResult{}, classify(err, "")
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "workout deleted",
		slog.Int("user_id", userID), slog.String("workout_id", id), slog.Int("streak", result.CurrentStreak))
	return result, nil
}

// ResetProgress deletes every workout of the authenticated user together with all progress derived from them.
// Preferences survive.
func (s *Service) ResetProgress(ctx context.Context) (err error) {
	defer s.observe("reset", time.Now(), &err)

	userID, err := authenticatedUser(ctx)
	if err != nil {
		return err
	}
	err = s.repos.transact(ctx, func(r repositories) error {
		if err := r.workouts.deleteAll(ctx, userID); err != nil {
			return err
		}
		if err := r.progress.deleteAll(ctx, userID); err != nil {
			return err
		}
		return r.notifications.deleteAll(ctx, userID)
	})
	if err != nil {
		return classify(err, "")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "progress reset", slog.Int("user_id", userID))
	return nil
}

// recordInWeek counts one workout towards the goal of the week starting on weekStart. The goal is created with the
// user's current target on the first workout of the week.
func (s *Service) recordInWeek(ctx context.Context, r repositories, userID int, weekStart calendar.Date) (
	gamification.WeeklyGoal, bool, error) {
	goal, found, err := r.progress.goal(ctx, userID, weekStart)
	if err != nil {
		return gamification.WeeklyGoal{}, false, err
	}
	var justCompleted bool
	if found {
		goal, justCompleted = goal.RecordWorkout()
	} else {
		target, err := r.preferences.weeklyTarget(ctx, userID, s.cfg.DefaultWeeklyTarget)
		if err != nil {
			return gamification.WeeklyGoal{}, false, err
		}
		goal, justCompleted = gamification.NewWeeklyGoal(weekStart, target)
	}
	if err = r.progress.saveGoal(ctx, userID, goal); err != nil {
		return gamification.WeeklyGoal{}, false, err
	}
	return goal, justCompleted, nil
}

// milestoneCounters are the values the milestone ladders climb.
type milestoneCounters struct {
	totalSessions    int
	streak           int
	weeklyGoalStreak int
}

func (c milestoneCounters) value(category gamification.Category) int {
	switch category {
	case gamification.CategoryTotalSessions:
		return c.totalSessions
	case gamification.CategoryStreak:
		return c.streak
	case gamification.CategoryWeeklyGoalStreak:
		return c.weeklyGoalStreak
	}
	return 0
}

func (s *Service) counters(ctx context.Context, r repositories, userID int) (milestoneCounters, error) {
	total, err := r.workouts.count(ctx, userID)
	if err != nil {
		return milestoneCounters{}, err
	}
	streak, err := r.progress.streak(ctx, userID)
	if err != nil {
		return milestoneCounters{}, err
	}
	weeks, err := r.progress.achievedWeeks(ctx, userID)
	if err != nil {
		return milestoneCounters{}, err
	}
	return milestoneCounters{
		totalSessions:    total,
		streak:           streak.Current,
		weeklyGoalStreak: gamification.WeeklyGoalStreak(weeks),
	}, nil
}

// awardMilestones records the milestones of categories reached between before and after and tells the user.
func (s *Service) awardMilestones(ctx context.Context, r repositories, userID int, before, after milestoneCounters,
	categories ...gamification.Category) ([]gamification.Milestone, error) {
	var awarded []gamification.Milestone
	for _, category := range categories {
		achieved, err := r.progress.achievedValues(ctx, userID, category)
		if err != nil {
			return nil, err
		}
		reached := gamification.NewMilestones(s.cfg.MilestoneRule, category,
			before.value(category), after.value(category), achieved)
		for _, m := range reached {
			if err = r.progress.insertMilestone(ctx, userID, m); err != nil {
				return nil, err
			}
			if err = r.notifications.insert(ctx, userID, NotificationMilestoneAchieved, m.Message()); err != nil {
				return nil, err
			}
			awarded = append(awarded, m)
		}
	}
	return awarded, nil
}

// notifyPartners tells every other user about the workout. format receives the display name of userID.
func (s *Service) notifyPartners(ctx context.Context, r repositories, userID int, format string) error {
	users, err := r.users.list(ctx)
	if err != nil {
		return err
	}
	var name string
	for _, u := range users {
		if u.ID == userID {
			name = u.DisplayName
		}
	}
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		if err = r.notifications.insert(ctx, u.ID, NotificationPartnerCompleted, fmt.Sprintf(format, name)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) recordLogged(ctx context.Context, userID int, result LogResult, retroactive bool) {
	s.metrics.WorkoutLogged(retroactive)
	for _, m := range result.Milestones {
		s.metrics.MilestoneAwarded(string(m.Category))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "workout logged",
		slog.Int("user_id", userID),
		slog.String("date", result.Date.String()),
		slog.Bool("retroactive", retroactive),
		slog.Int("points", result.PointsEarned),
		slog.Int("streak", result.CurrentStreak),
		slog.Int("milestones", len(result.Milestones)))
}

// observe records the duration of operation and, if *errp is set, the rejection reason.
func (s *Service) observe(operation string, start time.Time, errp *error) {
	s.metrics.ObserveDuration(operation, time.Since(start))
	if *errp != nil {
		s.metrics.Rejected(operation, failureReason(*errp))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrWindowViolation):
		return "window"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "storage"
	}
}
