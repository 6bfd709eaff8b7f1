package workout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/myrjola/lockedin/internal/gamification"
)

const (
	maxFocusLength       = 2000
	maxDisplayNameLength = 50
)

var (
	errInvalidTarget = newUserError(ErrValidation, fmt.Sprintf("Weekly target must be between %d and %d.",
		gamification.MinWeeklyTarget, gamification.MaxWeeklyTarget))
	errEmptyFocus           = newUserError(ErrValidation, "Focus cannot be empty.")
	errFocusTooLong         = newUserError(ErrValidation, "Focus is too long.")
	errNotificationNotFound = newUserError(ErrNotFound, "Notification not found")
	errInvalidDisplayName   = newUserError(ErrValidation, fmt.Sprintf("Display name must be between 1 and %d characters.",
		maxDisplayNameLength))
)

// PreferenceScope tells whether weekly target changes apply to everyone.
func (s *Service) PreferenceScope() PreferenceScope {
	return s.cfg.PreferenceScope
}

// Preferences returns the authenticated user's weekly target.
func (s *Service) Preferences(ctx context.Context) (int, error) {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return 0, err
	}
	target, err := s.repos.reader().preferences.weeklyTarget(ctx, userID, s.cfg.DefaultWeeklyTarget)
	if err != nil {
		return 0, classify(err, "")
	}
	return target, nil
}

// SavePreferences changes the weekly target. With ScopeShared the target of every user changes.
//
// Goals of future weeks pick up the target when they are created. The goal of the current week gets the new target
// but its achieved flag only changes when the next workout is logged, which then earns the completion bonus.
func (s *Service) SavePreferences(ctx context.Context, target int) (err error) {
	defer s.observe("save_preferences", time.Now(), &err)

	userID, err := authenticatedUser(ctx)
	if err != nil {
		return err
	}
	if !gamification.ValidWeeklyTarget(target) {
		return errInvalidTarget
	}
	weekStart := s.clock.Today().WeekStart()

	err = s.repos.transact(ctx, func(r repositories) error {
		userIDs := []int{userID}
		if s.cfg.PreferenceScope == ScopeShared {
			users, err := r.users.list(ctx)
			if err != nil {
				return err
			}
			userIDs = userIDs[:0]
			for _, u := range users {
				userIDs = append(userIDs, u.ID)
			}
		}
		for _, id := range userIDs {
			if err := r.preferences.setWeeklyTarget(ctx, id, target); err != nil {
				return err
			}
			if err := r.progress.retarget(ctx, id, weekStart, target); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return classify(err, "")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "weekly target changed",
		slog.Int("user_id", userID), slog.Int("target", target), slog.String("scope", string(s.cfg.PreferenceScope)))
	return nil
}

// Profile returns the authenticated user's account.
func (s *Service) Profile(ctx context.Context) (User, error) {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return User{}, err
	}
	u, err := s.repos.reader().users.get(ctx, userID)
	if err != nil {
		return User{}, classify(err, "")
	}
	return u, nil
}

// SetDisplayName renames the authenticated user. The name is trimmed and must be 1-50 characters long.
func (s *Service) SetDisplayName(ctx context.Context, name string) (string, error) {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
		return "", errInvalidDisplayName
	}
	err = s.repos.transact(ctx, func(r repositories) error {
		found, err := r.users.setDisplayName(ctx, userID, name)
		if err != nil {
			return err
		}
		if !found {
			return errNotSignedIn
		}
		return nil
	})
	if err != nil {
		return "", classify(err, "")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "display name changed", slog.Int("user_id", userID))
	return name, nil
}

// Notifications returns the authenticated user's latest notifications.
func (s *Service) Notifications(ctx context.Context) (Notifications, error) {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return Notifications{}, err
	}
	r := s.repos.reader()
	items, err := r.notifications.latest(ctx, userID)
	if err != nil {
		return Notifications{}, classify(err, "")
	}
	unread, err := r.notifications.unreadCount(ctx, userID)
	if err != nil {
		return Notifications{}, classify(err, "")
	}
	return Notifications{Items: items, Unread: unread}, nil
}

// DismissNotification marks a notification read, which removes it.
func (s *Service) DismissNotification(ctx context.Context, id int) error {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return err
	}
	err = s.repos.transact(ctx, func(r repositories) error {
		found, err := r.notifications.dismiss(ctx, userID, id)
		if err != nil {
			return err
		}
		if !found {
			return errNotificationNotFound
		}
		return nil
	})
	return classify(err, "")
}

// DismissAllNotifications removes every unread notification and returns how many there were.
func (s *Service) DismissAllNotifications(ctx context.Context) (int, error) {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.repos.transact(ctx, func(r repositories) error {
		var err error
		n, err = r.notifications.dismissAll(ctx, userID)
		return err
	})
	if err != nil {
		return 0, classify(err, "")
	}
	return n, nil
}

// Focus returns the household focus text.
func (s *Service) Focus(ctx context.Context) (Focus, error) {
	f, err := s.repos.reader().appConfig.focus(ctx)
	if err != nil {
		return Focus{}, classify(err, "")
	}
	return f, nil
}

// SetFocus replaces the household focus text with markdown.
func (s *Service) SetFocus(ctx context.Context, markdown string) error {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return err
	}
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return errEmptyFocus
	}
	if utf8.RuneCountInString(markdown) > maxFocusLength {
		return errFocusTooLong
	}
	err = s.repos.transact(ctx, func(r repositories) error {
		return r.appConfig.setFocus(ctx, userID, markdown)
	})
	return classify(err, "")
}

// ExportUserData writes the authenticated user's rows into a standalone SQLite file in dir and returns its path.
// The caller removes the file.
func (s *Service) ExportUserData(ctx context.Context, dir string) (string, error) {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return "", err
	}
	path, err := s.repos.db.ExportUser(ctx, userID, dir)
	if err != nil {
		return "", classify(err, "")
	}
	return path, nil
}
