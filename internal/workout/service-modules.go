package workout

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxModuleTitleLength       = 100
	maxModuleDescriptionLength = 500
)

var (
	errEmptyModuleTitle     = newUserError(ErrValidation, "Title cannot be empty")
	errModuleTitleTooLong   = newUserError(ErrValidation, "Title is too long.")
	errModuleDetailsTooLong = newUserError(ErrValidation, "Details are too long.")
	errModuleNotFound       = newUserError(ErrNotFound, "Habit module not found")
)

// validateModule trims the title and description of a habit module and checks their lengths.
func validateModule(title, description string) (string, string, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	switch {
	case title == "":
		return "", "", errEmptyModuleTitle
	case utf8.RuneCountInString(title) > maxModuleTitleLength:
		return "", "", errModuleTitleTooLong
	case utf8.RuneCountInString(description) > maxModuleDescriptionLength:
		return "", "", errModuleDetailsTooLong
	}
	return title, description, nil
}

// Modules returns the household's habit modules in display order.
func (s *Service) Modules(ctx context.Context) ([]HabitModule, error) {
	modules, err := s.repos.reader().modules.list(ctx)
	if err != nil {
		return nil, classify(err, "")
	}
	return modules, nil
}

// AddModule appends a habit module that both partners see. The description is optional.
func (s *Service) AddModule(ctx context.Context, title, description string) (_ HabitModule, err error) {
	defer s.observe("add_module", time.Now(), &err)

	userID, err := authenticatedUser(ctx)
	if err != nil {
		return HabitModule{}, err
	}
	if title, description, err = validateModule(title, description); err != nil {
		return HabitModule{}, err
	}
	var m HabitModule
	err = s.repos.transact(ctx, func(r repositories) error {
		creator, err := r.users.get(ctx, userID)
		if err != nil {
			return err
		}
		if m, err = r.modules.insert(ctx, userID, title, description); err != nil {
			return err
		}
		m.CreatedBy = creator.DisplayName
		return nil
	})
	if err != nil {
		return HabitModule{}, classify(err, "")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "habit module added",
		slog.Int("user_id", userID), slog.Int("module_id", m.ID))
	return m, nil
}

// UpdateModule replaces the title and description of a habit module. Either partner may edit any module.
func (s *Service) UpdateModule(ctx context.Context, id int, title, description string) (err error) {
	if _, err = authenticatedUser(ctx); err != nil {
		return err
	}
	if title, description, err = validateModule(title, description); err != nil {
		return err
	}
	err = s.repos.transact(ctx, func(r repositories) error {
		found, err := r.modules.update(ctx, id, title, description)
		if err != nil {
			return err
		}
		if !found {
			return errModuleNotFound
		}
		return nil
	})
	return classify(err, "")
}

// DeleteModule removes a habit module for both partners.
func (s *Service) DeleteModule(ctx context.Context, id int) error {
	userID, err := authenticatedUser(ctx)
	if err != nil {
		return err
	}
	err = s.repos.transact(ctx, func(r repositories) error {
		found, err := r.modules.delete(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return errModuleNotFound
		}
		return nil
	})
	if err != nil {
		return classify(err, "")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "habit module deleted", slog.Int("user_id", userID), slog.Int("module_id", id))
	return nil
}
