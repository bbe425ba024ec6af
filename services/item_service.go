package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/repositories"
	"github.com/Dosada05/popularity-cup/utils"
)

type ItemService interface {
	// AddItems adds a comma-separated list. Names already in the pool are
	// skipped and reported back. A running cup keeps its bracket; new items
	// wait for the next start.
	AddItems(ctx context.Context, raw string, actor models.Actor) (added, skipped []string, err error)
	// RemoveItems removes a comma-separated list, matching names case-insensitively.
	RemoveItems(ctx context.Context, raw string, actor models.Actor) ([]string, error)
	ListItems(ctx context.Context) ([]models.Item, error)
}

type itemService struct {
	repo   repositories.TournamentRepository
	logger *slog.Logger
}

func NewItemService(repo repositories.TournamentRepository, logger *slog.Logger) ItemService {
	if logger == nil {
		logger = slog.Default()
	}
	return &itemService{repo: repo, logger: logger}
}

func (s *itemService) AddItems(ctx context.Context, raw string, actor models.Actor) ([]string, []string, error) {
	incoming := utils.SplitList(raw)
	if len(incoming) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one item name is required", ErrValidationFailed)
	}
	if actor.ID == "" {
		return nil, nil, ErrForbiddenOperation
	}
	// Участники (не staff) могут добавить ровно один элемент за всё время.
	if !actor.IsStaff() && len(incoming) != 1 {
		return nil, nil, ErrItemLimitReached
	}

	var added, skipped []string
	_, _, err := s.repo.Update(ctx, func(t *models.Tournament) error {
		added, skipped = nil, nil
		// Пул можно пополнять и во время кубка: сетка уже зафиксирована.
		if !actor.IsStaff() {
			if _, ok := t.UserItems[actor.ID]; ok {
				return ErrItemLimitReached
			}
		}
		for _, name := range incoming {
			if t.HasItem(name) || contains(added, name) {
				skipped = append(skipped, name)
				continue
			}
			if len(t.Items) >= models.PoolSize {
				return fmt.Errorf("%w: %d items", ErrPoolFull, models.PoolSize)
			}
			t.Items = append(t.Items, name)
			if _, ok := t.Scores[name]; !ok {
				t.Scores[name] = 0
			}
			t.ItemAuthors[name] = actor.ID
			if !actor.IsStaff() {
				t.UserItems[actor.ID] = name
			}
			added = append(added, name)
		}
		if len(added) == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return nil, nil, err
	}
	if len(added) > 0 {
		s.logger.InfoContext(ctx, "items added", slog.String("by", actor.ID), slog.Any("items", added))
	}
	return added, skipped, nil
}

func (s *itemService) RemoveItems(ctx context.Context, raw string, actor models.Actor) ([]string, error) {
	if !actor.IsStaff() {
		return nil, ErrForbiddenOperation
	}
	names := utils.SplitList(raw)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one item name is required", ErrValidationFailed)
	}

	var removed []string
	_, _, err := s.repo.Update(ctx, func(t *models.Tournament) error {
		removed = nil
		if t.Running {
			return ErrTournamentRunning
		}
		byLower := make(map[string]string, len(t.Items))
		for _, it := range t.Items {
			byLower[strings.ToLower(it)] = it
		}
		for _, name := range names {
			original, ok := byLower[strings.ToLower(name)]
			if !ok {
				continue
			}
			if t.RemoveItem(original) {
				removed = append(removed, original)
			}
			delete(byLower, strings.ToLower(name))
		}
		if len(removed) == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.InfoContext(ctx, "items removed", slog.String("by", actor.ID), slog.Any("items", removed))
	}
	return removed, nil
}

func (s *itemService) ListItems(ctx context.Context) ([]models.Item, error) {
	doc, _, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Pool(), nil
}

func contains(list []string, name string) bool {
	for _, it := range list {
		if it == name {
			return true
		}
	}
	return false
}
