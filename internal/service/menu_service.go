package service

import (
	"context"
	"fmt"

	"b-resto/internal/model"
	"b-resto/internal/repository"

	"github.com/rs/zerolog"
)

// menuService implements MenuService.
type menuService struct {
	menuRepo repository.MenuRepository
	logger   zerolog.Logger
}

// NewMenuService creates a new menu service.
func NewMenuService(menuRepo repository.MenuRepository, logger zerolog.Logger) MenuService {
	return &menuService{
		menuRepo: menuRepo,
		logger:   logger.With().Str("service", "menu").Logger(),
	}
}

// GetAll retrieves menu items with pagination.
func (s *menuService) GetAll(ctx context.Context, limit, offset int) ([]model.MenuItem, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.menuRepo.GetAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to get menu")
		return nil, fmt.Errorf("failed to get menu: %w", err)
	}

	s.logger.Debug().
		Int("count", len(items)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved menu")

	return items, nil
}

// GetByID retrieves a single menu item by ID.
func (s *menuService) GetByID(ctx context.Context, id string) (*model.MenuItem, error) {
	if id == "" {
		return nil, model.ErrProductNotFound
	}

	item, err := s.menuRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to get menu item")
		return nil, fmt.Errorf("failed to get menu item: %w", err)
	}
	if item == nil {
		return nil, model.ErrProductNotFound
	}

	return item, nil
}

// Import upserts catalogue items in one transaction.
func (s *menuService) Import(ctx context.Context, items []model.MenuItem) error {
	if len(items) == 0 {
		s.logger.Info().Msg("empty catalogue, nothing to import")
		return nil
	}

	if err := s.menuRepo.Upsert(ctx, items); err != nil {
		s.logger.Error().Err(err).Int("count", len(items)).Msg("failed to import catalogue")
		return fmt.Errorf("failed to import catalogue: %w", err)
	}

	s.logger.Info().Int("count", len(items)).Msg("catalogue imported")
	return nil
}
