package service

import (
	"context"
	"fmt"
	"time"

	"b-resto/internal/lifecycle"
	"b-resto/internal/model"
	"b-resto/internal/realtime"
	"b-resto/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultBoardLimit = 50
	maxBoardLimit     = 200
)

// boardService implements BoardService.
type boardService struct {
	orderRepo repository.OrderRepository
	publisher realtime.Publisher
	loc       *time.Location
	now       func() time.Time
	logger    zerolog.Logger
}

// NewBoardService creates the staff board service. loc is the restaurant
// time zone used to interpret calendar days.
func NewBoardService(
	orderRepo repository.OrderRepository,
	publisher realtime.Publisher,
	loc *time.Location,
	logger zerolog.Logger,
) BoardService {
	if loc == nil {
		loc = time.UTC
	}
	return &boardService{
		orderRepo: orderRepo,
		publisher: publisher,
		loc:       loc,
		now:       time.Now,
		logger:    logger.With().Str("service", "board").Logger(),
	}
}

// Filter builds a day filter in the restaurant time zone.
func (s *boardService) Filter(date string, limit int) (model.OrderFilter, error) {
	day := s.now()
	if date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, s.loc)
		if err != nil {
			verr := model.NewValidationError()
			verr.Add("date", "date must be formatted as YYYY-MM-DD")
			return model.OrderFilter{}, verr
		}
		day = parsed
	}
	return model.DayFilter(day, s.loc, clampLimit(limit)), nil
}

// List returns orders matching filter, most recent first.
func (s *boardService) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	filter.Limit = clampLimit(filter.Limit)

	orders, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	s.logger.Debug().Int("count", len(orders)).Int("limit", filter.Limit).Msg("listed orders")
	return orders, nil
}

// UpdateStatus checks the lifecycle, applies the guarded write and
// publishes the change.
func (s *boardService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidStatus
	}

	current, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to load order")
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if current == nil {
		return nil, model.ErrOrderNotFound
	}

	if err := lifecycle.Transition(current.Status, status); err != nil {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("from", string(current.Status)).
			Str("to", string(status)).
			Err(err).
			Msg("status change rejected")
		return nil, err
	}

	// The write re-checks terminality, so a concurrent delivery still wins.
	updated, err := s.orderRepo.UpdateStatus(ctx, id, status, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, realtime.Event{
		OrderID: updated.ID,
		Kind:    realtime.EventStatus,
		Version: updated.Version,
		At:      updated.UpdatedAt,
	}); err != nil {
		s.logger.Warn().Err(err).Str("order_id", id.String()).Msg("failed to publish order change")
	}

	s.logger.Info().
		Str("order_id", id.String()).
		Str("from", string(current.Status)).
		Str("to", string(updated.Status)).
		Msg("order status updated")

	return updated, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultBoardLimit
	}
	if limit > maxBoardLimit {
		return maxBoardLimit
	}
	return limit
}
