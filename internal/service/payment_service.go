package service

import (
	"context"
	"fmt"
	"time"

	"b-resto/internal/model"
	"b-resto/internal/payment"
	"b-resto/internal/realtime"
	"b-resto/internal/repository"

	"github.com/rs/zerolog"
)

// paymentService implements PaymentService.
type paymentService struct {
	orderRepo repository.OrderRepository
	verifier  *payment.Verifier
	publisher realtime.Publisher
	logger    zerolog.Logger
}

// NewPaymentService creates a service recording gateway notifications.
func NewPaymentService(
	orderRepo repository.OrderRepository,
	verifier *payment.Verifier,
	publisher realtime.Publisher,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		orderRepo: orderRepo,
		verifier:  verifier,
		publisher: publisher,
		logger:    logger.With().Str("service", "payment").Logger(),
	}
}

// HandleNotification verifies n and records the payment outcome. Events other
// than sale_complete and sale_canceled are acknowledged without changes.
func (s *paymentService) HandleNotification(ctx context.Context, n *payment.Notification) (*model.Order, error) {
	if err := s.verifier.Verify(n); err != nil {
		s.logger.Warn().Err(err).Str("ref_command", n.RefCommand).Msg("payment notification rejected")
		return nil, err
	}

	id, err := n.OrderID()
	if err != nil {
		s.logger.Warn().Str("ref_command", n.RefCommand).Msg("payment notification without order reference")
		return nil, model.ErrOrderNotFound
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		s.logger.Warn().Str("order_id", id.String()).Msg("payment notification for unknown order")
		return nil, model.ErrOrderNotFound
	}

	var (
		status model.PaymentStatus
		ref    *string
	)
	switch n.TypeEvent {
	case payment.EventSaleComplete:
		if order.PaymentStatus == model.PaymentPaid && order.PaymentRef != nil && *order.PaymentRef == n.Token {
			return order, nil
		}
		status = model.PaymentPaid
		if n.Token != "" {
			token := n.Token
			ref = &token
		}
	case payment.EventSaleCanceled:
		if order.PaymentStatus != model.PaymentUnpaid {
			s.logger.Info().
				Str("order_id", id.String()).
				Str("payment_status", string(order.PaymentStatus)).
				Msg("ignoring cancellation for settled payment")
			return order, nil
		}
		status = model.PaymentFailed
	default:
		s.logger.Info().Str("order_id", id.String()).Str("type_event", n.TypeEvent).Msg("payment notification ignored")
		return order, nil
	}

	updated, err := s.orderRepo.UpdatePayment(ctx, id, status, ref, time.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to record payment")
		return nil, err
	}

	if err := s.publisher.Publish(ctx, realtime.Event{
		OrderID: updated.ID,
		Kind:    realtime.EventPayment,
		Version: updated.Version,
		At:      updated.UpdatedAt,
	}); err != nil {
		s.logger.Warn().Err(err).Str("order_id", id.String()).Msg("failed to publish order change")
	}

	s.logger.Info().
		Str("order_id", id.String()).
		Str("payment_status", string(updated.PaymentStatus)).
		Msg("payment recorded")

	return updated, nil
}
