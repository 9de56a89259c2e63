// Package lifecycle defines which order status changes are allowed.
//
// Delivered and cancelled are terminal. Among the active statuses any move is
// accepted, including going back a stage, so staff can correct mistakes.
package lifecycle

import (
	"b-resto/internal/model"
)

// Transition returns nil when an order in status from may move to status to.
func Transition(from, to model.OrderStatus) error {
	if !to.Valid() {
		return model.ErrInvalidStatus
	}
	if from.IsTerminal() {
		return model.ErrOrderTerminal
	}
	return nil
}

// Allowed lists the statuses an order in status from may move to.
func Allowed(from model.OrderStatus) []model.OrderStatus {
	if from.IsTerminal() || !from.Valid() {
		return nil
	}
	allowed := make([]model.OrderStatus, 0, len(model.OrderStatuses))
	for _, s := range model.OrderStatuses {
		if s != from {
			allowed = append(allowed, s)
		}
	}
	return allowed
}

// Next returns the forward stage after from on the happy path.
func Next(from model.OrderStatus) (model.OrderStatus, bool) {
	switch from {
	case model.StatusPending:
		return model.StatusPreparing, true
	case model.StatusPreparing:
		return model.StatusReady, true
	case model.StatusReady:
		return model.StatusDelivered, true
	}
	return "", false
}
