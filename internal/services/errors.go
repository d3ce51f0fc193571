package services

import (
	"errors"
	"fmt"

	"bistro/internal/models"
	"bistro/internal/repositories"
)

// ValidationError reports malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a missing order, line item, product or user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InvalidStateError reports a cart mutation attempted outside ORDERING.
// Status is the order's current status so clients can refresh their view.
type InvalidStateError struct {
	Status models.OrderStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("order can no longer be modified (status: %s)", e.Status)
}

// InvalidTransitionError reports an edge missing from the transition graph.
type InvalidTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	if e.From == e.To {
		return fmt.Sprintf("no transition leaves status %s", e.From)
	}
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// ForbiddenError reports an actor without rights for the operation.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// ConflictError reports a write that lost a race with another writer, or a
// uniqueness violation such as a taken username.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// PaymentDeclinedError reports a charge refused by the payment gateway.
type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}

// storeError translates repository sentinels into domain errors.
func storeError(err error, orderID string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrOrderNotFound):
		return &NotFoundError{Resource: "order", ID: orderID}
	case errors.Is(err, repositories.ErrVersionConflict):
		return &ConflictError{Message: fmt.Sprintf("order %s was modified by another request, reload and retry", orderID)}
	case errors.Is(err, repositories.ErrActiveOrderExists):
		return &ConflictError{Message: "customer already has an active order"}
	}
	return err
}
