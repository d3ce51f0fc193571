package services

import (
	"context"
	"errors"
	"fmt"

	"bistro/internal/models"
	"bistro/internal/repositories"
)

// OrderQueryService answers read-only order questions. It never creates orders.
type OrderQueryService struct {
	orders repositories.OrderRepository
}

// NewOrderQueryService creates a new OrderQueryService.
func NewOrderQueryService(orders repositories.OrderRepository) *OrderQueryService {
	return &OrderQueryService{
		orders: orders,
	}
}

// GetActiveOrder returns the customer's ORDERING order, or nil when there is none.
func (s *OrderQueryService) GetActiveOrder(ctx context.Context, actor models.Actor) (*models.Order, error) {
	order, err := s.orders.FindActiveByCustomer(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active order: %w", err)
	}
	return order, nil
}

// GetOrderDetail returns the order if actor owns it or is staff.
func (s *OrderQueryService) GetOrderDetail(ctx context.Context, orderID string, actor models.Actor) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeError(err, orderID)
	}
	if !actor.Owns(order) && !actor.IsStaff() {
		return nil, &ForbiddenError{Message: "order belongs to another customer"}
	}
	return order, nil
}

// ListByStatus returns every order in status, oldest first. Staff only.
func (s *OrderQueryService) ListByStatus(ctx context.Context, actor models.Actor, status models.OrderStatus) ([]models.Order, error) {
	if !actor.IsStaff() {
		return nil, &ForbiddenError{Message: "staff access required"}
	}
	if !status.IsValid() {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown status code %d", int(status))}
	}
	return s.orders.ListByStatus(ctx, status)
}

// ListMine returns the actor's own orders, newest first.
func (s *OrderQueryService) ListMine(ctx context.Context, actor models.Actor, status *models.OrderStatus) ([]models.Order, error) {
	if status != nil && !status.IsValid() {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown status code %d", int(*status))}
	}
	return s.orders.ListByCustomer(ctx, actor.ID, status)
}

// History returns the status changes of an order, oldest first.
func (s *OrderQueryService) History(ctx context.Context, orderID string, actor models.Actor) ([]models.StatusChange, error) {
	if _, err := s.GetOrderDetail(ctx, orderID, actor); err != nil {
		return nil, err
	}
	return s.orders.History(ctx, orderID)
}
