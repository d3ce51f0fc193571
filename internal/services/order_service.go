package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bistro/internal/models"
	"bistro/internal/repositories"
	"bistro/pkg/payment"

	"github.com/shopspring/decimal"
)

// FinalizeInput is the checkout form.
type FinalizeInput struct {
	DeliveryType    models.DeliveryType
	DeliveryAddress string
	Notes           string
}

// OrderService handles checkout, payment and status changes addressed by order ID.
type OrderService struct {
	orders      repositories.OrderRepository
	engine      *StatusEngine
	gateway     payment.Gateway
	deliveryFee decimal.Decimal
}

// NewOrderService creates a new OrderService.
func NewOrderService(orders repositories.OrderRepository, engine *StatusEngine, gateway payment.Gateway, deliveryFee decimal.Decimal) *OrderService {
	return &OrderService{
		orders:      orders,
		engine:      engine,
		gateway:     gateway,
		deliveryFee: deliveryFee,
	}
}

// Finalize checks out an order: it fixes the delivery details, recomputes the
// total and moves the order to PENDING_PAYMENT, which estimates the delivery
// time.
func (s *OrderService) Finalize(ctx context.Context, actor models.Actor, orderID string, in FinalizeInput) (*models.Order, error) {
	if in.DeliveryType != models.DeliveryPickup && in.DeliveryType != models.DeliveryDelivery {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown delivery type %q", in.DeliveryType)}
	}

	return s.withOrder(ctx, orderID, func(order *models.Order) (*models.Order, error) {
		if !actor.Owns(order) && !actor.IsStaff() {
			return nil, &ForbiddenError{Message: "order belongs to another customer"}
		}
		if order.Status != models.StatusOrdering {
			return nil, &InvalidStateError{Status: order.Status}
		}

		order.DeliveryType = in.DeliveryType
		if address := strings.TrimSpace(in.DeliveryAddress); address != "" {
			order.DeliveryAddress = address
		}
		if in.Notes != "" {
			order.Notes = in.Notes
		}
		order.Recalculate(s.deliveryFee)
		return s.engine.TransitionTo(ctx, order, models.StatusPendingPayment, actor, "checkout")
	})
}

// ProcessPayment charges the order through the gateway. An approved charge
// moves the order to WAITING on behalf of the system; a declined one leaves
// it in PENDING_PAYMENT.
func (s *OrderService) ProcessPayment(ctx context.Context, actor models.Actor, orderID string, method models.PaymentMethod) (*models.Order, error) {
	if !method.IsValid() {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown payment method %q", method)}
	}

	return s.withOrder(ctx, orderID, func(order *models.Order) (*models.Order, error) {
		if !actor.Owns(order) && !actor.IsStaff() {
			return nil, &ForbiddenError{Message: "order belongs to another customer"}
		}
		if order.Status != models.StatusPendingPayment {
			return nil, &InvalidStateError{Status: order.Status}
		}

		resp, err := s.gateway.Charge(ctx, payment.Request{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Amount:     order.TotalPrice,
			Method:     string(method),
		})
		if err != nil {
			return nil, fmt.Errorf("payment gateway error for order %s: %w", order.ID, err)
		}
		if !resp.Success {
			log.Printf("Payment for order %s declined: %s", order.ID, resp.FailureReason)
			return nil, &PaymentDeclinedError{Reason: resp.FailureReason}
		}

		order.PaymentMethod = method
		note := fmt.Sprintf("payment approved via %s (%s)", method, resp.TransactionID)
		paid, err := s.engine.TransitionTo(ctx, order, models.StatusWaiting, models.SystemActor, note)
		if err != nil {
			order.PaymentMethod = ""
			log.Printf("Payment %s captured for order %s but the order was not updated: %v", resp.TransactionID, order.ID, err)
			return nil, fmt.Errorf("payment %s captured for order %s but the order was not updated: %w", resp.TransactionID, order.ID, err)
		}
		return paid, nil
	})
}

// Advance moves the order one step along the forward path.
func (s *OrderService) Advance(ctx context.Context, actor models.Actor, orderID, note string) (*models.Order, error) {
	return s.withOrder(ctx, orderID, func(order *models.Order) (*models.Order, error) {
		return s.engine.Advance(ctx, order, actor, note)
	})
}

// SetStatus moves the order directly to target.
func (s *OrderService) SetStatus(ctx context.Context, actor models.Actor, orderID string, target models.OrderStatus, note string) (*models.Order, error) {
	return s.withOrder(ctx, orderID, func(order *models.Order) (*models.Order, error) {
		return s.engine.TransitionTo(ctx, order, target, actor, note)
	})
}

// Cancel cancels the order.
func (s *OrderService) Cancel(ctx context.Context, actor models.Actor, orderID, reason string) (*models.Order, error) {
	return s.withOrder(ctx, orderID, func(order *models.Order) (*models.Order, error) {
		return s.engine.Cancel(ctx, order, actor, reason)
	})
}

func (s *OrderService) withOrder(ctx context.Context, orderID string, fn func(*models.Order) (*models.Order, error)) (*models.Order, error) {
	unlock := s.engine.locks.Lock(orderKey(orderID))
	defer unlock()

	order, err := repositories.GetForUpdate(ctx, s.orders, orderID)
	if err != nil {
		return nil, storeError(err, orderID)
	}
	return fn(order)
}
