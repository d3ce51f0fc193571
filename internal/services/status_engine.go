package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"bistro/internal/models"
	"bistro/internal/repositories"

	"github.com/shopspring/decimal"
)

// handoverMinutes is added to the kitchen time when estimating delivery.
const handoverMinutes = 5

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	Publish(routingKey string, payload interface{}) error
}

// StatusEngine owns the order transition graph. It is the only component
// that changes Order.Status.
type StatusEngine struct {
	orders            repositories.OrderRepository
	publisher         EventPublisher
	minimumOrderValue decimal.Decimal
	locks             *keyedLocker
	now               func() time.Time
}

// NewStatusEngine creates a StatusEngine. publisher may be nil.
func NewStatusEngine(orders repositories.OrderRepository, publisher EventPublisher, minimumOrderValue decimal.Decimal) *StatusEngine {
	return &StatusEngine{
		orders:            orders,
		publisher:         publisher,
		minimumOrderValue: minimumOrderValue,
		locks:             newKeyedLocker(),
		now:               time.Now,
	}
}

var transitionRoles = []models.Role{models.RoleCustomer, models.RoleSystem, models.RoleStaff}

// roleAllows reports whether role owns the edge from -> to.
func roleAllows(role models.Role, from, to models.OrderStatus) bool {
	if from.IsTerminal() || from == to || !to.IsValid() {
		return false
	}
	cancellable := from == models.StatusOrdering || from == models.StatusPendingPayment

	switch role {
	case models.RoleCustomer:
		if to == models.StatusCancelled {
			return cancellable
		}
		return from == models.StatusOrdering && to == models.StatusPendingPayment
	case models.RoleSystem:
		return from == models.StatusPendingPayment && to == models.StatusWaiting
	case models.RoleStaff:
		if to == models.StatusCancelled {
			return cancellable
		}
		if from == models.StatusOrdering {
			return to == models.StatusPendingPayment
		}
		return to > from
	}
	return false
}

func edgeExists(from, to models.OrderStatus) bool {
	for _, role := range transitionRoles {
		if roleAllows(role, from, to) {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the targets role may move an order in from to.
func AllowedTransitions(role models.Role, from models.OrderStatus) []models.OrderStatus {
	targets := make([]models.OrderStatus, 0)
	for _, to := range models.AllStatuses {
		if roleAllows(role, from, to) {
			targets = append(targets, to)
		}
	}
	return targets
}

// CanCancel reports whether actor may cancel order right now.
func CanCancel(order *models.Order, actor models.Actor) bool {
	if actor.Role == models.RoleCustomer && !actor.Owns(order) {
		return false
	}
	return roleAllows(actor.Role, order.Status, models.StatusCancelled)
}

// Advance moves order to the next status on the forward path.
func (e *StatusEngine) Advance(ctx context.Context, order *models.Order, actor models.Actor, note string) (*models.Order, error) {
	next, ok := order.Status.Next()
	if !ok {
		return nil, &InvalidTransitionError{From: order.Status, To: order.Status}
	}
	return e.TransitionTo(ctx, order, next, actor, note)
}

// Cancel moves order to CANCELLED.
func (e *StatusEngine) Cancel(ctx context.Context, order *models.Order, actor models.Actor, reason string) (*models.Order, error) {
	if reason == "" {
		reason = "cancelled"
	}
	return e.TransitionTo(ctx, order, models.StatusCancelled, actor, reason)
}

// TransitionTo moves order to target along an edge actor's role owns, then
// persists it, appends a history record and publishes a status change event.
// Entering PENDING_PAYMENT also stamps the estimated delivery time, whichever
// role checks the order out. On failure order is left as it was.
func (e *StatusEngine) TransitionTo(ctx context.Context, order *models.Order, target models.OrderStatus, actor models.Actor, note string) (*models.Order, error) {
	if err := e.authorize(order, target, actor); err != nil {
		return nil, err
	}
	from, fromETA := order.Status, order.EstimatedDeliveryAt
	if target == models.StatusPendingPayment {
		if err := e.checkoutGuard(order); err != nil {
			return nil, err
		}
		eta := e.now().Add(time.Duration(order.PrepMinutes()+handoverMinutes) * time.Minute)
		order.EstimatedDeliveryAt = &eta
	}

	order.Status = target
	if err := e.orders.Save(ctx, order); err != nil {
		order.Status, order.EstimatedDeliveryAt = from, fromETA
		return nil, storeError(err, order.ID)
	}

	log.Printf("Order %s moved from %s to %s by %s %s", order.ID, from, target, actor.Role, actor.ID)
	e.record(ctx, order, &from, actor, note)
	return order, nil
}

func (e *StatusEngine) authorize(order *models.Order, target models.OrderStatus, actor models.Actor) error {
	switch actor.Role {
	case models.RoleCustomer:
		if !actor.Owns(order) {
			return &ForbiddenError{Message: "order belongs to another customer"}
		}
	case models.RoleStaff, models.RoleSystem:
	default:
		return &ForbiddenError{Message: fmt.Sprintf("role %q may not change order status", actor.Role)}
	}

	if !target.IsValid() {
		return &ValidationError{Message: fmt.Sprintf("unknown status code %d", int(target))}
	}
	if !edgeExists(order.Status, target) {
		return &InvalidTransitionError{From: order.Status, To: target}
	}
	if !roleAllows(actor.Role, order.Status, target) {
		return &ForbiddenError{Message: fmt.Sprintf("%s may not move an order from %s to %s", actor.Role, order.Status, target)}
	}
	return nil
}

// checkoutGuard holds the preconditions for entering PENDING_PAYMENT.
func (e *StatusEngine) checkoutGuard(order *models.Order) error {
	if len(order.Items) == 0 {
		return &ValidationError{Message: "order has no items"}
	}
	if order.DeliveryType == models.DeliveryDelivery && order.DeliveryAddress == "" {
		return &ValidationError{Message: "delivery address is required for delivery orders"}
	}
	subtotal := order.TotalPrice.Sub(order.DeliveryFee)
	if subtotal.LessThan(e.minimumOrderValue) {
		return &ValidationError{Message: fmt.Sprintf("minimum order value is %s", e.minimumOrderValue.StringFixed(2))}
	}
	return nil
}

// record appends the history entry and publishes the event. Neither failure
// undoes the saved transition; both are logged.
func (e *StatusEngine) record(ctx context.Context, order *models.Order, from *models.OrderStatus, actor models.Actor, note string) {
	change := &models.StatusChange{
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   order.Status,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Note:       note,
		CreatedAt:  e.now(),
	}
	if err := e.orders.AppendHistory(ctx, change); err != nil {
		log.Printf("Failed to append history for order %s: %v", order.ID, err)
	}

	if e.publisher == nil {
		return
	}
	event := models.StatusChangedEvent{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		From:         from,
		To:           order.Status,
		ActorRole:    actor.Role,
		Note:         note,
		DeliveryType: order.DeliveryType,
		ItemCount:    order.ItemCount(),
		TotalPrice:   order.TotalPrice,
		OccurredAt:   change.CreatedAt,
	}
	if err := e.publisher.Publish(models.RoutingKeyStatusChanged, event); err != nil {
		log.Printf("Warning: failed to publish status change for order %s: %v", order.ID, err)
	}
}
