package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bistro/internal/models"
	"bistro/internal/repositories"

	"github.com/shopspring/decimal"
)

// CreateOrderInput carries the optional fields of a new order.
type CreateOrderInput struct {
	DeliveryType    models.DeliveryType
	DeliveryAddress string
	Notes           string
}

// CartService edits line items while an order is in ORDERING.
type CartService struct {
	orders      repositories.OrderRepository
	products    repositories.ProductRepository
	engine      *StatusEngine
	deliveryFee decimal.Decimal
}

// NewCartService creates a new CartService. It shares the engine's per-order
// locks so item edits and status changes on one order never interleave.
func NewCartService(orders repositories.OrderRepository, products repositories.ProductRepository, engine *StatusEngine, deliveryFee decimal.Decimal) *CartService {
	return &CartService{
		orders:      orders,
		products:    products,
		engine:      engine,
		deliveryFee: deliveryFee,
	}
}

// GetOrCreateActiveOrder returns the customer's ORDERING order, creating an
// empty pickup order when there is none.
func (s *CartService) GetOrCreateActiveOrder(ctx context.Context, actor models.Actor) (*models.Order, error) {
	order, _, err := s.CreateOrder(ctx, actor, CreateOrderInput{})
	return order, err
}

// CreateOrder returns the customer's active order if one exists (created is
// false) and otherwise creates it from in.
func (s *CartService) CreateOrder(ctx context.Context, actor models.Actor, in CreateOrderInput) (*models.Order, bool, error) {
	if actor.ID == "" {
		return nil, false, &ValidationError{Message: "customer is required"}
	}
	if actor.Role != models.RoleCustomer {
		return nil, false, &ForbiddenError{Message: "only customers can place orders"}
	}
	if in.DeliveryType == "" {
		in.DeliveryType = models.DeliveryPickup
	}
	if in.DeliveryType != models.DeliveryPickup && in.DeliveryType != models.DeliveryDelivery {
		return nil, false, &ValidationError{Message: fmt.Sprintf("unknown delivery type %q", in.DeliveryType)}
	}

	unlock := s.engine.locks.Lock(customerKey(actor.ID))
	defer unlock()

	existing, err := s.orders.FindActiveByCustomer(ctx, actor.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repositories.ErrOrderNotFound) {
		return nil, false, fmt.Errorf("failed to look up active order: %w", err)
	}

	order := &models.Order{
		CustomerID:      actor.ID,
		Status:          models.StatusOrdering,
		DeliveryType:    in.DeliveryType,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		Notes:           in.Notes,
	}
	order.Recalculate(s.deliveryFee)
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repositories.ErrActiveOrderExists) {
			// Another process won the race; its order is the active one.
			existing, err := s.orders.FindActiveByCustomer(ctx, actor.ID)
			if err != nil {
				return nil, false, fmt.Errorf("failed to reload active order: %w", err)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	s.engine.record(ctx, order, nil, actor, "order created")
	return order, true, nil
}

// AddItem adds quantity units of productID to the order. An empty orderID
// means the actor's active order, created on demand. Adding a product that
// is already on the order increments its line.
func (s *CartService) AddItem(ctx context.Context, actor models.Actor, orderID, productID string, quantity int, instructions string) (*models.LineItem, *models.Order, error) {
	if orderID == "" {
		active, err := s.GetOrCreateActiveOrder(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		orderID = active.ID
	}

	order, err := s.mutate(ctx, actor, orderID, func(order *models.Order) error {
		if quantity < 1 || quantity > models.MaxLineQuantity {
			return &ValidationError{Message: fmt.Sprintf("quantity must be between 1 and %d", models.MaxLineQuantity)}
		}
		product, err := s.products.GetByID(ctx, productID)
		if err != nil {
			if errors.Is(err, repositories.ErrProductNotFound) {
				return &NotFoundError{Resource: "product", ID: productID}
			}
			return fmt.Errorf("failed to load product %s: %w", productID, err)
		}
		if !product.Available {
			return &ValidationError{Message: fmt.Sprintf("product %s is not available", product.Name)}
		}

		instructions = strings.TrimSpace(instructions)
		if line := order.FindItem(productID); line != nil {
			if line.Quantity+quantity > models.MaxLineQuantity {
				return &ValidationError{Message: fmt.Sprintf("%s already has %d units, at most %d allowed", line.ProductName, line.Quantity, models.MaxLineQuantity)}
			}
			line.Quantity += quantity
			if instructions != "" {
				line.SpecialInstructions = instructions
			}
			return nil
		}
		order.Items = append(order.Items, models.LineItem{
			OrderID:             order.ID,
			ProductID:           product.ID,
			ProductName:         product.Name,
			UnitPrice:           product.Price,
			Quantity:            quantity,
			SpecialInstructions: instructions,
			PrepMinutes:         product.PrepMinutes,
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order.FindItem(productID), order, nil
}

// UpdateQuantity sets the quantity of a line. Zero removes the line and
// returns a nil item.
func (s *CartService) UpdateQuantity(ctx context.Context, actor models.Actor, orderID, productID string, quantity int) (*models.LineItem, *models.Order, error) {
	order, err := s.mutate(ctx, actor, orderID, func(order *models.Order) error {
		if quantity < 0 || quantity > models.MaxLineQuantity {
			return &ValidationError{Message: fmt.Sprintf("quantity must be between 0 and %d", models.MaxLineQuantity)}
		}
		line := order.FindItem(productID)
		if line == nil {
			return &NotFoundError{Resource: "line item", ID: productID}
		}
		if quantity == 0 {
			order.RemoveItem(productID)
			return nil
		}
		line.Quantity = quantity
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order.FindItem(productID), order, nil
}

// RemoveItem drops the line for productID. A missing line is a NotFoundError.
func (s *CartService) RemoveItem(ctx context.Context, actor models.Actor, orderID, productID string) (*models.Order, error) {
	return s.mutate(ctx, actor, orderID, func(order *models.Order) error {
		if !order.RemoveItem(productID) {
			return &NotFoundError{Resource: "line item", ID: productID}
		}
		return nil
	})
}

// mutate loads the stored order under its lock, checks ownership and status, applies
// change, recomputes the total and saves with the version check.
func (s *CartService) mutate(ctx context.Context, actor models.Actor, orderID string, change func(*models.Order) error) (*models.Order, error) {
	unlock := s.engine.locks.Lock(orderKey(orderID))
	defer unlock()

	order, err := repositories.GetForUpdate(ctx, s.orders, orderID)
	if err != nil {
		return nil, storeError(err, orderID)
	}
	if !actor.Owns(order) && !actor.IsStaff() {
		return nil, &ForbiddenError{Message: "order belongs to another customer"}
	}
	if !order.Status.IsMutable() {
		return nil, &InvalidStateError{Status: order.Status}
	}

	if err := change(order); err != nil {
		return nil, err
	}
	order.Recalculate(s.deliveryFee)

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, storeError(err, orderID)
	}
	return order, nil
}
