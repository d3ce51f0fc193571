package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bistro/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
// It enforces the same version check and one-active-order rule as the GORM store.
type MockOrderRepository struct {
	orders   map[string]models.Order
	history  map[string][]models.StatusChange
	nextItem uint
	nextLog  uint
	mu       sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders:  make(map[string]models.Order),
		history: make(map[string][]models.StatusChange),
	}
}

func cloneOrder(o models.Order) models.Order {
	items := make([]models.LineItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	if o.EstimatedDeliveryAt != nil {
		t := *o.EstimatedDeliveryAt
		o.EstimatedDeliveryAt = &t
	}
	return o
}

// Create adds a new order.
func (r *MockOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.CustomerID == "" {
		return fmt.Errorf("failed to create order: customer is required")
	}
	if order.Status == models.StatusOrdering {
		for _, existing := range r.orders {
			if existing.CustomerID == order.CustomerID && existing.Status == models.StatusOrdering {
				return ErrActiveOrderExists
			}
		}
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Version == 0 {
		order.Version = 1
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.assignItemIDs(order, now)
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r *MockOrderRepository) assignItemIDs(order *models.Order, now time.Time) {
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		if order.Items[i].ID == 0 {
			r.nextItem++
			order.Items[i].ID = r.nextItem
			order.Items[i].CreatedAt = now
		}
		order.Items[i].UpdatedAt = now
	}
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
	}
	clone := cloneOrder(order)
	return &clone, nil
}

// FindActiveByCustomer returns the customer's order in ORDERING.
func (r *MockOrderRepository) FindActiveByCustomer(_ context.Context, customerID string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.orders {
		if order.CustomerID == customerID && order.Status == models.StatusOrdering {
			clone := cloneOrder(order)
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("active order for customer %s: %w", customerID, ErrOrderNotFound)
}

// ListByCustomer returns the customer's orders newest first.
func (r *MockOrderRepository) ListByCustomer(_ context.Context, customerID string, status *models.OrderStatus) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0)
	for _, order := range r.orders {
		if order.CustomerID != customerID {
			continue
		}
		if status != nil && order.Status != *status {
			continue
		}
		orderList = append(orderList, cloneOrder(order))
	}
	sort.SliceStable(orderList, func(i, j int) bool {
		return orderList[i].CreatedAt.After(orderList[j].CreatedAt)
	})
	return orderList, nil
}

// ListByStatus returns orders in status oldest first.
func (r *MockOrderRepository) ListByStatus(_ context.Context, status models.OrderStatus) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0)
	for _, order := range r.orders {
		if order.Status == status {
			orderList = append(orderList, cloneOrder(order))
		}
	}
	sort.SliceStable(orderList, func(i, j int) bool {
		return orderList[i].CreatedAt.Before(orderList[j].CreatedAt)
	})
	return orderList, nil
}

// Save replaces the stored aggregate when the version matches.
func (r *MockOrderRepository) Save(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", order.ID, ErrOrderNotFound)
	}
	if stored.Version != order.Version {
		return ErrVersionConflict
	}
	now := time.Now()
	order.Version++
	order.UpdatedAt = now
	order.CreatedAt = stored.CreatedAt
	order.CustomerID = stored.CustomerID
	r.assignItemIDs(order, now)
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

// AppendHistory stores a status change record.
func (r *MockOrderRepository) AppendHistory(_ context.Context, change *models.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextLog++
	change.ID = r.nextLog
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now()
	}
	r.history[change.OrderID] = append(r.history[change.OrderID], *change)
	return nil
}

// History returns the status changes of an order in insertion order.
func (r *MockOrderRepository) History(_ context.Context, orderID string) ([]models.StatusChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	changes := make([]models.StatusChange, len(r.history[orderID]))
	copy(changes, r.history[orderID])
	return changes, nil
}
