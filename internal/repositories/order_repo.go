package repositories

import (
	"context"

	"bistro/internal/models"
)

// OrderRepository defines the interface for order data access. It stores
// whole aggregates and enforces no transition rules.
type OrderRepository interface {
	// Create inserts a new order with its items. Fails with ErrActiveOrderExists
	// when the customer already has an order in ORDERING.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	FindActiveByCustomer(ctx context.Context, customerID string) (*models.Order, error)
	// ListByCustomer returns the customer's orders newest first.
	ListByCustomer(ctx context.Context, customerID string, status *models.OrderStatus) ([]models.Order, error)
	// ListByStatus returns orders in status oldest first.
	ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	// Save persists the aggregate if order.Version still matches the stored
	// version, then increments it. Otherwise it returns ErrVersionConflict.
	Save(ctx context.Context, order *models.Order) error
	AppendHistory(ctx context.Context, change *models.StatusChange) error
	History(ctx context.Context, orderID string) ([]models.StatusChange, error)
}

// uncachedReader is implemented by repositories that put a read cache in
// front of GetByID.
type uncachedReader interface {
	GetByIDUncached(ctx context.Context, id string) (*models.Order, error)
}

// GetForUpdate reads the stored order, skipping any read cache in front of
// repo. Callers that save the order afterwards use it so the version check
// runs against the stored version.
func GetForUpdate(ctx context.Context, repo OrderRepository, id string) (*models.Order, error) {
	if r, ok := repo.(uncachedReader); ok {
		return r.GetByIDUncached(ctx, id)
	}
	return repo.GetByID(ctx, id)
}
