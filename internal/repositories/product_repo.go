package repositories

import (
	"context"

	"bistro/internal/models"
)

// ProductRepository defines the interface for menu data access.
type ProductRepository interface {
	// GetAll returns the menu. With availableOnly set, unavailable products are skipped.
	GetAll(ctx context.Context, availableOnly bool) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
