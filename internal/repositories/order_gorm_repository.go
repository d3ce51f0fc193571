package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bistro/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// Create inserts a new order together with its items.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.CustomerID == "" {
		return fmt.Errorf("failed to create order: customer is required")
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Version == 0 {
		order.Version = 1
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrActiveOrderExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order and its items.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items", preloadItems).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// FindActiveByCustomer returns the customer's order in ORDERING.
func (r *GORMOrderRepository) FindActiveByCustomer(ctx context.Context, customerID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", preloadItems).
		Where("customer_id = ? AND status = ?", customerID, models.StatusOrdering).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("active order for customer %s: %w", customerID, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get active order for customer %s: %w", customerID, err)
	}
	return &order, nil
}

// ListByCustomer returns the customer's orders newest first, optionally filtered by status.
func (r *GORMOrderRepository) ListByCustomer(ctx context.Context, customerID string, status *models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.WithContext(ctx).Preload("Items", preloadItems).Where("customer_id = ?", customerID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders for customer %s: %w", customerID, err)
	}
	return orders, nil
}

// ListByStatus returns every order in status, oldest first.
func (r *GORMOrderRepository) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", preloadItems).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders with status %d: %w", status, err)
	}
	return orders, nil
}

// Save writes the order row and reconciles its items in one transaction.
func (r *GORMOrderRepository) Save(ctx context.Context, order *models.Order) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND version = ?", order.ID, order.Version).
			Updates(map[string]interface{}{
				"status":                order.Status,
				"delivery_type":         order.DeliveryType,
				"delivery_address":      order.DeliveryAddress,
				"notes":                 order.Notes,
				"payment_method":        order.PaymentMethod,
				"delivery_fee":          order.DeliveryFee,
				"total_price":           order.TotalPrice,
				"estimated_delivery_at": order.EstimatedDeliveryAt,
				"version":               order.Version + 1,
				"updated_at":            now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update order %s: %w", order.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check order %s: %w", order.ID, err)
			}
			if count == 0 {
				return fmt.Errorf("order with ID %s: %w", order.ID, ErrOrderNotFound)
			}
			return ErrVersionConflict
		}

		keep := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			keep = append(keep, item.ProductID)
		}
		stale := tx.Where("order_id = ?", order.ID)
		if len(keep) > 0 {
			stale = stale.Where("product_id NOT IN ?", keep)
		}
		if err := stale.Delete(&models.LineItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete removed items of order %s: %w", order.ID, err)
		}

		for i := range order.Items {
			order.Items[i].OrderID = order.ID
			if err := tx.Save(&order.Items[i]).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrVersionConflict
				}
				return fmt.Errorf("failed to save item %s of order %s: %w", order.Items[i].ProductID, order.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	order.Version++
	order.UpdatedAt = now
	return nil
}

// AppendHistory stores a status change record.
func (r *GORMOrderRepository) AppendHistory(ctx context.Context, change *models.StatusChange) error {
	if err := r.db.WithContext(ctx).Create(change).Error; err != nil {
		return fmt.Errorf("failed to append history for order %s: %w", change.OrderID, err)
	}
	return nil
}

// History returns the status changes of an order in the order they happened.
func (r *GORMOrderRepository) History(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	var changes []models.StatusChange
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&changes).Error; err != nil {
		return nil, fmt.Errorf("failed to get history for order %s: %w", orderID, err)
	}
	return changes, nil
}
