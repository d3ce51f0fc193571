package services

import (
	"context"
	"errors"

	"bistro/internal/models"
	"bistro/internal/repositories"
)

// ProductService handles the menu catalog.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts returns the menu. Customers only see available products.
func (s *ProductService) GetAllProducts(ctx context.Context, actor models.Actor) ([]models.Product, error) {
	return s.repo.GetAll(ctx, !actor.IsStaff())
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, productError(err, id)
	}
	return product, nil
}

// CreateProduct adds a product to the menu. Staff only.
func (s *ProductService) CreateProduct(ctx context.Context, actor models.Actor, product *models.Product) error {
	if !actor.IsStaff() {
		return &ForbiddenError{Message: "staff access required"}
	}
	if product.Price.IsNegative() {
		return &ValidationError{Message: "price cannot be negative"}
	}
	return s.repo.Create(ctx, product)
}

// UpdateProduct replaces a product. Prices already on orders are unaffected.
func (s *ProductService) UpdateProduct(ctx context.Context, actor models.Actor, product *models.Product) error {
	if !actor.IsStaff() {
		return &ForbiddenError{Message: "staff access required"}
	}
	if product.Price.IsNegative() {
		return &ValidationError{Message: "price cannot be negative"}
	}
	return productError(s.repo.Update(ctx, product), product.ID)
}

// DeleteProduct removes a product from the menu.
func (s *ProductService) DeleteProduct(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsStaff() {
		return &ForbiddenError{Message: "staff access required"}
	}
	return productError(s.repo.Delete(ctx, id), id)
}

func productError(err error, id string) error {
	if errors.Is(err, repositories.ErrProductNotFound) {
		return &NotFoundError{Resource: "product", ID: id}
	}
	return err
}
