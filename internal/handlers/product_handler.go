package handlers

import (
	"log"

	"bistro/internal/middleware"
	"bistro/internal/models"
	"bistro/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ProductHandler handles HTTP requests for the menu.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProduct)
	productRoutes.Post("/", middleware.RequireStaff(), h.HandleCreateProduct)
	productRoutes.Put("/:id", middleware.RequireStaff(), h.HandleUpdateProduct)
	productRoutes.Delete("/:id", middleware.RequireStaff(), h.HandleDeleteProduct)
}

// ProductRequest is the body of product create and update calls.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,min=3,max=100"`
	Description string          `json:"description" validate:"max=500"`
	Category    string          `json:"category" validate:"max=50"`
	Price       decimal.Decimal `json:"price"`
	Available   *bool           `json:"available"`
	PrepMinutes int             `json:"prepMinutes" validate:"gte=0"`
}

func (r ProductRequest) toModel(id string) *models.Product {
	available := true
	if r.Available != nil {
		available = *r.Available
	}
	return &models.Product{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
		Available:   available,
		PrepMinutes: r.PrepMinutes,
	}
}

// HandleGetProducts returns the menu.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		log.Printf("Error getting products: %v", err)
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"products": products})
}

// HandleGetProduct returns one product.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"product": product})
}

// HandleCreateProduct adds a product to the menu.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return handleError(c, err)
	}

	product := req.toModel("")
	if err := h.service.CreateProduct(c.UserContext(), middleware.ActorFrom(c), product); err != nil {
		log.Printf("Error creating product: %v", err)
		return handleError(c, err)
	}
	return ok(c, fiber.StatusCreated, fiber.Map{"product": product})
}

// HandleUpdateProduct replaces a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return handleError(c, err)
	}

	product := req.toModel(c.Params("id"))
	if err := h.service.UpdateProduct(c.UserContext(), middleware.ActorFrom(c), product); err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"product": product})
}

// HandleDeleteProduct removes a product from the menu.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteProduct(c.UserContext(), middleware.ActorFrom(c), id); err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"message": "Product deleted"})
}
