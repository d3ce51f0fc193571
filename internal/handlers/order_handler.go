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

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	cart     *services.CartService
	orders   *services.OrderService
	queries  *services.OrderQueryService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(cart *services.CartService, orders *services.OrderService, queries *services.OrderQueryService) *OrderHandler {
	return &OrderHandler{
		cart:     cart,
		orders:   orders,
		queries:  queries,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
// Static paths are declared before "/:id" so they are not captured by it.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/statuses", h.HandleStatusChoices)
	orderRoutes.Get("/active", h.HandleGetActiveOrder)
	orderRoutes.Get("/mine", h.HandleListMine)
	orderRoutes.Get("/by-status", middleware.RequireStaff(), h.HandleOrdersByStatus)
	orderRoutes.Post("/items/add", h.HandleAddItem)
	orderRoutes.Post("/items/update-quantity", h.HandleUpdateQuantity)
	orderRoutes.Post("/items/remove", h.HandleRemoveItem)
	orderRoutes.Post("/payment", h.HandlePayment)

	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Get("/:id/history", h.HandleHistory)
	orderRoutes.Post("/:id/finalize", h.HandleFinalize)
	orderRoutes.Post("/:id/cancel", h.HandleCancel)
	orderRoutes.Post("/:id/advance", middleware.RequireStaff(), h.HandleAdvance)
	orderRoutes.Post("/:id/status", middleware.RequireStaff(), h.HandleSetStatus)
}

// OrderResponse is an order as seen by the caller, with the status label,
// the moves the caller may make from the current status and a few summary
// figures for the order page.
type OrderResponse struct {
	*models.Order
	StatusLabel        string                `json:"statusLabel"`
	CanCancel          bool                  `json:"canCancel"`
	AllowedTransitions []models.StatusChoice `json:"allowedTransitions"`
	ItemCount          int                   `json:"itemCount"`
	PrepMinutes        int                   `json:"prepMinutes"`
	AveragePerItem     decimal.Decimal       `json:"averagePerItem"`
}

func newOrderResponse(order *models.Order, actor models.Actor) *OrderResponse {
	if order == nil {
		return nil
	}
	allowed := make([]models.StatusChoice, 0)
	if actor.Role == models.RoleStaff || actor.Owns(order) {
		for _, s := range services.AllowedTransitions(actor.Role, order.Status) {
			allowed = append(allowed, s.Choice())
		}
	}
	return &OrderResponse{
		Order:              order,
		StatusLabel:        order.Status.String(),
		CanCancel:          services.CanCancel(order, actor),
		AllowedTransitions: allowed,
		ItemCount:          order.ItemCount(),
		PrepMinutes:        order.PrepMinutes(),
		AveragePerItem:     order.AverageItemValue(),
	}
}

func newOrderResponses(orders []models.Order, actor models.Actor) []*OrderResponse {
	out := make([]*OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(&orders[i], actor))
	}
	return out
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	DeliveryType    string `json:"deliveryType" validate:"omitempty,oneof=pickup delivery"`
	DeliveryAddress string `json:"deliveryAddress" validate:"max=500"`
	Notes           string `json:"notes" validate:"max=1000"`
}

// HandleCreateOrder returns the caller's active order, creating it if needed.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return handleError(c, err)
	}

	actor := middleware.ActorFrom(c)
	order, created, err := h.cart.CreateOrder(c.UserContext(), actor, services.CreateOrderInput{
		DeliveryType:    models.DeliveryType(req.DeliveryType),
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		log.Printf("Error creating order for %s: %v", actor.ID, err)
		return handleError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return ok(c, status, fiber.Map{"order": newOrderResponse(order, actor)})
}

// AddItemRequest is the body of POST /orders/items/add.
type AddItemRequest struct {
	OrderID      string `json:"orderId" validate:"max=36"`
	ProductID    string `json:"productId" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,min=1,max=99"`
	Instructions string `json:"instructions" validate:"max=500"`
}

// HandleAddItem adds a product to an order.
func (h *OrderHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return handleError(c, err)
	}

	actor := middleware.ActorFrom(c)
	item, order, err := h.cart.AddItem(c.UserContext(), actor, req.OrderID, req.ProductID, req.Quantity, req.Instructions)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"item":  item,
		"order": newOrderResponse(order, actor),
	})
}

// UpdateQuantityRequest is the body of POST /orders/items/update-quantity.
type UpdateQuantityRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=0,max=99"`
}

// HandleUpdateQuantity sets the quantity of a line; zero removes it.
func (h *OrderHandler) HandleUpdateQuantity(c *fiber.Ctx) error {
	var req UpdateQuantityRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return handleError(c, err)
	}

	actor := middleware.ActorFrom(c)
	item, order, err := h.cart.UpdateQuantity(c.UserContext(), actor, req.OrderID, req.ProductID, req.Quantity)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{
		"item":  item,
		"order": newOrderResponse(order, actor),
	})
}

// RemoveItemRequest is the body of POST /orders/items/remove.
type RemoveItemRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
}

// HandleRemoveItem drops a line from an order.
func (h *OrderHandler) HandleRemoveItem(c *fiber.Ctx) error {
	var req RemoveItemRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return handleError(c, err)
	}

	actor := middleware.ActorFrom(c)
	order, err := h.cart.RemoveItem(c.UserContext(), actor, req.OrderID, req.ProductID)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"order": newOrderResponse(order, actor)})
}

// FinalizeRequest is the body of POST /orders/:id/finalize.
type FinalizeRequest struct {
	DeliveryType    string `json:"deliveryType" validate:"required,oneof=pickup delivery"`
	DeliveryAddress string `json:"deliveryAddress" validate:"max=500"`
	Notes           string `json:"notes" validate:"max=1000"`
}

// HandleFinalize checks out an order.
func (h *OrderHandler) HandleFinalize(c *fiber.Ctx) error {
	var req FinalizeRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return handleError(c, err)
	}

	actor := middleware.ActorFrom(c)
	order, err := h.orders.Finalize(c.UserContext(), actor, c.Params("id"), services.FinalizeInput{
		DeliveryType:    models.DeliveryType(req.DeliveryType),
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"order": newOrderResponse(order, actor)})
}

// PaymentRequest is the body of POST /orders/payment.
type PaymentRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Method  string `json:"method" validate:"required,oneof=balance card cash pix"`
}

// HandlePayment charges an order awaiting payment.
func (h *OrderHandler) HandlePayment(c *fiber.Ctx) error {
	var req PaymentRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return handleError(c, err)
	}

	actor := middleware.ActorFrom(c)
	order, err := h.orders.ProcessPayment(c.UserContext(), actor, req.OrderID, models.PaymentMethod(req.Method))
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"order": newOrderResponse(order, actor)})
}

// CancelRequest is the body of POST /orders/:id/cancel.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// HandleCancel cancels an order.
func (h *OrderHandler) HandleCancel(c *fiber.Ctx) error {
	var req CancelRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, h.validate, &req); err != nil {
			return handleError(c, err)
		}
	}

	actor := middleware.ActorFrom(c)
	order, err := h.orders.Cancel(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"order": newOrderResponse(order, actor)})
}

// NoteRequest is the body of POST /orders/:id/advance.
type NoteRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// HandleAdvance moves an order one step forward. Staff only.
func (h *OrderHandler) HandleAdvance(c *fiber.Ctx) error {
	var req NoteRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, h.validate, &req); err != nil {
			return handleError(c, err)
		}
	}

	actor := middleware.ActorFrom(c)
	order, err := h.orders.Advance(c.UserContext(), actor, c.Params("id"), req.Note)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"order": newOrderResponse(order, actor)})
}

// SetStatusRequest is the body of POST /orders/:id/status.
type SetStatusRequest struct {
	Status *int   `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

// HandleSetStatus moves an order directly to the requested status. Staff only.
func (h *OrderHandler) HandleSetStatus(c *fiber.Ctx) error {
	var req SetStatusRequest
	if err := parseBody(c, h.validate, &req); err != nil {
		return handleError(c, err)
	}

	actor := middleware.ActorFrom(c)
	order, err := h.orders.SetStatus(c.UserContext(), actor, c.Params("id"), models.OrderStatus(*req.Status), req.Note)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"order": newOrderResponse(order, actor)})
}

// HandleGetOrder returns one order.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	order, err := h.queries.GetOrderDetail(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"order": newOrderResponse(order, actor)})
}

// HandleHistory returns the status changes of an order.
func (h *OrderHandler) HandleHistory(c *fiber.Ctx) error {
	history, err := h.queries.History(c.UserContext(), c.Params("id"), middleware.ActorFrom(c))
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"history": history})
}

// HandleGetActiveOrder returns the caller's ORDERING order, or null.
func (h *OrderHandler) HandleGetActiveOrder(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	order, err := h.queries.GetActiveOrder(c.UserContext(), actor)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"order": newOrderResponse(order, actor)})
}

// HandleListMine returns the caller's orders, optionally filtered by ?status=.
func (h *OrderHandler) HandleListMine(c *fiber.Ctx) error {
	var filter *models.OrderStatus
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return handleError(c, &services.ValidationError{Message: err.Error()})
		}
		filter = &status
	}

	actor := middleware.ActorFrom(c)
	orders, err := h.queries.ListMine(c.UserContext(), actor, filter)
	if err != nil {
		return handleError(c, err)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"orders": newOrderResponses(orders, actor)})
}

// HandleOrdersByStatus groups orders by status code. Without ?status= every
// non-terminal status past ORDERING is included.
func (h *OrderHandler) HandleOrdersByStatus(c *fiber.Ctx) error {
	statuses := []models.OrderStatus{
		models.StatusPendingPayment,
		models.StatusWaiting,
		models.StatusPreparing,
		models.StatusReady,
		models.StatusDelivering,
	}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return handleError(c, &services.ValidationError{Message: err.Error()})
		}
		statuses = []models.OrderStatus{status}
	}

	actor := middleware.ActorFrom(c)
	grouped := make(map[int][]*OrderResponse, len(statuses))
	for _, status := range statuses {
		orders, err := h.queries.ListByStatus(c.UserContext(), actor, status)
		if err != nil {
			return handleError(c, err)
		}
		grouped[int(status)] = newOrderResponses(orders, actor)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"ordersByStatus": grouped})
}

// HandleStatusChoices lists every status code with its display name.
func (h *OrderHandler) HandleStatusChoices(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, fiber.Map{"statuses": models.StatusChoices()})
}
