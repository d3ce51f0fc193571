package services_test

import (
	"context"
	"sync"
	"testing"

	"bistro/internal/models"
	"bistro/internal/repositories"
	"bistro/internal/services"
	"bistro/pkg/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pizzaID = "11111111-1111-1111-1111-111111111111"
	sodaID  = "22222222-2222-2222-2222-222222222222"
	soldOut = "33333333-3333-3333-3333-333333333333"
)

var (
	alice = models.Actor{ID: "alice", Role: models.RoleCustomer}
	bob   = models.Actor{ID: "bob", Role: models.RoleCustomer}
	fee   = decimal.RequireFromString("5.00")
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.StatusChangedEvent
}

func (p *recordingPublisher) Publish(routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if routingKey == models.RoutingKeyStatusChanged {
		p.events = append(p.events, payload.(models.StatusChangedEvent))
	}
	return nil
}

func (p *recordingPublisher) last() models.StatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type stubGateway struct {
	approve bool
	calls   int
}

func (g *stubGateway) Charge(_ context.Context, req payment.Request) (*payment.Response, error) {
	g.calls++
	if !g.approve {
		return &payment.Response{Success: false, Status: "failed", FailureReason: "insufficient funds"}, nil
	}
	return &payment.Response{Success: true, Status: "completed", TransactionID: "TXN_test"}, nil
}

type fixture struct {
	orders    *repositories.MockOrderRepository
	engine    *services.StatusEngine
	cart      *services.CartService
	orderSvc  *services.OrderService
	query     *services.OrderQueryService
	publisher *recordingPublisher
	gateway   *stubGateway
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithMinimum(t, decimal.Zero)
}

func newFixtureWithMinimum(t *testing.T, minimum decimal.Decimal) *fixture {
	t.Helper()
	orders := repositories.NewMockOrderRepository()
	products := repositories.NewMockProductRepository(
		models.Product{ID: pizzaID, Name: "Margherita", Price: decimal.RequireFromString("10.00"), Available: true, PrepMinutes: 15},
		models.Product{ID: sodaID, Name: "Lemon soda", Price: decimal.RequireFromString("5.00"), Available: true, PrepMinutes: 1},
		models.Product{ID: soldOut, Name: "Truffle risotto", Price: decimal.RequireFromString("30.00"), Available: false},
	)
	publisher := &recordingPublisher{}
	gateway := &stubGateway{approve: true}
	engine := services.NewStatusEngine(orders, publisher, minimum)
	return &fixture{
		orders:    orders,
		engine:    engine,
		cart:      services.NewCartService(orders, products, engine, fee),
		orderSvc:  services.NewOrderService(orders, engine, gateway, fee),
		query:     services.NewOrderQueryService(orders),
		publisher: publisher,
		gateway:   gateway,
	}
}

// cartWith creates alice's active order holding the given product quantities.
func (f *fixture) cartWith(t *testing.T, qty map[string]int) *models.Order {
	t.Helper()
	order, err := f.cart.GetOrCreateActiveOrder(ctx, alice)
	require.NoError(t, err)
	for productID, n := range qty {
		_, order, err = f.cart.AddItem(ctx, alice, order.ID, productID, n, "")
		require.NoError(t, err)
	}
	return order
}

// orderInStatus stores an order for alice with one pizza directly in status.
func (f *fixture) orderInStatus(t *testing.T, status models.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		CustomerID:   alice.ID,
		Status:       status,
		DeliveryType: models.DeliveryPickup,
		Items: []models.LineItem{
			{ProductID: pizzaID, ProductName: "Margherita", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 1},
		},
	}
	order.Recalculate(fee)
	require.NoError(t, f.orders.Create(ctx, order))
	return order
}

func assertTotalConsistent(t *testing.T, order *models.Order) {
	t.Helper()
	sum := decimal.Zero
	for _, item := range order.Items {
		assert.True(t, item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Equal(item.Subtotal), "subtotal of %s", item.ProductID)
		sum = sum.Add(item.Subtotal)
	}
	expectedFee := decimal.Zero
	if order.DeliveryType == models.DeliveryDelivery {
		expectedFee = fee
	}
	assert.True(t, sum.Add(expectedFee).Equal(order.TotalPrice), "total %s != %s + %s", order.TotalPrice, sum, expectedFee)
}
