package orderclient_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"bistro/internal/handlers"
	"bistro/internal/middleware"
	"bistro/internal/models"
	"bistro/internal/repositories"
	"bistro/internal/services"
	"bistro/pkg/orderclient"
	"bistro/pkg/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type apiServer struct {
	url     string
	alice   string
	staff   string
	pizzaID string
}

// newAPIServer serves the order API over real HTTP on an in-memory database.
func newAPIServer(t *testing.T, csrfEnabled bool) *apiServer {
	t.Helper()

	db, err := repositories.OpenDatabase("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()))
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))

	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	authService := services.NewAuthService(repositories.NewGORMUserRepository(db), "test_jwt_secret")

	fee := decimal.RequireFromString("5.00")
	engine := services.NewStatusEngine(orderRepo, nil, decimal.Zero)
	orderHandler := handlers.NewOrderHandler(
		services.NewCartService(orderRepo, productRepo, engine, fee),
		services.NewOrderService(orderRepo, engine, payment.NewMockGateway(0), fee),
		services.NewOrderQueryService(orderRepo),
	)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	if csrfEnabled {
		apiV1.Use(middleware.CSRF())
	}
	orderHandler.RegisterRoutes(apiV1.Group("", middleware.AuthRequired(authService)))

	pizza := models.Product{Name: "Margherita", Price: decimal.RequireFromString("10.00"), Available: true, PrepMinutes: 15}
	require.NoError(t, productRepo.Create(ctx, &pizza))

	require.NoError(t, authService.RegisterUser(ctx, &models.User{Username: "alice", Email: "alice@example.com", Password: "password123"}))
	require.NoError(t, authService.EnsureStaffUser(ctx, "chef", "kitchen123"))
	alice, err := authService.LoginUser(ctx, "alice", "password123")
	require.NoError(t, err)
	staff, err := authService.LoginUser(ctx, "chef", "kitchen123")
	require.NoError(t, err)

	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	return &apiServer{url: srv.URL + "/api/v1", alice: alice, staff: staff, pizzaID: pizza.ID}
}

func TestClientOrderFlow(t *testing.T) {
	api := newAPIServer(t, false)
	client := orderclient.NewClient(api.url, api.alice)
	state := orderclient.NewOrderState(client)

	require.NoError(t, state.LoadActive(ctx))
	assert.Nil(t, state.Order())

	require.NoError(t, state.AddItem(ctx, api.pizzaID, 2, ""))
	order := state.Order()
	require.NotNil(t, order)
	assert.Equal(t, models.StatusOrdering, order.Status)
	assert.True(t, decimal.NewFromInt(20).Equal(order.TotalPrice), "total was %s", order.TotalPrice)
	assert.False(t, state.Loading())

	require.NoError(t, state.UpdateQuantity(ctx, api.pizzaID, 3))
	assert.True(t, decimal.NewFromInt(30).Equal(state.Order().TotalPrice))
	assert.Equal(t, 3, state.Order().ItemCount)
	assert.True(t, decimal.NewFromInt(10).Equal(state.Order().AveragePerItem))
	assert.NotSame(t, order, state.Order())

	_, err := client.Finalize(ctx, order.ID, models.DeliveryPickup, "")
	require.NoError(t, err)

	// The cached copy is stale until the next read.
	err = state.AddItem(ctx, api.pizzaID, 1, "")
	var apiErr *orderclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, err, state.Err())
	assert.Equal(t, models.StatusOrdering, state.Order().Status)

	require.NoError(t, state.Refresh(ctx, order.ID))
	assert.NoError(t, state.Err())
	assert.Equal(t, models.StatusPendingPayment, state.Order().Status)
	assert.Equal(t, "Pending payment", state.Order().StatusLabel)

	paid, err := client.Pay(ctx, order.ID, models.PaymentPix)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, paid.Status)

	kitchen := orderclient.NewOrderState(orderclient.NewClient(api.url, api.staff))
	require.NoError(t, kitchen.Refresh(ctx, order.ID))
	require.NoError(t, kitchen.Advance(ctx, "firing"))
	assert.Equal(t, models.StatusPreparing, kitchen.Order().Status)
	require.NoError(t, kitchen.TransitionTo(ctx, models.StatusReady, ""))
	assert.Equal(t, models.StatusReady, kitchen.Order().Status)

	history, err := client.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, models.StatusReady, history[4].ToStatus)
}

func TestClientCancel(t *testing.T) {
	api := newAPIServer(t, false)
	state := orderclient.NewOrderState(orderclient.NewClient(api.url, api.alice))

	require.NoError(t, state.AddItem(ctx, api.pizzaID, 1, ""))
	require.NoError(t, state.Cancel(ctx, "changed my mind"))
	assert.Equal(t, models.StatusCancelled, state.Order().Status)
	assert.False(t, state.Order().CanCancel)
}

func TestClientReportsForbidden(t *testing.T) {
	api := newAPIServer(t, false)
	client := orderclient.NewClient(api.url, api.alice)

	_, err := client.Advance(ctx, uuid.New().String(), "")
	var apiErr *orderclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Message)

	_, err = orderclient.NewClient(api.url, "not-a-token").ActiveOrder(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClientSendsCSRFToken(t *testing.T) {
	api := newAPIServer(t, true)
	client := orderclient.NewClient(api.url, api.alice)

	_, err := client.CreateOrder(ctx, models.DeliveryPickup, "", "")
	var apiErr *orderclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	// Any safe request hands out the token cookie.
	_, err = client.ActiveOrder(ctx)
	require.NoError(t, err)

	order, err := client.CreateOrder(ctx, models.DeliveryPickup, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOrdering, order.Status)
}
