package repositories_test

import (
	"context"
	"errors"
	"testing"

	"bistro/internal/models"
	"bistro/internal/repositories"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var ctx = context.Background()

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repositories.OpenDatabase("sqlite", "file:"+uuid.New().String()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	return db
}

func newOrder(customerID string, status models.OrderStatus, productIDs ...string) *models.Order {
	order := &models.Order{
		CustomerID:   customerID,
		Status:       status,
		DeliveryType: models.DeliveryPickup,
	}
	for _, id := range productIDs {
		order.Items = append(order.Items, models.LineItem{
			ProductID:   id,
			ProductName: "item " + id,
			UnitPrice:   decimal.RequireFromString("4.50"),
			Quantity:    2,
		})
	}
	order.Recalculate(decimal.RequireFromString("5"))
	return order
}

func TestGORMOrderRepository_CreateAndGet(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(openTestDB(t))

	order := newOrder("alice", models.StatusOrdering, "p1", "p2")
	require.NoError(t, repo.Create(ctx, order))
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 1, order.Version)

	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "p1", stored.Items[0].ProductID)
	assert.Equal(t, "9.00", stored.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "18.00", stored.TotalPrice.StringFixed(2))

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)

	err = repo.Create(ctx, &models.Order{Status: models.StatusOrdering})
	assert.Error(t, err)
}

func TestGORMOrderRepository_OneActiveOrderPerCustomer(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(openTestDB(t))

	require.NoError(t, repo.Create(ctx, newOrder("alice", models.StatusOrdering)))
	err := repo.Create(ctx, newOrder("alice", models.StatusOrdering))
	assert.ErrorIs(t, err, repositories.ErrActiveOrderExists)

	// Finished orders and other customers are unaffected.
	assert.NoError(t, repo.Create(ctx, newOrder("alice", models.StatusDelivered)))
	assert.NoError(t, repo.Create(ctx, newOrder("bob", models.StatusOrdering)))

	active, err := repo.FindActiveByCustomer(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOrdering, active.Status)

	_, err = repo.FindActiveByCustomer(ctx, "carol")
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}

func TestGORMOrderRepository_SaveReconcilesItems(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(openTestDB(t))
	order := newOrder("alice", models.StatusOrdering, "p1", "p2")
	require.NoError(t, repo.Create(ctx, order))

	order.RemoveItem("p1")
	order.FindItem("p2").Quantity = 5
	order.Items = append(order.Items, models.LineItem{ProductID: "p3", ProductName: "item p3", UnitPrice: decimal.NewFromInt(1), Quantity: 1})
	order.Recalculate(decimal.Zero)
	require.NoError(t, repo.Save(ctx, order))
	assert.Equal(t, 2, order.Version)

	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "p2", stored.Items[0].ProductID)
	assert.Equal(t, 5, stored.Items[0].Quantity)
	assert.Equal(t, "p3", stored.Items[1].ProductID)
	assert.Equal(t, "23.50", stored.TotalPrice.StringFixed(2))
	assert.Equal(t, 2, stored.Version)
}

func TestGORMOrderRepository_SaveVersionConflict(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(openTestDB(t))
	order := newOrder("alice", models.StatusOrdering, "p1")
	require.NoError(t, repo.Create(ctx, order))

	stale, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)

	order.Status = models.StatusPendingPayment
	require.NoError(t, repo.Save(ctx, order))

	stale.Status = models.StatusCancelled
	err = repo.Save(ctx, stale)
	assert.ErrorIs(t, err, repositories.ErrVersionConflict)

	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingPayment, stored.Status)

	err = repo.Save(ctx, &models.Order{ID: "missing", Version: 1})
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}

func TestGORMOrderRepository_Listing(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(openTestDB(t))
	waiting1 := newOrder("alice", models.StatusWaiting, "p1")
	require.NoError(t, repo.Create(ctx, waiting1))
	waiting2 := newOrder("bob", models.StatusWaiting, "p1")
	require.NoError(t, repo.Create(ctx, waiting2))
	require.NoError(t, repo.Create(ctx, newOrder("alice", models.StatusOrdering)))

	queue, err := repo.ListByStatus(ctx, models.StatusWaiting)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Len(t, queue[0].Items, 1)

	mine, err := repo.ListByCustomer(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	waiting := models.StatusWaiting
	mine, err = repo.ListByCustomer(ctx, "alice", &waiting)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, waiting1.ID, mine[0].ID)
}

func TestGORMOrderRepository_History(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(openTestDB(t))
	order := newOrder("alice", models.StatusOrdering)
	require.NoError(t, repo.Create(ctx, order))

	from := models.StatusOrdering
	require.NoError(t, repo.AppendHistory(ctx, &models.StatusChange{OrderID: order.ID, ToStatus: models.StatusOrdering, ActorID: "alice", ActorRole: models.RoleCustomer, Note: "order created"}))
	require.NoError(t, repo.AppendHistory(ctx, &models.StatusChange{OrderID: order.ID, FromStatus: &from, ToStatus: models.StatusPendingPayment, ActorID: "alice", ActorRole: models.RoleCustomer}))

	history, err := repo.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[0].FromStatus)
	require.NotNil(t, history[1].FromStatus)
	assert.Equal(t, models.StatusOrdering, *history[1].FromStatus)
	assert.Equal(t, models.StatusPendingPayment, history[1].ToStatus)
}

func newMockedRepo(t *testing.T) (*repositories.GORMOrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return repositories.NewGORMOrderRepository(db), mock
}

func TestGORMOrderRepository_GetByIDDatabaseError(t *testing.T) {
	repo, mock := newMockedRepo(t)
	mock.ExpectQuery(`SELECT \* FROM "orders"`).WillReturnError(errors.New("connection reset by peer"))

	_, err := repo.GetByID(ctx, "o1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repositories.ErrOrderNotFound)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGORMOrderRepository_GetByIDNoRows(t *testing.T) {
	repo, mock := newMockedRepo(t)
	mock.ExpectQuery(`SELECT \* FROM "orders"`).WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "status"}))

	_, err := repo.GetByID(ctx, "o1")
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGORMOrderRepository_ListByStatusDatabaseError(t *testing.T) {
	repo, mock := newMockedRepo(t)
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE status = `).WillReturnError(errors.New("relation \"orders\" does not exist"))

	_, err := repo.ListByStatus(ctx, models.StatusWaiting)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list orders with status 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
