package orderclient_test

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bistro/pkg/orderclient"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	reads    int32
	failRead int32
	release  chan struct{}
}

func newStubServer(t *testing.T, stub *stubAPI) string {
	t.Helper()
	app := fiber.New()
	app.Post("/api/v1/orders/items/add", func(c *fiber.Ctx) error {
		if stub.release != nil {
			<-stub.release
		}
		return c.JSON(fiber.Map{"success": true, "order": fiber.Map{"id": "o-1", "status": 0}})
	})
	app.Get("/api/v1/orders/:id", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&stub.reads, 1)
		if n <= atomic.LoadInt32(&stub.failRead) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "internal error"})
		}
		return c.JSON(fiber.Map{"success": true, "order": fiber.Map{"id": c.Params("id"), "status": 3, "statusLabel": "Preparing"}})
	})

	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	return srv.URL + "/api/v1"
}

func TestOrderStateRejectsConcurrentChangeToSameItem(t *testing.T) {
	stub := &stubAPI{release: make(chan struct{})}
	state := orderclient.NewOrderState(orderclient.NewClient(newStubServer(t, stub), "token"))

	done := make(chan error, 1)
	go func() { done <- state.AddItem(ctx, "p-1", 1, "") }()

	require.Eventually(t, func() bool { return state.InFlight("p-1") }, time.Second, 5*time.Millisecond)
	assert.True(t, state.Loading())
	assert.False(t, state.InFlight("p-2"))
	assert.ErrorIs(t, state.AddItem(ctx, "p-1", 1, ""), orderclient.ErrBusy)

	close(stub.release)
	require.NoError(t, <-done)
	assert.False(t, state.InFlight("p-1"))
	assert.False(t, state.Loading())
	require.NotNil(t, state.Order())
	assert.Equal(t, "o-1", state.Order().ID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.reads))
}

func TestOrderStateKeepsOrderOnFailedRead(t *testing.T) {
	stub := &stubAPI{}
	state := orderclient.NewOrderState(orderclient.NewClient(newStubServer(t, stub), "token"))

	require.NoError(t, state.Refresh(ctx, "o-1"))
	cached := state.Order()

	atomic.StoreInt32(&stub.failRead, 2)
	err := state.Refresh(ctx, "o-1")
	var apiErr *orderclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, err, state.Err())
	assert.Same(t, cached, state.Order())
}

func TestPollRefreshesUntilCancelled(t *testing.T) {
	stub := &stubAPI{failRead: 1}
	state := orderclient.NewOrderState(orderclient.NewClient(newStubServer(t, stub), "token"))

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- state.Poll(pollCtx, "o-9", 10*time.Millisecond) }()

	// The first read fails and is retried on the next tick.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&stub.reads) >= 3 && state.Err() == nil && state.Order() != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "o-9", state.Order().ID)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poll did not stop after cancel")
	}

	time.Sleep(20 * time.Millisecond)
	reads := atomic.LoadInt32(&stub.reads)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, reads, atomic.LoadInt32(&stub.reads))
}

func TestOrderStateIgnoresOlderResponse(t *testing.T) {
	var reads int32
	slow := make(chan struct{})
	app := fiber.New()
	app.Get("/api/v1/orders/:id", func(c *fiber.Ctx) error {
		if atomic.AddInt32(&reads, 1) == 1 {
			<-slow
			return c.JSON(fiber.Map{"success": true, "order": fiber.Map{"id": c.Params("id"), "status": 0, "version": 1}})
		}
		return c.JSON(fiber.Map{"success": true, "order": fiber.Map{"id": c.Params("id"), "status": 1, "version": 2}})
	})
	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	state := orderclient.NewOrderState(orderclient.NewClient(srv.URL+"/api/v1", "token"))

	first := make(chan error, 1)
	go func() { first <- state.Refresh(ctx, "o-1") }()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&reads) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, state.Refresh(ctx, "o-1"))
	require.Equal(t, 2, state.Order().Version)

	close(slow)
	require.NoError(t, <-first)
	assert.Equal(t, 2, state.Order().Version)
	assert.EqualValues(t, 1, state.Order().Status)
	assert.False(t, state.Loading())
}
