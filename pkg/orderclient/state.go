package orderclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"bistro/internal/models"
)

// DefaultPollInterval is used by Poll when no interval is given.
const DefaultPollInterval = 30 * time.Second

// ErrBusy is returned when a change to the same item or order is already in flight.
var ErrBusy = errors.New("orderclient: a change to this item is already in flight")

// OrderState holds the client's copy of one order. The server is
// authoritative: every mutation is followed by a full re-fetch that replaces
// the cached order.
type OrderState struct {
	client *Client

	mu       sync.Mutex
	order    *Order
	pending  int
	err      error
	inFlight map[string]struct{}
}

// NewOrderState creates an empty OrderState backed by client.
func NewOrderState(client *Client) *OrderState {
	return &OrderState{
		client:   client,
		inFlight: make(map[string]struct{}),
	}
}

// Order returns the cached order, or nil.
func (s *OrderState) Order() *Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// Loading reports whether any request is outstanding.
func (s *OrderState) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// Err returns the error of the most recent request, or nil if it succeeded.
func (s *OrderState) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// InFlight reports whether a mutation keyed by key (a product or order ID) is running.
func (s *OrderState) InFlight(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[key]
	return ok
}

func (s *OrderState) begin() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

func (s *OrderState) finish(order *Order, replace bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	s.err = err
	if !replace || err != nil {
		return
	}
	// Responses can land out of order; an older copy of the same order
	// never replaces a newer one.
	if order != nil && s.order != nil && order.ID == s.order.ID && order.Version < s.order.Version {
		return
	}
	s.order = order
}

// LoadActive replaces the cache with the caller's active order, which may be nil.
func (s *OrderState) LoadActive(ctx context.Context) error {
	s.begin()
	order, err := s.client.ActiveOrder(ctx)
	s.finish(order, true, err)
	return err
}

// Refresh replaces the cache with the server's copy of orderID. On error, or
// when the cached copy has a higher version, the previous copy is kept.
func (s *OrderState) Refresh(ctx context.Context, orderID string) error {
	s.begin()
	order, err := s.client.GetOrder(ctx, orderID)
	s.finish(order, true, err)
	return err
}

func (s *OrderState) orderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return ""
	}
	return s.order.ID
}

// mutate runs call while key is marked in flight, then re-fetches the order
// it returned. Mutations are never retried.
func (s *OrderState) mutate(ctx context.Context, key string, call func(ctx context.Context) (*Order, error)) error {
	s.mu.Lock()
	if _, busy := s.inFlight[key]; busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.inFlight[key] = struct{}{}
	s.pending++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}()

	order, err := call(ctx)
	s.finish(nil, false, err)
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}
	return s.Refresh(ctx, order.ID)
}

// AddItem adds productID to the cached order, or to the active order when
// nothing is cached yet.
func (s *OrderState) AddItem(ctx context.Context, productID string, quantity int, instructions string) error {
	orderID := s.orderID()
	return s.mutate(ctx, productID, func(ctx context.Context) (*Order, error) {
		return s.client.AddItem(ctx, orderID, productID, quantity, instructions)
	})
}

// UpdateQuantity sets the quantity of productID on the cached order.
func (s *OrderState) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	orderID := s.orderID()
	return s.mutate(ctx, productID, func(ctx context.Context) (*Order, error) {
		return s.client.UpdateQuantity(ctx, orderID, productID, quantity)
	})
}

// RemoveItem drops productID from the cached order.
func (s *OrderState) RemoveItem(ctx context.Context, productID string) error {
	orderID := s.orderID()
	return s.mutate(ctx, productID, func(ctx context.Context) (*Order, error) {
		return s.client.RemoveItem(ctx, orderID, productID)
	})
}

// Advance moves the cached order one step forward.
func (s *OrderState) Advance(ctx context.Context, note string) error {
	orderID := s.orderID()
	return s.mutate(ctx, orderID, func(ctx context.Context) (*Order, error) {
		return s.client.Advance(ctx, orderID, note)
	})
}

// TransitionTo moves the cached order to status.
func (s *OrderState) TransitionTo(ctx context.Context, status models.OrderStatus, note string) error {
	orderID := s.orderID()
	return s.mutate(ctx, orderID, func(ctx context.Context) (*Order, error) {
		return s.client.SetStatus(ctx, orderID, status, note)
	})
}

// Cancel cancels the cached order.
func (s *OrderState) Cancel(ctx context.Context, reason string) error {
	orderID := s.orderID()
	return s.mutate(ctx, orderID, func(ctx context.Context) (*Order, error) {
		return s.client.Cancel(ctx, orderID, reason)
	})
}

// Poll re-fetches orderID every interval until ctx is done. Failed reads are
// kept in Err and retried on the next tick.
func (s *OrderState) Poll(ctx context.Context, orderID string, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = s.Refresh(ctx, orderID)
		}
	}
}
