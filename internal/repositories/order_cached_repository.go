package repositories

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"bistro/internal/cache"
	"bistro/internal/models"
)

// CachedOrderRepository serves GetByID from a cache and evicts the entry on
// every write. All other calls go straight to the wrapped repository.
//
// A fill that overlaps a write is dropped: writes bumps on every eviction and
// a read only keeps its cache entry if the counter did not move while it ran.
type CachedOrderRepository struct {
	OrderRepository
	cache  cache.Cache
	ttl    time.Duration
	writes atomic.Uint64
}

// NewCachedOrderRepository wraps next with a read cache.
func NewCachedOrderRepository(next OrderRepository, c cache.Cache, ttl time.Duration) *CachedOrderRepository {
	return &CachedOrderRepository{
		OrderRepository: next,
		cache:           c,
		ttl:             ttl,
	}
}

func (r *CachedOrderRepository) key(id string) string {
	return r.cache.GenerateKey("order", id)
}

// GetByID returns the cached order when present.
func (r *CachedOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	if raw, err := r.cache.Get(ctx, r.key(id)); err != nil {
		log.Printf("Order cache read failed for %s: %v", id, err)
	} else if raw != nil {
		var order models.Order
		if err := json.Unmarshal(raw, &order); err == nil {
			return &order, nil
		}
		log.Printf("Discarding undecodable cache entry for order %s", id)
	}

	seen := r.writes.Load()
	order, err := r.OrderRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.fill(ctx, order, seen)
	return order, nil
}

// GetByIDUncached reads the wrapped repository without touching the cache.
func (r *CachedOrderRepository) GetByIDUncached(ctx context.Context, id string) (*models.Order, error) {
	return r.OrderRepository.GetByID(ctx, id)
}

func (r *CachedOrderRepository) fill(ctx context.Context, order *models.Order, seen uint64) {
	if r.writes.Load() != seen {
		return
	}
	raw, err := json.Marshal(order)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, r.key(order.ID), raw, r.ttl); err != nil {
		log.Printf("Order cache write failed for %s: %v", order.ID, err)
		return
	}
	// An eviction may have slipped in between the check and the Set.
	if r.writes.Load() != seen {
		r.evict(ctx, order.ID)
	}
}

// Create stores the order and clears any stale entry for its ID.
func (r *CachedOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.OrderRepository.Create(ctx, order); err != nil {
		return err
	}
	r.evict(ctx, order.ID)
	return nil
}

// Save evicts the cached copy whether or not the write succeeded, so a
// conflict is never answered from a stale entry.
func (r *CachedOrderRepository) Save(ctx context.Context, order *models.Order) error {
	err := r.OrderRepository.Save(ctx, order)
	r.evict(ctx, order.ID)
	return err
}

func (r *CachedOrderRepository) evict(ctx context.Context, id string) {
	r.writes.Add(1)
	if err := r.cache.Delete(ctx, r.key(id)); err != nil {
		log.Printf("Order cache eviction failed for %s: %v", id, err)
	}
}
