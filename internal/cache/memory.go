package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is an in-process Cache used when no Redis address is configured.
type MemoryCache struct {
	serviceName string
	entries     map[string]entry
	mu          sync.Mutex
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache(serviceName string) *MemoryCache {
	return &MemoryCache{
		serviceName: serviceName,
		entries:     make(map[string]entry),
	}
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.entries[key] = entry{value: v, expires: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if time.Now().After(e.expires) {
		delete(m.entries, key)
		return nil, nil
	}
	return e.value, nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", m.serviceName, operation, key)
}
