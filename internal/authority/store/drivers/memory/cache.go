package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/aussiebroadwan/authority/internal/authority/store"
)

// Cache is a map-backed store.Cache. Values are copied on the way in and
// out so callers cannot alias stored bytes.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ store.Cache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{entries: make(map[string][]byte)}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok, nil
}

func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = bytes.Clone(value)
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
