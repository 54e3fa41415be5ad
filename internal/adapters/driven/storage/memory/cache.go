package memory

import (
	"container/list"
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

// DefaultCacheCapacity is the entry limit used when capacity is not positive.
const DefaultCacheCapacity = 10000

// Ensure EmbeddingCache implements the interface.
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

// EmbeddingCache is a bounded LRU implementation of driven.EmbeddingCache.
type EmbeddingCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[cacheKey]*list.Element
}

type cacheKey struct {
	model string
	key   string
}

type cacheItem struct {
	key    cacheKey
	vector []float32
}

// NewEmbeddingCache creates an LRU cache holding at most capacity vectors.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &EmbeddingCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[cacheKey]*list.Element),
	}
}

// Get returns the cached vector for key under model.
func (c *EmbeddingCache) Get(_ context.Context, model, key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[cacheKey{model, key}]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return slices.Clone(el.Value.(*cacheItem).vector), true
}

// Put stores a vector for key under model, evicting the least recently used entry when full.
func (c *EmbeddingCache) Put(_ context.Context, model, key string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{model, key}
	if el, ok := c.items[k]; ok {
		el.Value.(*cacheItem).vector = slices.Clone(vector)
		c.order.MoveToFront(el)
		return nil
	}
	c.items[k] = c.order.PushFront(&cacheItem{key: k, vector: slices.Clone(vector)})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheItem).key)
	}
	return nil
}

// Len returns the number of cached vectors.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
