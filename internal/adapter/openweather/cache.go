package openweather

import (
	"container/list"
	"context"
	"sync"

	"github.com/couchcryptid/country-lookup/internal/domain"
	"github.com/couchcryptid/country-lookup/internal/observability"
)

// CachedIconFetcher wraps an IconFetcher with an in-memory LRU cache. Icon
// images never change for a given code, so entries are never invalidated.
type CachedIconFetcher struct {
	inner   domain.IconFetcher
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedIconFetcher creates a cache decorator around an icon fetcher.
func NewCachedIconFetcher(inner domain.IconFetcher, maxEntries int, metrics *observability.Metrics) *CachedIconFetcher {
	return &CachedIconFetcher{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedIconFetcher) FetchIcon(ctx context.Context, code string) ([]byte, error) {
	if data, ok := c.cache.get(code); ok {
		c.metrics.IconCache.WithLabelValues("hit").Inc()
		return data, nil
	}
	c.metrics.IconCache.WithLabelValues("miss").Inc()

	data, err := c.inner.FetchIcon(ctx, code)
	if err != nil {
		return nil, err
	}
	c.cache.put(code, data)
	return data, nil
}

// lruCache is a small thread-safe LRU keyed by icon code.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type entry struct {
	key   string
	value []byte
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
