// Package resultcache caches provider responses shared by every session.
package resultcache

import (
	"context"
	"strings"
	"time"

	"github.com/txn2/live-search/pkg/cache"
	"github.com/txn2/live-search/pkg/search"
)

// Defaults.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 1000
)

// Config configures the cache.
type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// Key identifies a cached response.
type Key struct {
	Query    string
	SortBy   search.SortBy
	PageSize int
}

// KeyFor builds the cache key for a page-1 request. The query is trimmed but
// case is preserved because providers may treat it as significant.
func KeyFor(req search.Request) Key {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = search.DefaultPageSize
	}
	sortBy := req.SortBy
	if !sortBy.Valid() {
		sortBy = search.SortPublishedAt
	}
	return Key{Query: strings.TrimSpace(req.Query), SortBy: sortBy, PageSize: pageSize}
}

// Cache is a TTL cache of successful, non-empty provider responses.
type Cache struct {
	entries *cache.Map[Key, *search.Response]
}

// New creates a Cache. Zero config values select the defaults.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries: cache.New[Key, *search.Response](cache.Config{
			TTL:        cfg.TTL,
			MaxEntries: cfg.MaxEntries,
		}),
	}
}

// Get returns a live cached response.
func (c *Cache) Get(key Key) (*search.Response, bool) {
	return c.entries.Get(key)
}

// Put stores resp. Nil and empty responses are ignored so the next identical
// request goes back to the provider. It reports whether resp was stored.
func (c *Cache) Put(key Key, resp *search.Response) bool {
	if resp.Empty() {
		return false
	}
	c.entries.Set(key, resp)
	return true
}

// Fetch serves req from the cache, or calls the provider and caches a
// non-empty result. hit reports whether the provider was skipped. Only page 1
// is cached; later pages always reach the provider.
func (c *Cache) Fetch(ctx context.Context, p search.Provider, req search.Request) (resp *search.Response, hit bool, err error) {
	cacheable := req.Page <= 1
	key := KeyFor(req)
	if cacheable {
		if cached, ok := c.Get(key); ok {
			return cached, true, nil
		}
	}

	resp, err = p.Search(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if cacheable {
		c.Put(key, resp)
	}
	return resp, false, nil
}

// Len returns the number of cached responses.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// StartCleanupRoutine periodically drops expired responses until Close.
func (c *Cache) StartCleanupRoutine(interval time.Duration) {
	c.entries.StartCleanupRoutine(interval)
}

// Close stops the cleanup routine.
func (c *Cache) Close() error {
	return c.entries.Close()
}
