// Package indexcache keeps built indexes in memory, keyed by fingerprint.
package indexcache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
	"github.com/ziadkadry99/pdf-inquiry/internal/index"
)

// BuildFunc produces the index for a fingerprint on a cache miss.
type BuildFunc func(ctx context.Context) (*index.Index, error)

// Cache maps fingerprints to built indexes for the life of the process.
// Entries are never evicted. At most one build runs per fingerprint at a
// time, and failed builds are not remembered.
type Cache struct {
	mu      sync.RWMutex
	entries map[fingerprint.Fingerprint]*index.Index
	group   singleflight.Group
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[fingerprint.Fingerprint]*index.Index)}
}

// Get returns the cached index for fp, if any.
func (c *Cache) Get(fp fingerprint.Fingerprint) (*index.Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ix, ok := c.entries[fp]
	return ix, ok
}

// GetOrBuild returns the cached index for fp, calling build if there is none.
// Concurrent callers for the same fingerprint share one build. The second
// return value reports whether the index was already cached.
func (c *Cache) GetOrBuild(ctx context.Context, fp fingerprint.Fingerprint, build BuildFunc) (*index.Index, bool, error) {
	if ix, ok := c.Get(fp); ok {
		return ix, true, nil
	}

	v, err, _ := c.group.Do(string(fp), func() (any, error) {
		if ix, ok := c.Get(fp); ok {
			return ix, nil
		}
		ix, err := build(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[fp] = ix
		c.mu.Unlock()
		return ix, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*index.Index), false, nil
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
