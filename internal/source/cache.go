package source

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2"

	"github.com/Swind/go-display-runner/core"
)

// cacheKey changes whenever the file is rewritten.
type cacheKey struct {
	path    string
	size    int64
	modTime time.Time
}

// DecodeCache keeps recently decoded image files. Frames it returns are
// shared and must not be modified.
type DecodeCache struct {
	cache  *lru.Cache[cacheKey, *core.Frame]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewDecodeCache creates a cache holding up to size frames.
func NewDecodeCache(size int) (*DecodeCache, error) {
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New[cacheKey, *core.Frame](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &DecodeCache{cache: cache}, nil
}

// Load returns the decoded frame for path, decoding it only if the file
// changed since it was cached.
func (c *DecodeCache) Load(path string) (*core.Frame, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := cacheKey{path: path, size: info.Size(), modTime: info.ModTime()}

	if frame, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return frame, nil
	}
	c.misses.Add(1)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	frame, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.cache.Add(key, frame)
	return frame, nil
}

// Stats returns hit and miss counts.
func (c *DecodeCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached frames.
func (c *DecodeCache) Len() int {
	return c.cache.Len()
}
