package rod

import (
	"sync/atomic"

	"github.com/go-rod/rod/lib/proto"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of sub-resources kept in a
// ResourceCache.
const DefaultCacheSize = 500

// maxCachedResourceSize is the largest body a ResourceCache will hold.
const maxCachedResourceSize = 5 << 20

// Resource is a cached sub-resource response.
type Resource struct {
	ContentType string
	Body        []byte
}

// ResourceCache is an LRU cache of scripts, stylesheets, fonts and images
// shared by all pages a Fetcher renders. Documentation sites load the same
// bundles on every page, so serving them locally saves most of the
// network round trips of a browser crawl.
//
// ResourceCache is safe for concurrent use.
type ResourceCache struct {
	entries *lru.Cache[string, Resource]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewResourceCache creates a cache holding at most size resources.
func NewResourceCache(size int) (*ResourceCache, error) {
	entries, err := lru.New[string, Resource](size)
	if err != nil {
		return nil, err
	}
	return &ResourceCache{entries: entries}, nil
}

// Get returns the resource cached under url.
func (c *ResourceCache) Get(url string) (Resource, bool) {
	r, ok := c.entries.Get(url)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return r, ok
}

// Add stores r under url. Oversized bodies are not cached.
func (c *ResourceCache) Add(url string, r Resource) bool {
	if len(r.Body) > maxCachedResourceSize {
		return false
	}
	c.entries.Add(url, r)
	return true
}

// Len returns the number of cached resources.
func (c *ResourceCache) Len() int {
	return c.entries.Len()
}

// Stats returns the number of cache hits and misses so far.
func (c *ResourceCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Cacheable reports whether requests of type t are served from the cache.
func Cacheable(t proto.NetworkResourceType) bool {
	switch t {
	case proto.NetworkResourceTypeScript,
		proto.NetworkResourceTypeStylesheet,
		proto.NetworkResourceTypeFont,
		proto.NetworkResourceTypeImage:
		return true
	}
	return false
}
