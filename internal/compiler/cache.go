package compiler

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// TemplateCache holds compiled templates keyed by their literal segments.
// Entries live for the lifetime of the cache and are never evicted.
type TemplateCache struct {
	templates map[string]*Template
	mutex     sync.RWMutex

	hits   int64
	misses int64
}

// CacheStats is a snapshot of cache usage.
type CacheStats struct {
	Templates int
	Hits      int64
	Misses    int64
}

// NewTemplateCache creates an empty cache.
func NewTemplateCache() *TemplateCache {
	return &TemplateCache{templates: make(map[string]*Template)}
}

// Get returns the compiled template for segments, compiling it on first use.
// Compile errors are returned and not cached.
func (c *TemplateCache) Get(segments []string) (*Template, error) {
	t, _, err := c.Load(segments)
	return t, err
}

// Load is Get that also reports whether the template was already cached.
func (c *TemplateCache) Load(segments []string) (*Template, bool, error) {
	key := cacheKey(segments)

	c.mutex.RLock()
	t, ok := c.templates[key]
	c.mutex.RUnlock()
	if ok {
		atomic.AddInt64(&c.hits, 1)
		return t, true, nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Another caller may have compiled it while we waited for the lock.
	if t, ok := c.templates[key]; ok {
		atomic.AddInt64(&c.hits, 1)
		return t, true, nil
	}
	atomic.AddInt64(&c.misses, 1)

	t, err := Compile(segments)
	if err != nil {
		return nil, false, err
	}
	c.templates[key] = t
	return t, false, nil
}

// Len returns the number of cached templates.
func (c *TemplateCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.templates)
}

// Stats returns a snapshot of the cache counters.
func (c *TemplateCache) Stats() CacheStats {
	return CacheStats{
		Templates: c.Len(),
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
	}
}

// cacheKey length-prefixes every segment so that no two distinct segment
// sequences share a key.
func cacheKey(segments []string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}
