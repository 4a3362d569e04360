package generation

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
)

// Cache stores generation results for reuse within a single invocation.
// It is always an explicit, injectable object so concurrent suite runs stay
// isolated and tests stay deterministic.
type Cache interface {
	Get(key string) (*Result, bool)
	Put(key string, result *Result)
}

// MemoryCache is an in-memory Cache whose lifetime is bound to one invocation
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Result
}

// NewMemoryCache creates an empty MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Result)}
}

// Get implements Cache
func (c *MemoryCache) Get(key string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.entries[key]
	return result, ok
}

// Put implements Cache
func (c *MemoryCache) Put(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
}

// Len returns the number of cached results
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheKey derives the cache key for one generation request
func CacheKey(skillName, scenarioName, prompt string) string {
	return fmt.Sprintf("%s/%s/%x", skillName, scenarioName, sha256.Sum256([]byte(prompt)))
}

// cachedClient wraps a Client with result caching
type cachedClient struct {
	inner Client
	cache Cache
}

// WithCache wraps a client so repeated requests for the same
// (skill, scenario, prompt) reuse the first result
func WithCache(client Client, cache Cache) Client {
	return &cachedClient{inner: client, cache: cache}
}

// Name implements Client
func (c *cachedClient) Name() string {
	return c.inner.Name()
}

// Generate implements Client. Failures are never cached.
func (c *cachedClient) Generate(ctx context.Context, req Request) (*Result, error) {
	key := CacheKey(req.SkillName, req.ScenarioName, req.Prompt)
	if result, ok := c.cache.Get(key); ok {
		return result, nil
	}

	result, err := c.inner.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	c.cache.Put(key, result)
	return result, nil
}
