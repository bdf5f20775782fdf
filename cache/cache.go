// Package cache provides a generic, sha256-keyed in-memory cache, grounded
// on the teacher's cache.GenericCache (cache/cache.go). The original
// constrains CacheValue to string|options.IAMRoleOptions; this module has
// no equivalent value union, so the constraint generalizes to `any` and the
// cache is parameterized per call site instead.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
)

// GenericCache memoizes values under sha256-hashed string keys, so callers
// with long or sensitive natural keys (a plugin config's resolved download
// URL, say) get fixed-length, non-identifying cache keys.
type GenericCache[V any] struct {
	Cache map[string]V
	Mutex *sync.Mutex
}

// NewGenericCache creates an empty cache.
func NewGenericCache[V any]() *GenericCache[V] {
	return &GenericCache[V]{
		Cache: map[string]V{},
		Mutex: &sync.Mutex{},
	}
}

// Get returns the cached value for key, if present.
func (c *GenericCache[V]) Get(key string) (V, bool) {
	c.Mutex.Lock()
	defer c.Mutex.Unlock()

	cacheKey := hashKey(key)
	value, found := c.Cache[cacheKey]

	return value, found
}

// Put stores value under key.
func (c *GenericCache[V]) Put(key string, value V) {
	c.Mutex.Lock()
	defer c.Mutex.Unlock()

	c.Cache[hashKey(key)] = value
}

func hashKey(key string) string {
	keyHash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", keyHash)
}
