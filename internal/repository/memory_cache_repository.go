package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

// MemoryCacheRepository is the in-process transient store used when Redis is unavailable.
// Values are stored JSON-encoded so behaviour matches the Redis store.
type MemoryCacheRepository struct {
	cache    *gocache.Cache
	counters sync.Mutex
}

// NewMemoryCacheRepository builds a store that sweeps expired keys every cleanupInterval.
func NewMemoryCacheRepository(cleanupInterval time.Duration) *MemoryCacheRepository {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryCacheRepository{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get loads the value stored under key into dest.
func (r *MemoryCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := r.cache.Get(key)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	payload, ok := raw.([]byte)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores value under key for ttl. A non-positive ttl never expires.
func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	r.cache.Set(key, payload, ttl)
	return nil
}

// IncrWithin counts one hit against a fixed window of limit hits. Counters are
// stored as raw int64 values, so Get reports them as misses.
func (r *MemoryCacheRepository) IncrWithin(_ context.Context, key string, limit int64, window time.Duration) (bool, time.Duration, error) {
	r.counters.Lock()
	defer r.counters.Unlock()

	if err := r.cache.Add(key, int64(1), window); err == nil {
		return true, window, nil
	}
	raw, expires, ok := r.cache.GetWithExpiration(key)
	count, isCounter := raw.(int64)
	if !ok || !isCounter {
		r.cache.Set(key, int64(1), window)
		return true, window, nil
	}
	remaining := window
	if !expires.IsZero() {
		remaining = time.Until(expires)
	}
	if count >= limit {
		return false, remaining, nil
	}
	if _, err := r.cache.IncrementInt64(key, 1); err != nil {
		return false, 0, fmt.Errorf("increment counter %s: %w", key, err)
	}
	return true, remaining, nil
}

// DeleteByPattern removes keys matching a glob pattern.
func (r *MemoryCacheRepository) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range r.cache.Items() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("match cache pattern %s: %w", pattern, err)
		}
		if matched {
			r.cache.Delete(key)
		}
	}
	return nil
}

// Ping always succeeds for the in-process store.
func (r *MemoryCacheRepository) Ping(context.Context) error {
	return nil
}
