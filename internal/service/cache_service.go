package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
)

const defaultCacheTTL = 5 * time.Minute

// CacheRepository abstracts the transient key/value store (Redis or in-memory).
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheServiceParams configures a CacheService. A nil Store disables caching.
type CacheServiceParams struct {
	Store    CacheRepository
	Metrics  *MetricsService
	TTL      time.Duration
	Logger   *zap.Logger
	Disabled bool
}

// CacheService is a best-effort read-through layer: store failures are
// logged and reported, never fatal to the caller.
type CacheService struct {
	store   CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	off     bool
	flight  singleflight.Group
}

func NewCacheService(params CacheServiceParams) *CacheService {
	svc := &CacheService{
		store:   params.Store,
		metrics: params.Metrics,
		ttl:     params.TTL,
		logger:  params.Logger,
		off:     params.Disabled || params.Store == nil,
	}
	if svc.ttl <= 0 {
		svc.ttl = defaultCacheTTL
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

func (s *CacheService) Enabled() bool {
	return s != nil && !s.off
}

// Get decodes key into dest and reports whether it was present. A miss is
// not an error.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	began := time.Now()
	err := s.store.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(began))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	}
	s.logger.Warn("transient store read failed", zap.String("key", key), zap.Error(err))
	return false, err
}

// Set writes value under key. ttl <= 0 uses the configured default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	began := time.Now()
	err := s.store.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(began))
	if err != nil {
		s.logger.Warn("transient store write failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Remember fills dest from key, or from load on a miss and then caches it.
// Concurrent misses on one key run a single load; the other callers re-read
// the stored value and only load themselves if that read misses.
func (s *CacheService) Remember(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func(ctx context.Context) error) error {
	if !s.Enabled() {
		return load(ctx)
	}
	if hit, _ := s.Get(ctx, key, dest); hit {
		return nil
	}

	var loadedHere bool
	_, err, _ := s.flight.Do(key, func() (interface{}, error) {
		loadedHere = true
		if err := load(ctx); err != nil {
			return nil, err
		}
		_ = s.Set(ctx, key, dest, ttl)
		return nil, nil
	})
	if loadedHere || err != nil {
		return err
	}
	if hit, _ := s.Get(ctx, key, dest); hit {
		return nil
	}
	return load(ctx)
}

// Invalidate drops every key matching pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	err := s.store.DeleteByPattern(ctx, pattern)
	if err != nil {
		s.logger.Warn("transient store invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
	return err
}
