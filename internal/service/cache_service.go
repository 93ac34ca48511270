package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
)

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheMetrics interface {
	ObserveCache(hit bool)
}

// CacheService fronts Redis for the review-surface listings. Disabled caching
// degrades to a permanent miss so callers never branch on configuration.
type CacheService struct {
	store   cacheStore
	metrics cacheMetrics
	enabled bool
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCacheService wires the cache layer.
func NewCacheService(store cacheStore, metrics cacheMetrics, enabled bool, ttl time.Duration, logger *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, metrics: metrics, enabled: enabled, ttl: ttl, logger: logger}
}

// ProposalListKey builds the cache key for one run's proposal listing.
func ProposalListKey(runID string) string {
	return fmt.Sprintf("proposals:run:%s", runID)
}

// Get loads a cached value. Returns ErrCacheMiss when disabled or absent.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if s == nil || !s.enabled || s.store == nil {
		return appErrors.ErrCacheMiss
	}
	err := s.store.Get(ctx, key, dest)
	if s.metrics != nil {
		s.metrics.ObserveCache(err == nil)
	}
	return err
}

// Set stores a value; cache failures are logged, never surfaced.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if s == nil || !s.enabled || s.store == nil {
		return
	}
	if err := s.store.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateRun drops cached listings for a run after any proposal mutation.
func (s *CacheService) InvalidateRun(ctx context.Context, runID string) {
	if s == nil || !s.enabled || s.store == nil {
		return
	}
	if err := s.store.DeleteByPattern(ctx, ProposalListKey(runID)); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("run_id", runID), zap.Error(err))
	}
}
