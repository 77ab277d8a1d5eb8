package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const (
	statusCachePrefix      = "visitor:status:"
	statusGenerationPrefix = "visitor:status-gen:"
	minGenerationTTL       = 24 * time.Hour
)

// StatusCacheKey is the cache key holding the pending status of one visitor at a given
// invalidation generation.
func StatusCacheKey(visitorID string, generation int64) string {
	return fmt.Sprintf("%s%s:%d", statusCachePrefix, visitorID, generation)
}

func statusGenerationKey(visitorID string) string {
	return statusGenerationPrefix + visitorID
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo          CacheRepository
	metrics       *MetricsService
	defaultTTL    time.Duration
	generationTTL time.Duration
	logger        *zap.Logger
	enabled       bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	generationTTL := minGenerationTTL
	if 2*defaultTTL > generationTTL {
		generationTTL = 2 * defaultTTL
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, generationTTL: generationTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// StatusKey resolves the cache key for the current generation of a visitor's status.
// It reports false when the generation cannot be read; callers then skip the cache.
func (s *CacheService) StatusKey(ctx context.Context, visitorID string) (string, bool) {
	if !s.Enabled() {
		return "", false
	}
	var generation int64
	if err := s.repo.Get(ctx, statusGenerationKey(visitorID), &generation); err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache generation read failed", zap.String("visitor_id", visitorID), zap.Error(err))
		return "", false
	}
	return StatusCacheKey(visitorID, generation), true
}

// InvalidateVisitor retires the cached status of a visitor by bumping its generation.
// Entries written by reads that started before the bump land under the old key and are
// never served. Failures are logged and otherwise ignored; the TTL bounds staleness.
func (s *CacheService) InvalidateVisitor(ctx context.Context, visitorID string) {
	if !s.Enabled() {
		return
	}
	if _, err := s.repo.Incr(ctx, statusGenerationKey(visitorID), s.generationTTL); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("visitor_id", visitorID), zap.Error(err))
	}
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// Flush removes every cached visitor status.
func (s *CacheService) Flush(ctx context.Context) error {
	return s.Invalidate(ctx, statusCachePrefix+"*")
}
