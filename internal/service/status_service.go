package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/frontdesk-api/internal/models"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

const (
	defaultBatchMaxIDs      = 200
	defaultBatchConcurrency = 8
)

type pendingRequestReader interface {
	FindPendingByVisitor(ctx context.Context, visitorID string) (*models.VisitorRequest, error)
	FindPendingByVisitors(ctx context.Context, visitorIDs []string) ([]models.VisitorRequest, error)
}

// StatusServiceConfig tunes status lookups.
type StatusServiceConfig struct {
	BatchMaxIDs      int
	BatchConcurrency int
	CacheTTL         time.Duration
	Breaker          StatusBreakerConfig
}

// StatusService projects the pending request state of visitors.
type StatusService struct {
	visitors visitorReader
	requests pendingRequestReader
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	breaker  *gobreaker.CircuitBreaker[interface{}]
	cfg      StatusServiceConfig
}

// NewStatusService constructs the status projection.
func NewStatusService(visitors visitorReader, requests pendingRequestReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg StatusServiceConfig) *StatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchMaxIDs <= 0 {
		cfg.BatchMaxIDs = defaultBatchMaxIDs
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = defaultBatchConcurrency
	}
	return &StatusService{
		visitors: visitors,
		requests: requests,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		breaker:  newStatusBreaker(cfg.Breaker, logger, metrics),
		cfg:      cfg,
	}
}

// GetStatus returns the pending status of one visitor. The boolean reports a cache hit.
func (s *StatusService) GetStatus(ctx context.Context, visitorID string) (models.PendingStatus, bool, error) {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return models.PendingStatus{}, false, appErrors.Clone(appErrors.ErrValidation, "visitor id is required")
	}

	var status models.PendingStatus
	key, cacheable := s.cache.StatusKey(ctx, visitorID)
	if cacheable {
		if hit, _ := s.cache.Get(ctx, key, &status); hit {
			return status, true, nil
		}
	}

	if _, err := s.visitors.FindByID(ctx, visitorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PendingStatus{}, false, appErrors.Clone(appErrors.ErrNotFound, "visitor not found")
		}
		return models.PendingStatus{}, false, internalError(err, "failed to load visitor")
	}
	pending, err := s.requests.FindPendingByVisitor(ctx, visitorID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.PendingStatus{}, false, internalError(err, "failed to load pending request")
	}
	status = models.StatusFromPending(pending)
	if cacheable {
		_ = s.cache.Set(ctx, key, status, s.cfg.CacheTTL)
	}
	return status, false, nil
}

// GetStatusBatch returns a status entry for every distinct id. Store failures degrade
// affected ids to the default status instead of failing the call.
func (s *StatusService) GetStatusBatch(ctx context.Context, visitorIDs []string) (map[string]models.PendingStatus, error) {
	ids := uniqueIDs(visitorIDs)
	if len(ids) > s.cfg.BatchMaxIDs {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d visitor ids per batch", s.cfg.BatchMaxIDs))
	}
	result := make(map[string]models.PendingStatus, len(ids))
	for _, id := range ids {
		result[id] = models.PendingStatus{}
	}
	if len(ids) == 0 {
		return result, nil
	}

	pending, err := s.bulkPending(ctx, ids)
	if err == nil {
		for i := range pending {
			if _, ok := result[pending[i].VisitorID]; ok {
				result[pending[i].VisitorID] = models.StatusFromPending(&pending[i])
			}
		}
		return result, nil
	}
	s.logger.Warn("bulk status lookup failed, falling back to per-visitor lookups",
		zap.Int("visitors", len(ids)), zap.Error(err))

	failed := s.fillIndividually(ctx, ids, result)
	if failed > 0 {
		s.metrics.RecordStatusDegraded(failed)
		s.logger.Warn("status lookups degraded to default", zap.Int("failed", failed), zap.Int("visitors", len(ids)))
	}
	return result, nil
}

// bulkPending runs the single-query lookup behind the breaker. Per-visitor fallback
// lookups never count toward it.
func (s *StatusService) bulkPending(ctx context.Context, ids []string) ([]models.VisitorRequest, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.requests.FindPendingByVisitors(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	pending, _ := out.([]models.VisitorRequest)
	return pending, nil
}

func (s *StatusService) fillIndividually(ctx context.Context, ids []string, result map[string]models.PendingStatus) int {
	var (
		mu     sync.Mutex
		failed int
		g      errgroup.Group
	)
	g.SetLimit(s.cfg.BatchConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			req, err := s.requests.FindPendingByVisitor(ctx, id)
			if errors.Is(err, sql.ErrNoRows) {
				req, err = nil, nil
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				s.logger.Debug("status lookup failed", zap.String("visitor_id", id), zap.Error(err))
				return nil
			}
			result[id] = models.StatusFromPending(req)
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
