package service

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const statusBreakerName = "visitor-status-store"

// StatusBreakerConfig tunes the breaker guarding batch status reads.
type StatusBreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
}

func newStatusBreaker(cfg StatusBreakerConfig, logger *zap.Logger, metrics *MetricsService) *gobreaker.CircuitBreaker[interface{}] {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	metrics.SetBreakerOpen(false)
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        statusBreakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("status breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SetBreakerOpen(to == gobreaker.StateOpen)
		},
	})
}
