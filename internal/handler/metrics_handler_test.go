package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/frontdesk-api/internal/models"
	"github.com/noah-isme/frontdesk-api/internal/service"
)

type pingerStub struct {
	err error
}

func (p pingerStub) PingContext(ctx context.Context) error {
	return p.err
}

func TestMetricsHandlerReady(t *testing.T) {
	handler := NewMetricsHandler(service.NewMetricsService(), pingerStub{})
	c, w := newTestContext(http.MethodGet, "/ready", nil, nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	handler = NewMetricsHandler(service.NewMetricsService(), pingerStub{err: errors.New("connection refused")})
	c, w = newTestContext(http.MethodGet, "/ready", nil, nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerPrometheusExposesWorkflowCounters(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordRequestEvent(models.RequestTypeDeletion, service.OutcomeCreated)
	handler := NewMetricsHandler(metrics, pingerStub{})
	c, w := newTestContext(http.MethodGet, "/metrics", nil, nil)

	handler.Prometheus(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `visitor_request_events_total{outcome="created",type="deletion"} 1`)
}

func TestMetricsHandlerSummary(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordStatusDegraded(3)
	handler := NewMetricsHandler(metrics, pingerStub{})
	c, w := newTestContext(http.MethodGet, "/metrics/summary", nil, admin())

	handler.Summary(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"degradedStatusLookups":3`)
}
