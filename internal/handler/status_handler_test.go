package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/frontdesk-api/internal/middleware"
	"github.com/noah-isme/frontdesk-api/internal/models"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

type statusServiceMock struct {
	status   models.PendingStatus
	hit      bool
	batchIDs []string
	err      error
}

func (m *statusServiceMock) GetStatus(ctx context.Context, visitorID string) (models.PendingStatus, bool, error) {
	return m.status, m.hit, m.err
}

func (m *statusServiceMock) GetStatusBatch(ctx context.Context, visitorIDs []string) (map[string]models.PendingStatus, error) {
	m.batchIDs = visitorIDs
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]models.PendingStatus, len(visitorIDs))
	for _, id := range visitorIDs {
		out[id] = models.PendingStatus{}
	}
	return out, nil
}

func TestStatusHandlerGetReportsCacheHit(t *testing.T) {
	svc := &statusServiceMock{
		status: models.PendingStatus{HasPendingDeletion: true, DeletionRequest: &models.RequestSummary{ID: "req-1", Type: models.RequestTypeDeletion}},
		hit:    true,
	}
	handler := NewStatusHandler(svc)
	c, w := newTestContext(http.MethodGet, "/deletion-requests/visitor/v-1/status", nil, receptionist(), gin.Param{Key: "id", Value: "v-1"})

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get(middleware.CacheHeader))

	var envelope struct {
		Data models.PendingStatus   `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.HasPendingDeletion)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestStatusHandlerGetSerializesNullDeletionRequest(t *testing.T) {
	handler := NewStatusHandler(&statusServiceMock{})
	c, w := newTestContext(http.MethodGet, "/deletion-requests/visitor/v-1/status", nil, receptionist(), gin.Param{Key: "id", Value: "v-1"})

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get(middleware.CacheHeader))
	assert.Contains(t, w.Body.String(), `"deletionRequest":null`)
}

func TestStatusHandlerGetNotFound(t *testing.T) {
	handler := NewStatusHandler(&statusServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "visitor not found")})
	c, w := newTestContext(http.MethodGet, "/deletion-requests/visitor/missing/status", nil, receptionist(), gin.Param{Key: "id", Value: "missing"})

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get(middleware.CacheHeader))
}

func TestStatusHandlerBatch(t *testing.T) {
	svc := &statusServiceMock{}
	handler := NewStatusHandler(svc)
	c, w := newTestContext(http.MethodPost, "/batch-status-check", []byte(`{"visitorIds":["v-1","v-2"]}`), receptionist())

	handler.Batch(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"v-1", "v-2"}, svc.batchIDs)

	var envelope struct {
		Data map[string]models.PendingStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 2)
}

func TestStatusHandlerBatchTooMany(t *testing.T) {
	handler := NewStatusHandler(&statusServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "too many visitor ids")})
	c, w := newTestContext(http.MethodPost, "/batch-status-check", []byte(`{"visitorIds":["v-1"]}`), receptionist())

	handler.Batch(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusHandlerBatchInvalidBody(t *testing.T) {
	handler := NewStatusHandler(&statusServiceMock{})
	c, w := newTestContext(http.MethodPost, "/batch-status-check", []byte(`{"visitorIds":"v-1"}`), receptionist())

	handler.Batch(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
