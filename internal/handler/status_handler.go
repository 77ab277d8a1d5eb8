package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/frontdesk-api/internal/dto"
	"github.com/noah-isme/frontdesk-api/internal/middleware"
	"github.com/noah-isme/frontdesk-api/internal/models"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
	"github.com/noah-isme/frontdesk-api/pkg/response"
)

type statusService interface {
	GetStatus(ctx context.Context, visitorID string) (models.PendingStatus, bool, error)
	GetStatusBatch(ctx context.Context, visitorIDs []string) (map[string]models.PendingStatus, error)
}

// StatusHandler answers pending request status lookups.
type StatusHandler struct {
	service statusService
}

// NewStatusHandler constructs the handler.
func NewStatusHandler(service statusService) *StatusHandler {
	return &StatusHandler{service: service}
}

// Get godoc
// @Summary Pending request status of a visitor
// @Tags Status
// @Produce json
// @Param id path string true "Visitor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /deletion-requests/visitor/{id}/status [get]
func (h *StatusHandler) Get(c *gin.Context) {
	status, hit, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, status, nil, middleware.ExtractMeta(c))
}

// Batch godoc
// @Summary Pending request status of many visitors
// @Description Never fails for store errors; affected visitors get the default status.
// @Tags Status
// @Accept json
// @Produce json
// @Param payload body dto.BatchStatusRequest true "Visitor IDs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /batch-status-check [post]
func (h *StatusHandler) Batch(c *gin.Context) {
	var req dto.BatchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch payload"))
		return
	}
	statuses, err := h.service.GetStatusBatch(c.Request.Context(), req.VisitorIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}
