package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/frontdesk-api/internal/dto"
	"github.com/noah-isme/frontdesk-api/internal/models"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
	"github.com/noah-isme/frontdesk-api/pkg/response"
)

type visitorRequestService interface {
	CreateDeletionRequest(ctx context.Context, actor *models.JWTClaims, visitorID, reason string) (*models.VisitorRequest, error)
	CreateEditRequest(ctx context.Context, actor *models.JWTClaims, visitorID, reason string, proposed map[string]json.RawMessage) (*models.VisitorRequest, error)
	List(ctx context.Context, actor *models.JWTClaims, query dto.RequestQuery) ([]models.VisitorRequest, *models.Pagination, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.VisitorRequest, error)
}

type approvalService interface {
	Approve(ctx context.Context, actor *models.JWTClaims, expected models.RequestType, id string) (*models.ResolvedRequest, error)
	Reject(ctx context.Context, actor *models.JWTClaims, expected models.RequestType, id, reason string) (*models.VisitorRequest, error)
}

// VisitorRequestHandler exposes the edit/deletion request workflow.
type VisitorRequestHandler struct {
	requests  visitorRequestService
	approvals approvalService
}

// NewVisitorRequestHandler constructs the handler.
func NewVisitorRequestHandler(requests visitorRequestService, approvals approvalService) *VisitorRequestHandler {
	return &VisitorRequestHandler{requests: requests, approvals: approvals}
}

// CreateDeletion godoc
// @Summary Request deletion of a visitor record
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateDeletionRequest true "Deletion request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /deletion-request [post]
func (h *VisitorRequestHandler) CreateDeletion(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid deletion request payload"))
		return
	}
	created, err := h.requests.CreateDeletionRequest(c.Request.Context(), claims, req.VisitorID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, created, nil)
}

// CreateEdit godoc
// @Summary Propose changes to a visitor record
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateEditRequest true "Edit request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /edit-request [post]
func (h *VisitorRequestHandler) CreateEdit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid edit request payload"))
		return
	}
	created, err := h.requests.CreateEditRequest(c.Request.Context(), claims, req.VisitorID, req.Reason, req.ProposedChanges)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, created, nil)
}

// ApproveDeletion godoc
// @Summary Approve a deletion request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approve-deletion/{id} [post]
func (h *VisitorRequestHandler) ApproveDeletion(c *gin.Context) {
	h.approve(c, models.RequestTypeDeletion)
}

// ApproveEdit godoc
// @Summary Approve an edit request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approve-edit/{id} [post]
func (h *VisitorRequestHandler) ApproveEdit(c *gin.Context) {
	h.approve(c, models.RequestTypeEdit)
}

func (h *VisitorRequestHandler) approve(c *gin.Context, reqType models.RequestType) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	resolved, err := h.approvals.Approve(c.Request.Context(), claims, reqType, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resolved, nil)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags Requests
// @Accept json
// @Produce json
// @Param type path string true "deletion or edit"
// @Param id path string true "Request ID"
// @Param payload body dto.RejectRequest false "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reject/{type}/{id} [post]
func (h *VisitorRequestHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reqType := models.RequestType(strings.ToLower(c.Param("type")))
	if !reqType.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown request type"))
		return
	}
	var req dto.RejectRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reject payload"))
		return
	}
	rejected, err := h.approvals.Reject(c.Request.Context(), claims, reqType, c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rejected, nil)
}

// List godoc
// @Summary List edit and deletion requests
// @Tags Requests
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param type query string false "deletion or edit"
// @Param visitor_id query string false "Visitor ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *VisitorRequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.RequestQuery{
		Type:      models.RequestType(strings.ToLower(strings.TrimSpace(c.Query("type")))),
		VisitorID: strings.TrimSpace(c.Query("visitor_id")),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			query.Status = append(query.Status, models.RequestStatus(part))
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil {
		query.PageSize = size
	}
	requests, pagination, err := h.requests.List(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get request detail
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *VisitorRequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req, err := h.requests.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}
