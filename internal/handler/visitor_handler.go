package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/frontdesk-api/internal/dto"
	"github.com/noah-isme/frontdesk-api/internal/models"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
	"github.com/noah-isme/frontdesk-api/pkg/response"
)

type visitorService interface {
	CheckIn(ctx context.Context, actor *models.JWTClaims, req dto.CheckInRequest) (*models.VisitorRecord, error)
	List(ctx context.Context, actor *models.JWTClaims, query dto.VisitorQuery) ([]models.VisitorRecord, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.VisitorRecord, error)
	Checkout(ctx context.Context, actor *models.JWTClaims, id string, req dto.CheckoutRequest) (*models.VisitorRecord, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, payload map[string]json.RawMessage) (*models.VisitorRecord, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id, reason string) (*dto.DeleteVisitorResult, error)
	History(ctx context.Context, id string) ([]models.EditHistoryEntry, error)
}

// VisitorHandler exposes the visitor record endpoints.
type VisitorHandler struct {
	service visitorService
}

// NewVisitorHandler constructs the handler.
func NewVisitorHandler(service visitorService) *VisitorHandler {
	return &VisitorHandler{service: service}
}

// CheckIn godoc
// @Summary Check in a visitor
// @Tags Visitors
// @Accept json
// @Produce json
// @Param payload body dto.CheckInRequest true "Visitor details"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /visitors [post]
func (h *VisitorHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid visitor payload"))
		return
	}
	visitor, err := h.service.CheckIn(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, visitor)
}

// List godoc
// @Summary List visitors
// @Tags Visitors
// @Produce json
// @Param search query string false "Name, phone or institution"
// @Param status query string false "checked_in or checked_out"
// @Param include_deleted query bool false "Include soft-deleted records (admin only)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /visitors [get]
func (h *VisitorHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.VisitorQuery{
		Search: strings.TrimSpace(c.Query("search")),
		Status: strings.TrimSpace(c.Query("status")),
	}
	if raw := c.Query("include_deleted"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "include_deleted must be a boolean"))
			return
		}
		query.IncludeDeleted = include
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		query.PageSize = size
	}
	visitors, pagination, err := h.service.List(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitors, pagination)
}

// Get godoc
// @Summary Get visitor detail
// @Tags Visitors
// @Produce json
// @Param id path string true "Visitor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /visitors/{id} [get]
func (h *VisitorHandler) Get(c *gin.Context) {
	visitor, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}

// Checkout godoc
// @Summary Check out a visitor
// @Tags Visitors
// @Accept json
// @Produce json
// @Param id path string true "Visitor ID"
// @Param payload body dto.CheckoutRequest false "Document details"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visitors/{id}/checkout [post]
func (h *VisitorHandler) Checkout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CheckoutRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid checkout payload"))
		return
	}
	visitor, err := h.service.Checkout(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}

// Update godoc
// @Summary Edit a visitor record directly
// @Description Owners and administrators only. Other staff submit an edit request.
// @Tags Visitors
// @Accept json
// @Produce json
// @Param id path string true "Visitor ID"
// @Param payload body object true "Field changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /visitors/{id} [put]
func (h *VisitorHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload map[string]json.RawMessage
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid visitor payload"))
		return
	}
	visitor, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitor, nil)
}

// Delete godoc
// @Summary Delete a visitor record
// @Description Owners and administrators delete directly. Other staff with a reason get a pending deletion request (202).
// @Tags Visitors
// @Accept json
// @Produce json
// @Param id path string true "Visitor ID"
// @Param payload body dto.DeleteVisitorRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /visitors/{id} [delete]
func (h *VisitorHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DeleteVisitorRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid delete payload"))
		return
	}
	result, err := h.service.Delete(c.Request.Context(), claims, c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Deleted {
		response.Accepted(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Visitor edit history
// @Tags Visitors
// @Produce json
// @Param id path string true "Visitor ID"
// @Success 200 {object} response.Envelope
// @Router /visitors/{id}/history [get]
func (h *VisitorHandler) History(c *gin.Context) {
	entries, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// bindOptionalJSON binds a body when one was sent.
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
