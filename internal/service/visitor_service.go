package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/frontdesk-api/internal/dto"
	"github.com/noah-isme/frontdesk-api/internal/models"
	"github.com/noah-isme/frontdesk-api/internal/repository"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

type visitorStore interface {
	Create(ctx context.Context, visitor *models.VisitorRecord) error
	FindByID(ctx context.Context, id string) (*models.VisitorRecord, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.VisitorRecord, error)
	List(ctx context.Context, filter models.VisitorFilter) ([]models.VisitorRecord, int, error)
	Update(ctx context.Context, exec sqlx.ExtContext, visitor *models.VisitorRecord) error
	Checkout(ctx context.Context, visitor *models.VisitorRecord) error
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, deletedAt time.Time) error
}

type editHistoryStore interface {
	editHistoryWriter
	ListByVisitor(ctx context.Context, visitorID string) ([]models.EditHistoryEntry, error)
}

type pendingRequestStore interface {
	FindPendingByVisitor(ctx context.Context, visitorID string) (*models.VisitorRequest, error)
	Resolve(ctx context.Context, exec sqlx.ExtContext, params repository.ResolveRequestParams) error
}

// SupersededByDeleteReason is recorded on pending requests rejected by a direct delete.
const SupersededByDeleteReason = "visitor record deleted directly"

type deletionRequester interface {
	CreateDeletionRequest(ctx context.Context, actor *models.JWTClaims, visitorID, reason string) (*models.VisitorRequest, error)
}

// VisitorService manages visitor records and their direct edit and delete paths.
type VisitorService struct {
	tx        txProvider
	visitors  visitorStore
	history   editHistoryStore
	pending   pendingRequestStore
	deletions deletionRequester
	cache     *CacheService
	metrics   *MetricsService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// VisitorServiceOption configures the service.
type VisitorServiceOption func(*VisitorService)

// WithVisitorCache invalidates cached statuses on direct deletes.
func WithVisitorCache(cache *CacheService) VisitorServiceOption {
	return func(s *VisitorService) { s.cache = cache }
}

// WithVisitorMetrics records requests rejected by direct deletes.
func WithVisitorMetrics(metrics *MetricsService) VisitorServiceOption {
	return func(s *VisitorService) { s.metrics = metrics }
}

// WithVisitorClock overrides the service clock.
func WithVisitorClock(now func() time.Time) VisitorServiceOption {
	return func(s *VisitorService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewVisitorService wires the record store service.
func NewVisitorService(tx txProvider, visitors visitorStore, history editHistoryStore, pending pendingRequestStore, deletions deletionRequester, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...VisitorServiceOption) *VisitorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &VisitorService{
		tx:        tx,
		visitors:  visitors,
		history:   history,
		pending:   pending,
		deletions: deletions,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CheckIn records a new visit owned by the actor.
func (s *VisitorService) CheckIn(ctx context.Context, actor *models.JWTClaims, req dto.CheckInRequest) (*models.VisitorRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.Purpose.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "purpose is required")
	}
	now := s.now()
	visitor := &models.VisitorRecord{
		FullName:          req.FullName,
		Phone:             strings.TrimSpace(req.Phone),
		Email:             req.Email,
		Institution:       strings.TrimSpace(req.Institution),
		Address:           strings.TrimSpace(req.Address),
		IDType:            strings.TrimSpace(req.IDType),
		IDNumber:          strings.TrimSpace(req.IDNumber),
		Purpose:           req.Purpose,
		PersonToMeet:      req.PersonToMeet,
		Unit:              req.Unit,
		Notes:             req.Notes,
		DocumentRequested: req.DocumentRequested,
		DocumentType:      req.DocumentType,
		DocumentName:      req.DocumentName,
		DocumentNumber:    req.DocumentNumber,
		DocumentDetails:   req.DocumentDetails,
		CheckInTime:       now,
		InputByUserID:     actor.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.visitors.Create(ctx, visitor); err != nil {
		return nil, internalError(err, "failed to check in visitor")
	}
	emitAudit(ctx, s.audit, s.logger, "visitor-service", &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionVisitorCheckIn,
		Resource:   models.AuditResourceVisitor,
		ResourceID: &visitor.ID,
		NewValues:  marshalAudit(visitor),
	})
	return visitor, nil
}

// List returns visitors matching the query. Only admins may include deleted records.
func (s *VisitorService) List(ctx context.Context, actor *models.JWTClaims, query dto.VisitorQuery) ([]models.VisitorRecord, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	if query.IncludeDeleted && !actor.Role.IsAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can list deleted visitors")
	}
	filter := models.VisitorFilter{
		Search:         strings.TrimSpace(query.Search),
		IncludeDeleted: query.IncludeDeleted,
		Page:           query.Page,
		PageSize:       query.PageSize,
	}
	switch query.Status {
	case "":
	case dto.VisitorStatusCheckedIn:
		checkedOut := false
		filter.CheckedOut = &checkedOut
	case dto.VisitorStatusCheckedOut:
		checkedOut := true
		filter.CheckedOut = &checkedOut
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be checked_in or checked_out")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	visitors, total, err := s.visitors.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list visitors")
	}
	return visitors, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a visitor, including soft-deleted ones.
func (s *VisitorService) Get(ctx context.Context, id string) (*models.VisitorRecord, error) {
	visitor, err := s.visitors.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visitor not found")
		}
		return nil, internalError(err, "failed to load visitor")
	}
	return visitor, nil
}

// Checkout stamps the checkout time of a live visit exactly once.
func (s *VisitorService) Checkout(ctx context.Context, actor *models.JWTClaims, id string, req dto.CheckoutRequest) (*models.VisitorRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	visitor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if visitor.IsDeleted() || visitor.IsCheckedOut() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "visitor already checked out or deleted")
	}
	now := s.now()
	visitor.CheckOutTime = &now
	visitor.CheckoutByUserID = &actor.UserID
	if req.DocumentRequested != nil {
		visitor.DocumentRequested = *req.DocumentRequested
	}
	setIfPresent(&visitor.DocumentType, req.DocumentType)
	setIfPresent(&visitor.DocumentName, req.DocumentName)
	setIfPresent(&visitor.DocumentNumber, req.DocumentNumber)
	setIfPresent(&visitor.DocumentDetails, req.DocumentDetails)
	setIfPresent(&visitor.DocumentStatus, req.DocumentStatus)

	if err := s.visitors.Checkout(ctx, visitor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "visitor already checked out or deleted")
		}
		return nil, internalError(err, "failed to check out visitor")
	}
	emitAudit(ctx, s.audit, s.logger, "visitor-service", &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionVisitorCheckout,
		Resource:   models.AuditResourceVisitor,
		ResourceID: &visitor.ID,
	})
	return visitor, nil
}

// Update applies a direct edit by the owner or an admin and records the changed fields.
func (s *VisitorService) Update(ctx context.Context, actor *models.JWTClaims, id string, payload map[string]json.RawMessage) (visitor *models.VisitorRecord, err error) {
	if err = requireActor(actor); err != nil {
		return nil, err
	}
	proposed, err := normalizeVisitorChanges(payload, s.validator)
	if err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	visitor, err = s.visitors.LockByID(ctx, tx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visitor not found")
		}
		return nil, internalError(err, "failed to lock visitor")
	}
	if visitor.IsDeleted() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "visitor record is deleted")
	}
	if !models.CanEditDirectly(actor, visitor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "submit an edit request instead")
	}
	pending, err := s.pending.FindPendingByVisitor(ctx, visitor.ID)
	switch {
	case err == nil && pending != nil:
		return nil, pendingConflict(pending.Type)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to check pending requests")
	}
	err = nil

	changes, original := diffVisitor(visitor, proposed)
	if len(changes) == 0 {
		if err = tx.Commit(); err != nil {
			return nil, internalError(err, "failed to commit edit")
		}
		return visitor, nil
	}
	if err = applyVisitorChanges(visitor, changes); err != nil {
		return nil, err
	}
	now := s.now()
	visitor.UpdatedAt = now
	if err = s.visitors.Update(ctx, tx, visitor); err != nil {
		return nil, internalError(err, "failed to update visitor")
	}
	if err = s.history.Append(ctx, tx, &models.EditHistoryEntry{
		VisitorID:    visitor.ID,
		EditedAt:     now,
		EditedBy:     actor.UserID,
		EditedByName: actor.FullName,
		EditedByRole: actor.Role,
		Changes:      changes,
		Original:     original,
	}); err != nil {
		return nil, internalError(err, "failed to record edit history")
	}
	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit edit")
	}

	emitAudit(ctx, s.audit, s.logger, "visitor-service", &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionVisitorEdit,
		Resource:   models.AuditResourceVisitor,
		ResourceID: &visitor.ID,
		OldValues:  marshalAudit(original),
		NewValues:  marshalAudit(changes),
	})
	return visitor, nil
}

// Delete soft-deletes a record when the actor may do so directly. Other actors with a
// reason get a pending deletion request instead. A request still pending on a directly
// deleted record is rejected in the same transaction.
func (s *VisitorService) Delete(ctx context.Context, actor *models.JWTClaims, id, reason string) (*dto.DeleteVisitorResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	visitor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanDeleteDirectly(actor, visitor) {
		if strings.TrimSpace(reason) == "" {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner or an administrator can delete this visitor")
		}
		req, err := s.deletions.CreateDeletionRequest(ctx, actor, visitor.ID, reason)
		if err != nil {
			return nil, err
		}
		return &dto.DeleteVisitorResult{Deleted: false, Request: req}, nil
	}
	if visitor.IsDeleted() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "visitor record is already deleted")
	}

	now := s.now()
	superseded, err := s.deleteDirectly(ctx, actor, visitor.ID, now)
	if err != nil {
		return nil, err
	}
	visitor.DeletedAt = &now
	visitor.UpdatedAt = now

	s.cache.InvalidateVisitor(ctx, visitor.ID)
	emitAudit(ctx, s.audit, s.logger, "visitor-service", &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionVisitorDelete,
		Resource:   models.AuditResourceVisitor,
		ResourceID: &visitor.ID,
		NewValues:  marshalAudit(map[string]string{"reason": strings.TrimSpace(reason)}),
	})
	if superseded != nil {
		s.metrics.RecordRequestEvent(superseded.Type, OutcomeRejected)
		emitAudit(ctx, s.audit, s.logger, "visitor-service", &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionRequestReject,
			Resource:   models.AuditResourceVisitorRequest,
			ResourceID: &superseded.ID,
			NewValues:  marshalAudit(superseded),
		})
	}
	return &dto.DeleteVisitorResult{Deleted: true, Visitor: visitor, Superseded: superseded}, nil
}

func (s *VisitorService) deleteDirectly(ctx context.Context, actor *models.JWTClaims, visitorID string, at time.Time) (superseded *models.VisitorRequest, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internalError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.visitors.SoftDelete(ctx, tx, visitorID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "visitor record is already deleted")
		}
		return nil, internalError(err, "failed to delete visitor")
	}

	pending, err := s.pending.FindPendingByVisitor(ctx, visitorID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		pending, err = nil, nil
	case err != nil:
		return nil, internalError(err, "failed to check pending requests")
	}
	if pending != nil {
		rejection := SupersededByDeleteReason
		err = s.pending.Resolve(ctx, tx, repository.ResolveRequestParams{
			ID:              pending.ID,
			Status:          models.RequestStatusRejected,
			ResolvedBy:      actor.UserID,
			ResolvedAt:      at,
			RejectionReason: &rejection,
		})
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// resolved concurrently by an admin
			pending, err = nil, nil
		case err != nil:
			return nil, internalError(err, "failed to reject pending request")
		default:
			pending.Status = models.RequestStatusRejected
			pending.ResolvedBy = &actor.UserID
			pending.ResolvedAt = &at
			pending.RejectionReason = &rejection
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit delete")
	}
	return pending, nil
}

// History returns the edit history of a visitor, newest first.
func (s *VisitorService) History(ctx context.Context, id string) ([]models.EditHistoryEntry, error) {
	visitor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.history.ListByVisitor(ctx, visitor.ID)
	if err != nil {
		return nil, internalError(err, "failed to load edit history")
	}
	return entries, nil
}

func setIfPresent(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}
