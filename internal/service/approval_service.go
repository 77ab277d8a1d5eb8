package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/frontdesk-api/internal/models"
	"github.com/noah-isme/frontdesk-api/internal/repository"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

type approvalVisitorStore interface {
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.VisitorRecord, error)
	Update(ctx context.Context, exec sqlx.ExtContext, visitor *models.VisitorRecord) error
	SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, deletedAt time.Time) error
}

type approvalRequestStore interface {
	GetByID(ctx context.Context, id string) (*models.VisitorRequest, error)
	Resolve(ctx context.Context, exec sqlx.ExtContext, params repository.ResolveRequestParams) error
}

type editHistoryWriter interface {
	Append(ctx context.Context, exec sqlx.ExtContext, entry *models.EditHistoryEntry) error
}

// ApprovalService resolves pending requests. Approval applies the side effect and the
// status transition in one transaction.
type ApprovalService struct {
	tx       txProvider
	visitors approvalVisitorStore
	requests approvalRequestStore
	history  editHistoryWriter
	cache    *CacheService
	metrics  *MetricsService
	audit    auditLogger
	logger   *zap.Logger
	now      func() time.Time
}

// ApprovalServiceOption configures the service.
type ApprovalServiceOption func(*ApprovalService)

// WithApprovalCache invalidates cached statuses after every resolution.
func WithApprovalCache(cache *CacheService) ApprovalServiceOption {
	return func(s *ApprovalService) { s.cache = cache }
}

// WithApprovalMetrics records workflow outcomes.
func WithApprovalMetrics(metrics *MetricsService) ApprovalServiceOption {
	return func(s *ApprovalService) { s.metrics = metrics }
}

// WithApprovalClock overrides the resolution clock.
func WithApprovalClock(now func() time.Time) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewApprovalService wires the approval workflow.
func NewApprovalService(tx txProvider, visitors approvalVisitorStore, requests approvalRequestStore, history editHistoryWriter, audit auditLogger, logger *zap.Logger, opts ...ApprovalServiceOption) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		tx:       tx,
		visitors: visitors,
		requests: requests,
		history:  history,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Approve resolves a pending request of the expected type as approved and applies it.
func (s *ApprovalService) Approve(ctx context.Context, actor *models.JWTClaims, expected models.RequestType, id string) (result *models.ResolvedRequest, err error) {
	req, err := s.loadPending(ctx, actor, expected, id)
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

	visitor, err := s.visitors.LockByID(ctx, tx, req.VisitorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visitor not found")
		}
		return nil, internalError(err, "failed to lock visitor")
	}
	if req.Type == models.RequestTypeEdit && visitor.IsDeleted() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "visitor record was deleted")
	}

	now := s.now()
	if err = s.resolve(ctx, tx, req, models.RequestStatusApproved, actor.UserID, now, nil); err != nil {
		return nil, err
	}

	var entry *models.EditHistoryEntry
	switch req.Type {
	case models.RequestTypeDeletion:
		if !visitor.IsDeleted() {
			if err = s.visitors.SoftDelete(ctx, tx, visitor.ID, now); err != nil {
				return nil, internalError(err, "failed to delete visitor")
			}
			visitor.DeletedAt = &now
			visitor.UpdatedAt = now
		}
	case models.RequestTypeEdit:
		entry, err = s.applyEdit(ctx, tx, actor, visitor, req, now)
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, internalError(err, "failed to commit approval")
	}

	s.cache.InvalidateVisitor(ctx, req.VisitorID)
	s.metrics.RecordRequestEvent(req.Type, OutcomeApproved)
	emitAudit(ctx, s.audit, s.logger, "approval-service", &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestApprove,
		Resource:   models.AuditResourceVisitorRequest,
		ResourceID: &req.ID,
		NewValues:  marshalAudit(req),
		OldValues:  marshalAudit(entryOriginal(entry)),
	})
	return &models.ResolvedRequest{Request: req, Visitor: visitor}, nil
}

func (s *ApprovalService) applyEdit(ctx context.Context, exec sqlx.ExtContext, actor *models.JWTClaims, visitor *models.VisitorRecord, req *models.VisitorRequest, now time.Time) (*models.EditHistoryEntry, error) {
	changes, original := diffVisitor(visitor, req.ProposedChanges)
	if len(changes) == 0 {
		return nil, nil
	}
	if err := applyVisitorChanges(visitor, changes); err != nil {
		return nil, err
	}
	visitor.UpdatedAt = now
	if err := s.visitors.Update(ctx, exec, visitor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "visitor record was deleted")
		}
		return nil, internalError(err, "failed to update visitor")
	}
	requestID := req.ID
	entry := &models.EditHistoryEntry{
		VisitorID:    visitor.ID,
		EditedAt:     now,
		EditedBy:     req.RequestedBy,
		EditedByName: req.RequestedByName,
		EditedByRole: req.RequestedByRole,
		Changes:      changes,
		Original:     original,
		RequestID:    &requestID,
	}
	if err := s.history.Append(ctx, exec, entry); err != nil {
		return nil, internalError(err, "failed to record edit history")
	}
	s.logger.Debug("edit request applied",
		zap.String("request_id", req.ID),
		zap.String("approved_by", actor.UserID),
		zap.Strings("fields", changes.Keys()),
	)
	return entry, nil
}

// Reject resolves a pending request of the expected type as rejected. The visitor record
// is left untouched.
func (s *ApprovalService) Reject(ctx context.Context, actor *models.JWTClaims, expected models.RequestType, id, reason string) (*models.VisitorRequest, error) {
	req, err := s.loadPending(ctx, actor, expected, id)
	if err != nil {
		return nil, err
	}
	if err := s.resolve(ctx, nil, req, models.RequestStatusRejected, actor.UserID, s.now(), optionalString(reason)); err != nil {
		return nil, err
	}

	s.cache.InvalidateVisitor(ctx, req.VisitorID)
	s.metrics.RecordRequestEvent(req.Type, OutcomeRejected)
	emitAudit(ctx, s.audit, s.logger, "approval-service", &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestReject,
		Resource:   models.AuditResourceVisitorRequest,
		ResourceID: &req.ID,
		NewValues:  marshalAudit(req),
	})
	return req, nil
}

func (s *ApprovalService) loadPending(ctx context.Context, actor *models.JWTClaims, expected models.RequestType, id string) (*models.VisitorRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !expected.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be deletion or edit")
	}
	notFound := appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s request not found", expected))
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, notFound
	}
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, internalError(err, "failed to load request")
	}
	if req.Type != expected {
		return nil, notFound
	}
	if req.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("request already %s", req.Status))
	}
	return req, nil
}

func (s *ApprovalService) resolve(ctx context.Context, exec sqlx.ExtContext, req *models.VisitorRequest, status models.RequestStatus, resolver string, at time.Time, rejection *string) error {
	err := s.requests.Resolve(ctx, exec, repository.ResolveRequestParams{
		ID:              req.ID,
		Status:          status,
		ResolvedBy:      resolver,
		ResolvedAt:      at,
		RejectionReason: rejection,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "request was already resolved")
		}
		return internalError(err, "failed to resolve request")
	}
	req.Status = status
	req.ResolvedBy = &resolver
	req.ResolvedAt = &at
	req.RejectionReason = rejection
	return nil
}

func entryOriginal(entry *models.EditHistoryEntry) interface{} {
	if entry == nil {
		return nil
	}
	return entry.Original
}
