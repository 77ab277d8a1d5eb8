package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/frontdesk-api/internal/dto"
	"github.com/noah-isme/frontdesk-api/internal/models"
	"github.com/noah-isme/frontdesk-api/internal/repository"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

const defaultMinReasonLength = 10

type visitorReader interface {
	FindByID(ctx context.Context, id string) (*models.VisitorRecord, error)
}

type visitorRequestStore interface {
	Create(ctx context.Context, req *models.VisitorRequest) error
	GetByID(ctx context.Context, id string) (*models.VisitorRequest, error)
	FindPendingByVisitor(ctx context.Context, visitorID string) (*models.VisitorRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.VisitorRequest, int, error)
}

// VisitorRequestService files edit and deletion requests and serves the ledger read side.
type VisitorRequestService struct {
	visitors        visitorReader
	requests        visitorRequestStore
	cache           *CacheService
	metrics         *MetricsService
	audit           auditLogger
	validator       *validator.Validate
	logger          *zap.Logger
	minReasonLength int
}

// VisitorRequestServiceOption configures the service.
type VisitorRequestServiceOption func(*VisitorRequestService)

// WithMinReasonLength overrides the minimum trimmed reason length.
func WithMinReasonLength(n int) VisitorRequestServiceOption {
	return func(s *VisitorRequestService) {
		if n > 0 {
			s.minReasonLength = n
		}
	}
}

// WithRequestCache invalidates cached statuses on every ledger write.
func WithRequestCache(cache *CacheService) VisitorRequestServiceOption {
	return func(s *VisitorRequestService) { s.cache = cache }
}

// WithRequestMetrics records workflow outcomes.
func WithRequestMetrics(metrics *MetricsService) VisitorRequestServiceOption {
	return func(s *VisitorRequestService) { s.metrics = metrics }
}

// NewVisitorRequestService constructs the ledger service.
func NewVisitorRequestService(visitors visitorReader, requests visitorRequestStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...VisitorRequestServiceOption) *VisitorRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &VisitorRequestService{
		visitors:        visitors,
		requests:        requests,
		audit:           audit,
		validator:       validate,
		logger:          logger,
		minReasonLength: defaultMinReasonLength,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateDeletionRequest files a pending deletion request for a visitor.
func (s *VisitorRequestService) CreateDeletionRequest(ctx context.Context, actor *models.JWTClaims, visitorID, reason string) (*models.VisitorRequest, error) {
	return s.create(ctx, actor, &models.VisitorRequest{
		VisitorID: strings.TrimSpace(visitorID),
		Type:      models.RequestTypeDeletion,
		Reason:    reason,
	})
}

// CreateEditRequest files a pending edit request carrying the proposed field values.
func (s *VisitorRequestService) CreateEditRequest(ctx context.Context, actor *models.JWTClaims, visitorID, reason string, proposed map[string]json.RawMessage) (*models.VisitorRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	changes, err := normalizeVisitorChanges(proposed, s.validator)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, actor, &models.VisitorRequest{
		VisitorID:       strings.TrimSpace(visitorID),
		Type:            models.RequestTypeEdit,
		Reason:          reason,
		ProposedChanges: changes,
	})
}

func (s *VisitorRequestService) create(ctx context.Context, actor *models.JWTClaims, req *models.VisitorRequest) (*models.VisitorRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if utf8.RuneCountInString(req.Reason) < s.minReasonLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("reason must be at least %d characters", s.minReasonLength))
	}
	if req.VisitorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "visitorId is required")
	}

	visitor, err := s.visitors.FindByID(ctx, req.VisitorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visitor not found")
		}
		return nil, internalError(err, "failed to load visitor")
	}
	if visitor.IsDeleted() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "visitor record is already deleted")
	}

	pending, err := s.requests.FindPendingByVisitor(ctx, req.VisitorID)
	switch {
	case err == nil && pending != nil:
		s.metrics.RecordRequestEvent(req.Type, OutcomeConflict)
		return nil, pendingConflict(pending.Type)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, internalError(err, "failed to check pending requests")
	}

	req.Status = models.RequestStatusPending
	req.RequestedBy = actor.UserID
	req.RequestedByName = actor.FullName
	req.RequestedByRole = actor.Role
	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrPendingRequestExists) {
			s.metrics.RecordRequestEvent(req.Type, OutcomeConflict)
			return nil, appErrors.Clone(appErrors.ErrConflict, "visitor already has a pending request")
		}
		return nil, internalError(err, "failed to create request")
	}

	s.cache.InvalidateVisitor(ctx, req.VisitorID)
	s.metrics.RecordRequestEvent(req.Type, OutcomeCreated)
	emitAudit(ctx, s.audit, s.logger, "visitor-request-service", &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestCreate,
		Resource:   models.AuditResourceVisitorRequest,
		ResourceID: &req.ID,
		NewValues:  marshalAudit(req),
	})
	return req, nil
}

func pendingConflict(pendingType models.RequestType) error {
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("visitor already has a pending %s request", pendingType))
}

// List returns ledger entries visible to the actor. Non-admins only see their own requests.
func (s *VisitorRequestService) List(ctx context.Context, actor *models.JWTClaims, query dto.RequestQuery) ([]models.VisitorRequest, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %s", status))
		}
	}
	if query.Type != "" && !query.Type.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "type must be deletion or edit")
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	filter := models.RequestFilter{
		Status:    query.Status,
		Type:      query.Type,
		VisitorID: strings.TrimSpace(query.VisitorID),
		Limit:     size,
		Offset:    (page - 1) * size,
	}
	if !actor.Role.IsAdmin() {
		filter.RequestedBy = actor.UserID
	}
	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list requests")
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one request. Non-admins may only read their own.
func (s *VisitorRequestService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.VisitorRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, internalError(err, "failed to load request")
	}
	if !actor.Role.IsAdmin() && req.RequestedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return req, nil
}
