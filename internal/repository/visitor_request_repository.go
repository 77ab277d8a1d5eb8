package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/frontdesk-api/internal/models"
	"github.com/noah-isme/frontdesk-api/pkg/database"
)

// PendingRequestIndex is the partial unique index allowing one pending request per visitor.
const PendingRequestIndex = "visitor_requests_one_pending_idx"

// ErrPendingRequestExists is returned by Create when the visitor already has a pending request.
var ErrPendingRequestExists = errors.New("visitor already has a pending request")

const visitorRequestColumns = `id, visitor_id, type, status, reason, proposed_changes, requested_by, requested_by_name,
	requested_by_role, created_at, resolved_by, resolved_at, rejection_reason`

// VisitorRequestRepository persists the edit/deletion request ledger.
type VisitorRequestRepository struct {
	db *sqlx.DB
}

// NewVisitorRequestRepository constructs the repository.
func NewVisitorRequestRepository(db *sqlx.DB) *VisitorRequestRepository {
	return &VisitorRequestRepository{db: db}
}

func (r *VisitorRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a pending request.
func (r *VisitorRequestRepository) Create(ctx context.Context, req *models.VisitorRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO visitor_requests (` + visitorRequestColumns + `)
	VALUES (:id, :visitor_id, :type, :status, :reason, :proposed_changes, :requested_by, :requested_by_name,
	:requested_by_role, :created_at, :resolved_by, :resolved_at, :rejection_reason)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		if database.IsUniqueViolation(err, PendingRequestIndex) {
			return ErrPendingRequestExists
		}
		return fmt.Errorf("create visitor request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *VisitorRequestRepository) GetByID(ctx context.Context, id string) (*models.VisitorRequest, error) {
	const query = `SELECT ` + visitorRequestColumns + ` FROM visitor_requests WHERE id = $1`
	var req models.VisitorRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get visitor request: %w", err)
	}
	return &req, nil
}

// FindPendingByVisitor returns the pending request of a visitor or sql.ErrNoRows.
func (r *VisitorRequestRepository) FindPendingByVisitor(ctx context.Context, visitorID string) (*models.VisitorRequest, error) {
	const query = `SELECT ` + visitorRequestColumns + ` FROM visitor_requests WHERE visitor_id = $1 AND status = 'pending' LIMIT 1`
	var req models.VisitorRequest
	if err := r.db.GetContext(ctx, &req, query, visitorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find pending visitor request: %w", err)
	}
	return &req, nil
}

// FindPendingByVisitors returns the pending requests for any of the given visitors.
func (r *VisitorRequestRepository) FindPendingByVisitors(ctx context.Context, visitorIDs []string) ([]models.VisitorRequest, error) {
	if len(visitorIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + visitorRequestColumns + ` FROM visitor_requests WHERE visitor_id = ANY($1) AND status = 'pending'`
	var reqs []models.VisitorRequest
	if err := r.db.SelectContext(ctx, &reqs, query, pq.Array(visitorIDs)); err != nil {
		return nil, fmt.Errorf("find pending visitor requests: %w", err)
	}
	return reqs, nil
}

// List returns requests matching the filter with the total count, newest first.
func (r *VisitorRequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.VisitorRequest, int, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 4)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.VisitorID != "" {
		args = append(args, filter.VisitorID)
		conditions = append(conditions, fmt.Sprintf("visitor_id = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	builder.WriteString(" FROM visitor_requests")
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	from := builder.String()

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	listQuery := fmt.Sprintf("SELECT %s%s ORDER BY created_at DESC LIMIT %d OFFSET %d", visitorRequestColumns, from, limit, offset)
	var reqs []models.VisitorRequest
	if err := r.db.SelectContext(ctx, &reqs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list visitor requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from, args...); err != nil {
		return nil, 0, fmt.Errorf("count visitor requests: %w", err)
	}
	return reqs, total, nil
}

// ResolveRequestParams describes a terminal transition.
type ResolveRequestParams struct {
	ID              string
	Status          models.RequestStatus
	ResolvedBy      string
	ResolvedAt      time.Time
	RejectionReason *string
}

// Resolve moves a pending request to a terminal state. It returns sql.ErrNoRows when the
// request is absent or no longer pending, so concurrent resolutions apply at most once.
func (r *VisitorRequestRepository) Resolve(ctx context.Context, exec sqlx.ExtContext, params ResolveRequestParams) error {
	if !params.Status.Terminal() {
		return fmt.Errorf("resolve visitor request: %s is not a terminal status", params.Status)
	}
	const query = `UPDATE visitor_requests SET status = :status, resolved_by = :resolved_by, resolved_at = :resolved_at,
	rejection_reason = :rejection_reason WHERE id = :id AND status = 'pending'`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, map[string]interface{}{
		"id":               params.ID,
		"status":           params.Status,
		"resolved_by":      params.ResolvedBy,
		"resolved_at":      params.ResolvedAt,
		"rejection_reason": params.RejectionReason,
	})
	if err != nil {
		return fmt.Errorf("resolve visitor request: %w", err)
	}
	return expectAffected(result, "resolve visitor request")
}
