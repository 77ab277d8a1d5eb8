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

	"github.com/noah-isme/frontdesk-api/internal/models"
)

const visitorColumns = `id, full_name, phone, email, institution, address, id_type, id_number, purpose, person_to_meet, unit, notes,
	document_requested, document_type, document_name, document_number, document_details, document_status,
	check_in_time, check_out_time, deleted_at, input_by_user_id, checkout_by_user_id, created_at, updated_at`

// VisitorRepository persists visitor records.
type VisitorRepository struct {
	db *sqlx.DB
}

// NewVisitorRepository constructs the repository.
func NewVisitorRepository(db *sqlx.DB) *VisitorRepository {
	return &VisitorRepository{db: db}
}

func (r *VisitorRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a checked-in visitor.
func (r *VisitorRepository) Create(ctx context.Context, visitor *models.VisitorRecord) error {
	if visitor.ID == "" {
		visitor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if visitor.CheckInTime.IsZero() {
		visitor.CheckInTime = now
	}
	if visitor.CreatedAt.IsZero() {
		visitor.CreatedAt = now
	}
	visitor.UpdatedAt = now

	const query = `INSERT INTO visitors (` + visitorColumns + `)
	VALUES (:id, :full_name, :phone, :email, :institution, :address, :id_type, :id_number, :purpose, :person_to_meet, :unit, :notes,
	:document_requested, :document_type, :document_name, :document_number, :document_details, :document_status,
	:check_in_time, :check_out_time, :deleted_at, :input_by_user_id, :checkout_by_user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, visitor); err != nil {
		return fmt.Errorf("create visitor: %w", err)
	}
	return nil
}

// FindByID returns a visitor, including soft-deleted ones.
func (r *VisitorRepository) FindByID(ctx context.Context, id string) (*models.VisitorRecord, error) {
	const query = `SELECT ` + visitorColumns + ` FROM visitors WHERE id = $1`
	var visitor models.VisitorRecord
	if err := r.db.GetContext(ctx, &visitor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find visitor: %w", err)
	}
	return &visitor, nil
}

// LockByID loads a visitor holding a row lock until exec's transaction ends.
func (r *VisitorRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.VisitorRecord, error) {
	const query = `SELECT ` + visitorColumns + ` FROM visitors WHERE id = $1 FOR UPDATE`
	var visitor models.VisitorRecord
	if err := sqlx.GetContext(ctx, r.exec(exec), &visitor, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock visitor: %w", err)
	}
	return &visitor, nil
}

// List returns visitors matching the filter with the total count, newest first.
func (r *VisitorRepository) List(ctx context.Context, filter models.VisitorFilter) ([]models.VisitorRecord, int, error) {
	baseQuery := `FROM visitors WHERE 1=1`
	var conditions []string
	var args []interface{}

	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if filter.CheckedOut != nil {
		if *filter.CheckedOut {
			conditions = append(conditions, "check_out_time IS NOT NULL")
		} else {
			conditions = append(conditions, "check_out_time IS NULL")
		}
	}
	if filter.InputBy != "" {
		args = append(args, filter.InputBy)
		conditions = append(conditions, fmt.Sprintf("input_by_user_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR phone LIKE $%d OR LOWER(institution) LIKE $%d)", n, n, n))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY check_in_time DESC LIMIT %d OFFSET %d", visitorColumns, baseQuery, pageSize, offset)
	var visitors []models.VisitorRecord
	if err := r.db.SelectContext(ctx, &visitors, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list visitors: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count visitors: %w", err)
	}
	return visitors, total, nil
}

// Update writes the editable fields of a live record. It returns sql.ErrNoRows when the
// record is missing or soft-deleted.
func (r *VisitorRepository) Update(ctx context.Context, exec sqlx.ExtContext, visitor *models.VisitorRecord) error {
	visitor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE visitors SET full_name = :full_name, phone = :phone, email = :email, institution = :institution,
	address = :address, id_type = :id_type, id_number = :id_number, purpose = :purpose, person_to_meet = :person_to_meet,
	unit = :unit, notes = :notes, document_requested = :document_requested, document_type = :document_type,
	document_name = :document_name, document_number = :document_number, document_details = :document_details,
	document_status = :document_status, updated_at = :updated_at
	WHERE id = :id AND deleted_at IS NULL`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, visitor)
	if err != nil {
		return fmt.Errorf("update visitor: %w", err)
	}
	return expectAffected(result, "update visitor")
}

// Checkout stamps the checkout time once. It returns sql.ErrNoRows when the record is
// missing, deleted or already checked out.
func (r *VisitorRepository) Checkout(ctx context.Context, visitor *models.VisitorRecord) error {
	visitor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE visitors SET check_out_time = :check_out_time, checkout_by_user_id = :checkout_by_user_id,
	document_requested = :document_requested, document_type = :document_type, document_name = :document_name,
	document_number = :document_number, document_details = :document_details, document_status = :document_status,
	updated_at = :updated_at
	WHERE id = :id AND check_out_time IS NULL AND deleted_at IS NULL`
	result, err := r.db.NamedExecContext(ctx, query, visitor)
	if err != nil {
		return fmt.Errorf("checkout visitor: %w", err)
	}
	return expectAffected(result, "checkout visitor")
}

// SoftDelete marks a live record deleted. It returns sql.ErrNoRows when the record is
// missing or already deleted.
func (r *VisitorRepository) SoftDelete(ctx context.Context, exec sqlx.ExtContext, id string, deletedAt time.Time) error {
	const query = `UPDATE visitors SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.exec(exec).ExecContext(ctx, query, id, deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete visitor: %w", err)
	}
	return expectAffected(result, "soft delete visitor")
}

func expectAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
