package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/frontdesk-api/internal/models"
)

// EditHistoryRepository appends and reads visitor edit history. Entries are never updated.
type EditHistoryRepository struct {
	db *sqlx.DB
}

// NewEditHistoryRepository constructs the repository.
func NewEditHistoryRepository(db *sqlx.DB) *EditHistoryRepository {
	return &EditHistoryRepository{db: db}
}

// Append writes a history entry, inside exec's transaction when provided.
func (r *EditHistoryRepository) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.EditHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.EditedAt.IsZero() {
		entry.EditedAt = time.Now().UTC()
	}
	target := exec
	if target == nil {
		target = r.db
	}
	const query = `INSERT INTO visitor_edit_history (id, visitor_id, edited_at, edited_by, edited_by_name, edited_by_role, changes, original, request_id)
	VALUES (:id, :visitor_id, :edited_at, :edited_by, :edited_by_name, :edited_by_role, :changes, :original, :request_id)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
		return fmt.Errorf("append edit history: %w", err)
	}
	return nil
}

// ListByVisitor returns the history of a visitor, newest first.
func (r *EditHistoryRepository) ListByVisitor(ctx context.Context, visitorID string) ([]models.EditHistoryEntry, error) {
	const query = `SELECT id, visitor_id, edited_at, edited_by, edited_by_name, edited_by_role, changes, original, request_id
	FROM visitor_edit_history WHERE visitor_id = $1 ORDER BY edited_at DESC`
	var entries []models.EditHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, visitorID); err != nil {
		return nil, fmt.Errorf("list edit history: %w", err)
	}
	return entries, nil
}
