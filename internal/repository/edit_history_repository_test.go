package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/frontdesk-api/internal/models"
)

func TestEditHistoryRepositoryAppendWithinTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEditHistoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO visitor_edit_history")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	entry := &models.EditHistoryEntry{
		VisitorID: "v-1",
		EditedBy:  "admin-1",
		Changes:   models.FieldMap{"phone": "999"},
		Original:  models.FieldMap{"phone": "111"},
	}
	require.NoError(t, repo.Append(context.Background(), tx, entry))
	require.NoError(t, tx.Rollback())
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.EditedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEditHistoryRepositoryListByVisitor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEditHistoryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "visitor_id", "edited_at", "edited_by", "edited_by_name", "edited_by_role", "changes", "original", "request_id"}).
		AddRow("h-1", "v-1", time.Now(), "admin-1", "Admin", "ADMIN", `{"phone":"999"}`, `{"phone":"111"}`, "r-1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM visitor_edit_history WHERE visitor_id = $1 ORDER BY edited_at DESC")).
		WithArgs("v-1").
		WillReturnRows(rows)

	entries, err := repo.ListByVisitor(context.Background(), "v-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.FieldMap{"phone": "111"}, entries[0].Original)
	require.NotNil(t, entries[0].RequestID)
	assert.Equal(t, "r-1", *entries[0].RequestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
