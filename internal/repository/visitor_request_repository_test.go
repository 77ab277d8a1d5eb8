package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/frontdesk-api/internal/models"
)

var requestColumnNames = []string{"id", "visitor_id", "type", "status", "reason", "proposed_changes", "requested_by",
	"requested_by_name", "requested_by_role", "created_at", "resolved_by", "resolved_at", "rejection_reason"}

func TestVisitorRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVisitorRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO visitor_requests")).WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.VisitorRequest{
		VisitorID:       "v-1",
		Type:            models.RequestTypeEdit,
		Reason:          "phone number typo",
		ProposedChanges: models.FieldMap{"phone": "999"},
		RequestedBy:     "staff-1",
	}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRequestRepositoryCreateMapsPendingIndexViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVisitorRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO visitor_requests")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: PendingRequestIndex})
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO visitor_requests")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "visitor_requests_pkey"})

	err := repo.Create(context.Background(), &models.VisitorRequest{VisitorID: "v-1", Type: models.RequestTypeDeletion})
	assert.ErrorIs(t, err, ErrPendingRequestExists)

	err = repo.Create(context.Background(), &models.VisitorRequest{VisitorID: "v-1", Type: models.RequestTypeDeletion})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPendingRequestExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRequestRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVisitorRequestRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(requestColumnNames).
		AddRow("r-1", "v-1", "edit", "pending", "phone number typo", `{"phone":"999"}`, "staff-1", "Sari", "RECEPTIONIST", now, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, visitor_id, type, status")).
		WithArgs("r-1").
		WillReturnRows(rows)

	req, err := repo.GetByID(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestTypeEdit, req.Type)
	assert.Equal(t, models.FieldMap{"phone": "999"}, req.ProposedChanges)
	assert.Nil(t, req.ResolvedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRequestRepositoryFindPendingByVisitors(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVisitorRequestRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(requestColumnNames).
		AddRow("r-1", "v-2", "deletion", "pending", "duplicate entry", nil, "staff-1", "Sari", "RECEPTIONIST", now, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE visitor_id = ANY($1) AND status = 'pending'")).
		WithArgs(pq.Array([]string{"v-1", "v-2"})).
		WillReturnRows(rows)

	reqs, err := repo.FindPendingByVisitors(context.Background(), []string{"v-1", "v-2"})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "v-2", reqs[0].VisitorID)
	assert.Nil(t, reqs[0].ProposedChanges)

	none, err := repo.FindPendingByVisitors(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVisitorRequestRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(requestColumnNames).
		AddRow("r-1", "v-1", "deletion", "pending", "duplicate entry", nil, "staff-1", "Sari", "RECEPTIONIST", now, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM visitor_requests WHERE status IN ($1) AND type = $2 AND requested_by = $3 ORDER BY created_at DESC LIMIT 50 OFFSET 0")).
		WithArgs(models.RequestStatusPending, models.RequestTypeDeletion, "staff-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM visitor_requests WHERE status IN ($1)")).
		WithArgs(models.RequestStatusPending, models.RequestTypeDeletion, "staff-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	reqs, total, err := repo.List(context.Background(), models.RequestFilter{
		Status:      []models.RequestStatus{models.RequestStatusPending},
		Type:        models.RequestTypeDeletion,
		RequestedBy: "staff-1",
	})
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitorRequestRepositoryResolveIsCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVisitorRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND status = 'pending'")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND status = 'pending'")).WillReturnResult(sqlmock.NewResult(0, 0))

	params := ResolveRequestParams{ID: "r-1", Status: models.RequestStatusApproved, ResolvedBy: "admin-1", ResolvedAt: time.Now()}
	require.NoError(t, repo.Resolve(context.Background(), nil, params))
	assert.ErrorIs(t, repo.Resolve(context.Background(), nil, params), sql.ErrNoRows)

	params.Status = models.RequestStatusPending
	assert.Error(t, repo.Resolve(context.Background(), nil, params))
	assert.NoError(t, mock.ExpectationsWereMet())
}
