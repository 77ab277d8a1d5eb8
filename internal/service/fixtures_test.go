package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/frontdesk-api/internal/models"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type auditLoggerStub struct {
	logs []*models.AuditLog
}

func (a *auditLoggerStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditLoggerStub) actions() []string {
	out := make([]string, 0, len(a.logs))
	for _, log := range a.logs {
		out = append(out, log.Action)
	}
	return out
}

var visitorColumnNames = []string{"id", "full_name", "phone", "email", "institution", "address", "id_type", "id_number",
	"purpose", "person_to_meet", "unit", "notes", "document_requested", "document_type", "document_name",
	"document_number", "document_details", "document_status", "check_in_time", "check_out_time", "deleted_at",
	"input_by_user_id", "checkout_by_user_id", "created_at", "updated_at"}

var requestColumnNames = []string{"id", "visitor_id", "type", "status", "reason", "proposed_changes", "requested_by",
	"requested_by_name", "requested_by_role", "created_at", "resolved_by", "resolved_at", "rejection_reason"}

func visitorRows(v models.VisitorRecord) *sqlmock.Rows {
	var deletedAt, checkOut interface{}
	if v.DeletedAt != nil {
		deletedAt = *v.DeletedAt
	}
	if v.CheckOutTime != nil {
		checkOut = *v.CheckOutTime
	}
	return sqlmock.NewRows(visitorColumnNames).AddRow(
		v.ID, v.FullName, v.Phone, v.Email, v.Institution, v.Address, v.IDType, v.IDNumber,
		v.Purpose.String(), v.PersonToMeet.String(), v.Unit.String(), v.Notes, v.DocumentRequested,
		v.DocumentType, v.DocumentName, v.DocumentNumber, v.DocumentDetails, v.DocumentStatus,
		fixedNow.Add(-time.Hour), checkOut, deletedAt, v.InputByUserID, nil, fixedNow.Add(-time.Hour), fixedNow.Add(-time.Hour),
	)
}

func requestRows(r models.VisitorRequest) *sqlmock.Rows {
	var proposed interface{}
	if r.ProposedChanges != nil {
		value, _ := r.ProposedChanges.Value()
		proposed = value
	}
	return sqlmock.NewRows(requestColumnNames).AddRow(
		r.ID, r.VisitorID, string(r.Type), string(r.Status), r.Reason, proposed, r.RequestedBy,
		r.RequestedByName, string(r.RequestedByRole), fixedNow.Add(-time.Minute), nil, nil, nil,
	)
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, FullName: "Admin"}
}

func staffClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleReceptionist, FullName: "Staff " + id}
}
