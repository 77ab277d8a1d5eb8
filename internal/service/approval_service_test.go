package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/frontdesk-api/internal/models"
	"github.com/noah-isme/frontdesk-api/internal/repository"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

var (
	getRequestQuery    = regexp.QuoteMeta("FROM visitor_requests WHERE id = $1")
	lockVisitorQuery   = regexp.QuoteMeta("FROM visitors WHERE id = $1 FOR UPDATE")
	resolveRequestExec = regexp.QuoteMeta("UPDATE visitor_requests SET status = ?")
	softDeleteExec     = regexp.QuoteMeta("UPDATE visitors SET deleted_at = $2")
	updateVisitorExec  = regexp.QuoteMeta("UPDATE visitors SET full_name = ?")
	appendHistoryExec  = regexp.QuoteMeta("INSERT INTO visitor_edit_history")
)

type approvalFixture struct {
	svc   *ApprovalService
	mock  sqlmock.Sqlmock
	audit *auditLoggerStub
}

func newApprovalFixture(t *testing.T) approvalFixture {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	audit := &auditLoggerStub{}
	svc := NewApprovalService(
		tx,
		repository.NewVisitorRepository(tx.db),
		repository.NewVisitorRequestRepository(tx.db),
		repository.NewEditHistoryRepository(tx.db),
		audit,
		nil,
		WithApprovalClock(func() time.Time { return fixedNow }),
	)
	return approvalFixture{svc: svc, mock: mock, audit: audit}
}

func pendingRequest(id string, reqType models.RequestType, changes models.FieldMap) models.VisitorRequest {
	return models.VisitorRequest{
		ID:              id,
		VisitorID:       "v-1",
		Type:            reqType,
		Status:          models.RequestStatusPending,
		Reason:          "visitor entered twice",
		ProposedChanges: changes,
		RequestedBy:     "staff-2",
		RequestedByName: "Staff staff-2",
		RequestedByRole: models.RoleReceptionist,
	}
}

func liveVisitor() models.VisitorRecord {
	return models.VisitorRecord{
		ID:            "v-1",
		FullName:      "Ana",
		Phone:         "111",
		Purpose:       models.PredefinedChoice("Meeting"),
		InputByUserID: "staff-1",
	}
}

func TestApprovalServiceApproveDeletion(t *testing.T) {
	f := newApprovalFixture(t)
	f.mock.ExpectQuery(getRequestQuery).WithArgs("req-1").
		WillReturnRows(requestRows(pendingRequest("req-1", models.RequestTypeDeletion, nil)))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(lockVisitorQuery).WithArgs("v-1").WillReturnRows(visitorRows(liveVisitor()))
	f.mock.ExpectExec(resolveRequestExec).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(softDeleteExec).WithArgs("v-1", fixedNow).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	result, err := f.svc.Approve(context.Background(), adminClaims(), models.RequestTypeDeletion, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, result.Request.Status)
	require.NotNil(t, result.Request.ResolvedBy)
	assert.Equal(t, "admin-1", *result.Request.ResolvedBy)
	require.NotNil(t, result.Visitor.DeletedAt)
	assert.Equal(t, fixedNow, *result.Visitor.DeletedAt)
	assert.Equal(t, []string{models.AuditActionRequestApprove}, f.audit.actions())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApprovalServiceApproveEditRecordsOnlyChangedFields(t *testing.T) {
	f := newApprovalFixture(t)
	req := pendingRequest("req-2", models.RequestTypeEdit, models.FieldMap{"phone": "999", "full_name": "Ana"})
	f.mock.ExpectQuery(getRequestQuery).WithArgs("req-2").WillReturnRows(requestRows(req))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(lockVisitorQuery).WithArgs("v-1").WillReturnRows(visitorRows(liveVisitor()))
	f.mock.ExpectExec(resolveRequestExec).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(updateVisitorExec).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(appendHistoryExec).
		WithArgs(sqlmock.AnyArg(), "v-1", fixedNow, "staff-2", "Staff staff-2", "RECEPTIONIST",
			`{"phone":"999"}`, `{"phone":"111"}`, "req-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	result, err := f.svc.Approve(context.Background(), adminClaims(), models.RequestTypeEdit, "req-2")
	require.NoError(t, err)
	assert.Equal(t, "999", result.Visitor.Phone)
	assert.Equal(t, "Ana", result.Visitor.FullName)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApprovalServiceApproveEditWithoutEffectiveChange(t *testing.T) {
	f := newApprovalFixture(t)
	req := pendingRequest("req-3", models.RequestTypeEdit, models.FieldMap{"phone": "111"})
	f.mock.ExpectQuery(getRequestQuery).WithArgs("req-3").WillReturnRows(requestRows(req))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(lockVisitorQuery).WithArgs("v-1").WillReturnRows(visitorRows(liveVisitor()))
	f.mock.ExpectExec(resolveRequestExec).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	result, err := f.svc.Approve(context.Background(), adminClaims(), models.RequestTypeEdit, "req-3")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, result.Request.Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApprovalServiceRollsBackWhenSideEffectFails(t *testing.T) {
	f := newApprovalFixture(t)
	f.mock.ExpectQuery(getRequestQuery).WithArgs("req-1").
		WillReturnRows(requestRows(pendingRequest("req-1", models.RequestTypeDeletion, nil)))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(lockVisitorQuery).WithArgs("v-1").WillReturnRows(visitorRows(liveVisitor()))
	f.mock.ExpectExec(resolveRequestExec).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(softDeleteExec).WillReturnError(errors.New("disk full"))
	f.mock.ExpectRollback()

	_, err := f.svc.Approve(context.Background(), adminClaims(), models.RequestTypeDeletion, "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.audit.logs)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApprovalServiceLosesRaceToConcurrentResolution(t *testing.T) {
	f := newApprovalFixture(t)
	f.mock.ExpectQuery(getRequestQuery).WithArgs("req-1").
		WillReturnRows(requestRows(pendingRequest("req-1", models.RequestTypeDeletion, nil)))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(lockVisitorQuery).WithArgs("v-1").WillReturnRows(visitorRows(liveVisitor()))
	f.mock.ExpectExec(resolveRequestExec).WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectRollback()

	_, err := f.svc.Approve(context.Background(), adminClaims(), models.RequestTypeDeletion, "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApprovalServiceEditOnDeletedVisitorIsInvalidState(t *testing.T) {
	f := newApprovalFixture(t)
	deleted := liveVisitor()
	at := fixedNow.Add(-time.Minute)
	deleted.DeletedAt = &at
	f.mock.ExpectQuery(getRequestQuery).WithArgs("req-2").
		WillReturnRows(requestRows(pendingRequest("req-2", models.RequestTypeEdit, models.FieldMap{"phone": "999"})))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(lockVisitorQuery).WithArgs("v-1").WillReturnRows(visitorRows(deleted))
	f.mock.ExpectRollback()

	_, err := f.svc.Approve(context.Background(), adminClaims(), models.RequestTypeEdit, "req-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApprovalServicePermissionCheckedFirst(t *testing.T) {
	f := newApprovalFixture(t)

	_, err := f.svc.Approve(context.Background(), staffClaims("staff-1"), models.RequestTypeDeletion, "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Reject(context.Background(), staffClaims("staff-1"), models.RequestTypeEdit, "missing", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Approve(context.Background(), nil, models.RequestTypeDeletion, "req-1")
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApprovalServiceTypeMismatchIsNotFound(t *testing.T) {
	f := newApprovalFixture(t)
	f.mock.ExpectQuery(getRequestQuery).WithArgs("req-2").
		WillReturnRows(requestRows(pendingRequest("req-2", models.RequestTypeEdit, models.FieldMap{"phone": "999"})))

	_, err := f.svc.Approve(context.Background(), adminClaims(), models.RequestTypeDeletion, "req-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "deletion request not found", appErrors.FromError(err).Message)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApprovalServiceTerminalRequestsAreImmutable(t *testing.T) {
	for _, status := range []models.RequestStatus{models.RequestStatusApproved, models.RequestStatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			f := newApprovalFixture(t)
			req := pendingRequest("req-1", models.RequestTypeDeletion, nil)
			req.Status = status
			f.mock.ExpectQuery(getRequestQuery).WithArgs("req-1").WillReturnRows(requestRows(req))
			f.mock.ExpectQuery(getRequestQuery).WithArgs("req-1").WillReturnRows(requestRows(req))

			_, err := f.svc.Approve(context.Background(), adminClaims(), models.RequestTypeDeletion, "req-1")
			assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
			_, err = f.svc.Reject(context.Background(), adminClaims(), models.RequestTypeDeletion, "req-1", "no")
			assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestApprovalServiceReject(t *testing.T) {
	f := newApprovalFixture(t)
	f.mock.ExpectQuery(getRequestQuery).WithArgs("req-2").
		WillReturnRows(requestRows(pendingRequest("req-2", models.RequestTypeEdit, models.FieldMap{"phone": "999"})))
	f.mock.ExpectExec(resolveRequestExec).WillReturnResult(sqlmock.NewResult(0, 1))

	req, err := f.svc.Reject(context.Background(), adminClaims(), models.RequestTypeEdit, "req-2", "  not a typo  ")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, req.Status)
	require.NotNil(t, req.RejectionReason)
	assert.Equal(t, "not a typo", *req.RejectionReason)
	assert.Equal(t, []string{models.AuditActionRequestReject}, f.audit.actions())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
