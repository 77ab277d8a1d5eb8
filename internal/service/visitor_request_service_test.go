package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/frontdesk-api/internal/dto"
	"github.com/noah-isme/frontdesk-api/internal/models"
	"github.com/noah-isme/frontdesk-api/internal/repository"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

type visitorReaderStub struct {
	records map[string]*models.VisitorRecord
	err     error
}

func (s *visitorReaderStub) FindByID(ctx context.Context, id string) (*models.VisitorRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	record, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

// requestStoreStub enforces one pending request per visitor like the partial unique index.
type requestStoreStub struct {
	mu        sync.Mutex
	requests  []*models.VisitorRequest
	pendingFn func(visitorID string) (*models.VisitorRequest, error)
	listed    models.RequestFilter
}

func (s *requestStoreStub) Create(ctx context.Context, req *models.VisitorRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.VisitorID == req.VisitorID && existing.Status == models.RequestStatusPending {
			return repository.ErrPendingRequestExists
		}
	}
	req.ID = fmt.Sprintf("req-%d", len(s.requests)+1)
	s.requests = append(s.requests, req)
	return nil
}

func (s *requestStoreStub) GetByID(ctx context.Context, id string) (*models.VisitorRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.ID == id {
			return req, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *requestStoreStub) FindPendingByVisitor(ctx context.Context, visitorID string) (*models.VisitorRequest, error) {
	if s.pendingFn != nil {
		return s.pendingFn(visitorID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.VisitorID == visitorID && req.Status == models.RequestStatusPending {
			return req, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *requestStoreStub) FindPendingByVisitors(ctx context.Context, visitorIDs []string) ([]models.VisitorRequest, error) {
	var out []models.VisitorRequest
	for _, id := range visitorIDs {
		req, err := s.FindPendingByVisitor(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, nil
}

func (s *requestStoreStub) Resolve(ctx context.Context, exec sqlx.ExtContext, params repository.ResolveRequestParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.ID == params.ID && req.Status == models.RequestStatusPending {
			req.Status = params.Status
			req.RejectionReason = params.RejectionReason
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *requestStoreStub) List(ctx context.Context, filter models.RequestFilter) ([]models.VisitorRequest, int, error) {
	s.listed = filter
	var out []models.VisitorRequest
	for _, req := range s.requests {
		if filter.RequestedBy != "" && req.RequestedBy != filter.RequestedBy {
			continue
		}
		out = append(out, *req)
	}
	return out, len(out), nil
}

func newRequestServiceFixture(records ...models.VisitorRecord) (*VisitorRequestService, *requestStoreStub, *auditLoggerStub) {
	visitors := &visitorReaderStub{records: map[string]*models.VisitorRecord{}}
	for i := range records {
		visitors.records[records[i].ID] = &records[i]
	}
	store := &requestStoreStub{}
	audit := &auditLoggerStub{}
	svc := NewVisitorRequestService(visitors, store, audit, validator.New(), nil, WithMinReasonLength(10))
	return svc, store, audit
}

func TestCreateDeletionRequestReasonLength(t *testing.T) {
	svc, store, audit := newRequestServiceFixture(liveVisitor())

	_, err := svc.CreateDeletionRequest(context.Background(), staffClaims("staff-2"), "v-1", "  123456789  ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.requests)

	req, err := svc.CreateDeletionRequest(context.Background(), staffClaims("staff-2"), "v-1", " 1234567890 ")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, "1234567890", req.Reason)
	assert.Equal(t, "staff-2", req.RequestedBy)
	assert.Equal(t, models.RoleReceptionist, req.RequestedByRole)
	assert.Equal(t, []string{models.AuditActionRequestCreate}, audit.actions())
}

func TestCreateDeletionRequestCountsCharactersNotBytes(t *testing.T) {
	svc, _, _ := newRequestServiceFixture(liveVisitor())
	_, err := svc.CreateDeletionRequest(context.Background(), staffClaims("staff-2"), "v-1", "ééééééééé")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateRequestTargetChecks(t *testing.T) {
	deleted := liveVisitor()
	deleted.ID = "v-gone"
	at := fixedNow
	deleted.DeletedAt = &at
	svc, _, _ := newRequestServiceFixture(liveVisitor(), deleted)

	_, err := svc.CreateDeletionRequest(context.Background(), staffClaims("staff-2"), "v-missing", "duplicate registration")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateDeletionRequest(context.Background(), staffClaims("staff-2"), "v-gone", "duplicate registration")
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateDeletionRequest(context.Background(), nil, "v-1", "duplicate registration")
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestCreateRequestConflictsWithAnyPendingRequest(t *testing.T) {
	svc, _, _ := newRequestServiceFixture(liveVisitor())
	_, err := svc.CreateDeletionRequest(context.Background(), staffClaims("staff-2"), "v-1", "duplicate registration")
	require.NoError(t, err)

	_, err = svc.CreateEditRequest(context.Background(), staffClaims("staff-3"), "v-1", "phone number typo",
		map[string]json.RawMessage{"phone": json.RawMessage(`"999"`)})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "deletion")
}

func TestCreateRequestMapsIndexViolationToConflict(t *testing.T) {
	svc, store, _ := newRequestServiceFixture(liveVisitor())
	store.requests = append(store.requests, &models.VisitorRequest{ID: "req-x", VisitorID: "v-1", Status: models.RequestStatusPending})
	store.pendingFn = func(string) (*models.VisitorRequest, error) { return nil, sql.ErrNoRows }

	_, err := svc.CreateDeletionRequest(context.Background(), staffClaims("staff-2"), "v-1", "duplicate registration")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestConcurrentCreateAllowsExactlyOnePending(t *testing.T) {
	svc, store, _ := newRequestServiceFixture(liveVisitor())
	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateDeletionRequest(context.Background(), staffClaims(fmt.Sprintf("staff-%d", i)), "v-1", "duplicate registration")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if appErrors.FromError(err).Code == appErrors.ErrConflict.Code {
				conflicts++
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Len(t, store.requests, 1)
}

func TestCreateEditRequestNormalizesProposal(t *testing.T) {
	svc, _, _ := newRequestServiceFixture(liveVisitor())
	req, err := svc.CreateEditRequest(context.Background(), staffClaims("staff-2"), "v-1", "phone number typo",
		map[string]json.RawMessage{
			"phone":        json.RawMessage(`" 999 "`),
			"personToMeet": json.RawMessage(`{"kind":"custom","value":"Pak Budi"}`),
		})
	require.NoError(t, err)
	assert.Equal(t, models.RequestTypeEdit, req.Type)
	assert.Equal(t, models.FieldMap{"phone": "999", "person_to_meet": "Other: Pak Budi"}, req.ProposedChanges)

	_, err = svc.CreateEditRequest(context.Background(), staffClaims("staff-2"), "v-1", "phone number typo",
		map[string]json.RawMessage{"check_in_time": json.RawMessage(`"x"`)})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVisitorRequestServiceListScopesNonAdmins(t *testing.T) {
	svc, store, _ := newRequestServiceFixture(liveVisitor())
	store.requests = []*models.VisitorRequest{
		{ID: "req-1", VisitorID: "v-1", RequestedBy: "staff-1"},
		{ID: "req-2", VisitorID: "v-2", RequestedBy: "staff-2"},
	}

	items, page, err := svc.List(context.Background(), staffClaims("staff-1"), dto.RequestQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "staff-1", store.listed.RequestedBy)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.PageSize)

	items, _, err = svc.List(context.Background(), adminClaims(), dto.RequestQuery{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Empty(t, store.listed.RequestedBy)
	assert.Equal(t, 10, store.listed.Offset)

	_, _, err = svc.List(context.Background(), adminClaims(), dto.RequestQuery{Type: "purge"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVisitorRequestServiceGetScopesNonAdmins(t *testing.T) {
	svc, store, _ := newRequestServiceFixture(liveVisitor())
	store.requests = []*models.VisitorRequest{{ID: "req-1", VisitorID: "v-1", RequestedBy: "staff-1"}}

	_, err := svc.Get(context.Background(), staffClaims("staff-9"), "req-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	req, err := svc.Get(context.Background(), staffClaims("staff-1"), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)

	_, err = svc.Get(context.Background(), adminClaims(), "req-404")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
