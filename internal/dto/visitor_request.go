package dto

import (
	"encoding/json"

	"github.com/noah-isme/frontdesk-api/internal/models"
)

// CreateDeletionRequest asks an admin to delete a visitor record.
type CreateDeletionRequest struct {
	VisitorID string `json:"visitorId" validate:"required"`
	Reason    string `json:"reason"`
}

// CreateEditRequest proposes field changes for a visitor record. Keys may be column
// names or their camelCase form.
type CreateEditRequest struct {
	VisitorID       string                     `json:"visitorId" validate:"required"`
	Reason          string                     `json:"reason"`
	ProposedChanges map[string]json.RawMessage `json:"proposedChanges"`
}

// RejectRequest carries the optional rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// BatchStatusRequest asks for the pending status of many visitors at once.
type BatchStatusRequest struct {
	VisitorIDs []string `json:"visitorIds"`
}

// RequestQuery mirrors supported ledger listing filters.
type RequestQuery struct {
	Status    []models.RequestStatus
	Type      models.RequestType
	VisitorID string
	Page      int
	PageSize  int
}
