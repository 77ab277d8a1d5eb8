package models

import "time"

// RequestSummary is the part of a pending request exposed to status readers.
type RequestSummary struct {
	ID              string      `json:"id"`
	Type            RequestType `json:"type"`
	Reason          string      `json:"reason"`
	RequestedBy     string      `json:"requestedBy"`
	RequestedByName string      `json:"requestedByName"`
	RequestedByRole UserRole    `json:"requestedByRole"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// PendingStatus tells a caller whether a visitor currently has a pending request.
// DeletionRequest is always serialized, as null when there is none.
type PendingStatus struct {
	HasPendingDeletion bool            `json:"hasPendingDeletion"`
	DeletionRequest    *RequestSummary `json:"deletionRequest"`
	HasPendingEdit     bool            `json:"hasPendingEdit"`
	EditRequest        *RequestSummary `json:"editRequest,omitempty"`
}

// StatusFromPending projects the pending request of a visitor, if any.
func StatusFromPending(req *VisitorRequest) PendingStatus {
	var status PendingStatus
	if req == nil || req.Status != RequestStatusPending {
		return status
	}
	switch req.Type {
	case RequestTypeDeletion:
		status.HasPendingDeletion = true
		status.DeletionRequest = req.Summary()
	case RequestTypeEdit:
		status.HasPendingEdit = true
		status.EditRequest = req.Summary()
	}
	return status
}
