package models

import "time"

// RequestType distinguishes deletion and edit proposals.
type RequestType string

const (
	RequestTypeDeletion RequestType = "deletion"
	RequestTypeEdit     RequestType = "edit"
)

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	return t == RequestTypeDeletion || t == RequestTypeEdit
}

// RequestStatus captures the request lifecycle. Approved and rejected are terminal.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// VisitorRequest is a proposed edit or deletion of a visitor record awaiting admin review.
type VisitorRequest struct {
	ID              string        `db:"id" json:"id"`
	VisitorID       string        `db:"visitor_id" json:"visitorId"`
	Type            RequestType   `db:"type" json:"type"`
	Status          RequestStatus `db:"status" json:"status"`
	Reason          string        `db:"reason" json:"reason"`
	ProposedChanges FieldMap      `db:"proposed_changes" json:"proposedChanges,omitempty"`
	RequestedBy     string        `db:"requested_by" json:"requestedBy"`
	RequestedByName string        `db:"requested_by_name" json:"requestedByName"`
	RequestedByRole UserRole      `db:"requested_by_role" json:"requestedByRole"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	ResolvedBy      *string       `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time    `db:"resolved_at" json:"resolvedAt,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejectionReason,omitempty"`
}

// Summary returns the compact form used by status lookups.
func (r *VisitorRequest) Summary() *RequestSummary {
	if r == nil {
		return nil
	}
	return &RequestSummary{
		ID:              r.ID,
		Type:            r.Type,
		Reason:          r.Reason,
		RequestedBy:     r.RequestedBy,
		RequestedByName: r.RequestedByName,
		RequestedByRole: r.RequestedByRole,
		CreatedAt:       r.CreatedAt,
	}
}

// RequestFilter constrains ledger listings.
type RequestFilter struct {
	Status      []RequestStatus
	Type        RequestType
	VisitorID   string
	RequestedBy string
	Limit       int
	Offset      int
}

// ResolvedRequest is the outcome of an approval: the request in its terminal state and
// the record after the side effect was applied.
type ResolvedRequest struct {
	Request *VisitorRequest `json:"request"`
	Visitor *VisitorRecord  `json:"visitor,omitempty"`
}
