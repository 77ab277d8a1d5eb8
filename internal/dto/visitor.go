package dto

import "github.com/noah-isme/frontdesk-api/internal/models"

// CheckInRequest registers a new visit.
type CheckInRequest struct {
	FullName          string        `json:"fullName" validate:"required,max=150"`
	Phone             string        `json:"phone" validate:"omitempty,max=30"`
	Email             string        `json:"email" validate:"omitempty,email"`
	Institution       string        `json:"institution" validate:"max=150"`
	Address           string        `json:"address"`
	IDType            string        `json:"idType" validate:"max=30"`
	IDNumber          string        `json:"idNumber" validate:"max=60"`
	Purpose           models.Choice `json:"purpose"`
	PersonToMeet      models.Choice `json:"personToMeet"`
	Unit              models.Choice `json:"unit"`
	Notes             string        `json:"notes"`
	DocumentRequested bool          `json:"documentRequested"`
	DocumentType      string        `json:"documentType"`
	DocumentName      string        `json:"documentName"`
	DocumentNumber    string        `json:"documentNumber"`
	DocumentDetails   string        `json:"documentDetails"`
}

// CheckoutRequest closes a visit. Document fields are often completed at this point.
type CheckoutRequest struct {
	DocumentRequested *bool   `json:"documentRequested"`
	DocumentType      *string `json:"documentType"`
	DocumentName      *string `json:"documentName"`
	DocumentNumber    *string `json:"documentNumber"`
	DocumentDetails   *string `json:"documentDetails"`
	DocumentStatus    *string `json:"documentStatus"`
}

// DeleteVisitorRequest carries the reason used when a direct delete is routed to review.
type DeleteVisitorRequest struct {
	Reason string `json:"reason"`
}

// VisitorQuery mirrors supported visitor listing filters.
type VisitorQuery struct {
	Search         string
	Status         string
	IncludeDeleted bool
	Page           int
	PageSize       int
}

// Visitor list status filters.
const (
	VisitorStatusCheckedIn  = "checked_in"
	VisitorStatusCheckedOut = "checked_out"
)

// DeleteVisitorResult reports whether a delete was applied or queued for review.
// Superseded is the pending request a direct delete rejected, if any.
type DeleteVisitorResult struct {
	Deleted    bool                   `json:"deleted"`
	Visitor    *models.VisitorRecord  `json:"visitor,omitempty"`
	Request    *models.VisitorRequest `json:"request,omitempty"`
	Superseded *models.VisitorRequest `json:"supersededRequest,omitempty"`
}
