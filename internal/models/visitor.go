package models

import (
	"fmt"
	"strconv"
	"time"
)

// Editable visitor fields, named after their columns.
const (
	FieldFullName          = "full_name"
	FieldPhone             = "phone"
	FieldEmail             = "email"
	FieldInstitution       = "institution"
	FieldAddress           = "address"
	FieldIDType            = "id_type"
	FieldIDNumber          = "id_number"
	FieldPurpose           = "purpose"
	FieldPersonToMeet      = "person_to_meet"
	FieldUnit              = "unit"
	FieldNotes             = "notes"
	FieldDocumentRequested = "document_requested"
	FieldDocumentType      = "document_type"
	FieldDocumentName      = "document_name"
	FieldDocumentNumber    = "document_number"
	FieldDocumentDetails   = "document_details"
	FieldDocumentStatus    = "document_status"
)

// EditableVisitorFields lists every field an edit may touch.
var EditableVisitorFields = []string{
	FieldFullName, FieldPhone, FieldEmail, FieldInstitution, FieldAddress,
	FieldIDType, FieldIDNumber, FieldPurpose, FieldPersonToMeet, FieldUnit, FieldNotes,
	FieldDocumentRequested, FieldDocumentType, FieldDocumentName, FieldDocumentNumber,
	FieldDocumentDetails, FieldDocumentStatus,
}

// VisitorRecord is a single front-desk visit.
type VisitorRecord struct {
	ID                string     `db:"id" json:"id"`
	FullName          string     `db:"full_name" json:"fullName"`
	Phone             string     `db:"phone" json:"phone"`
	Email             string     `db:"email" json:"email"`
	Institution       string     `db:"institution" json:"institution"`
	Address           string     `db:"address" json:"address"`
	IDType            string     `db:"id_type" json:"idType"`
	IDNumber          string     `db:"id_number" json:"idNumber"`
	Purpose           Choice     `db:"purpose" json:"purpose"`
	PersonToMeet      Choice     `db:"person_to_meet" json:"personToMeet"`
	Unit              Choice     `db:"unit" json:"unit"`
	Notes             string     `db:"notes" json:"notes"`
	DocumentRequested bool       `db:"document_requested" json:"documentRequested"`
	DocumentType      string     `db:"document_type" json:"documentType"`
	DocumentName      string     `db:"document_name" json:"documentName"`
	DocumentNumber    string     `db:"document_number" json:"documentNumber"`
	DocumentDetails   string     `db:"document_details" json:"documentDetails"`
	DocumentStatus    string     `db:"document_status" json:"documentStatus"`
	CheckInTime       time.Time  `db:"check_in_time" json:"checkInTime"`
	CheckOutTime      *time.Time `db:"check_out_time" json:"checkOutTime,omitempty"`
	DeletedAt         *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	InputByUserID     string     `db:"input_by_user_id" json:"inputByUserId"`
	CheckoutByUserID  *string    `db:"checkout_by_user_id" json:"checkoutByUserId,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsDeleted reports whether the record was soft-deleted.
func (v *VisitorRecord) IsDeleted() bool {
	return v.DeletedAt != nil
}

// IsCheckedOut reports whether checkout already happened.
func (v *VisitorRecord) IsCheckedOut() bool {
	return v.CheckOutTime != nil
}

// FieldValues returns the editable fields in their stored string form.
func (v *VisitorRecord) FieldValues() FieldMap {
	return FieldMap{
		FieldFullName:          v.FullName,
		FieldPhone:             v.Phone,
		FieldEmail:             v.Email,
		FieldInstitution:       v.Institution,
		FieldAddress:           v.Address,
		FieldIDType:            v.IDType,
		FieldIDNumber:          v.IDNumber,
		FieldPurpose:           v.Purpose.String(),
		FieldPersonToMeet:      v.PersonToMeet.String(),
		FieldUnit:              v.Unit.String(),
		FieldNotes:             v.Notes,
		FieldDocumentRequested: strconv.FormatBool(v.DocumentRequested),
		FieldDocumentType:      v.DocumentType,
		FieldDocumentName:      v.DocumentName,
		FieldDocumentNumber:    v.DocumentNumber,
		FieldDocumentDetails:   v.DocumentDetails,
		FieldDocumentStatus:    v.DocumentStatus,
	}
}

// SetField writes one editable field from its stored string form.
func (v *VisitorRecord) SetField(name, value string) error {
	switch name {
	case FieldFullName:
		v.FullName = value
	case FieldPhone:
		v.Phone = value
	case FieldEmail:
		v.Email = value
	case FieldInstitution:
		v.Institution = value
	case FieldAddress:
		v.Address = value
	case FieldIDType:
		v.IDType = value
	case FieldIDNumber:
		v.IDNumber = value
	case FieldPurpose:
		v.Purpose = ParseChoice(value)
	case FieldPersonToMeet:
		v.PersonToMeet = ParseChoice(value)
	case FieldUnit:
		v.Unit = ParseChoice(value)
	case FieldNotes:
		v.Notes = value
	case FieldDocumentRequested:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false", name)
		}
		v.DocumentRequested = b
	case FieldDocumentType:
		v.DocumentType = value
	case FieldDocumentName:
		v.DocumentName = value
	case FieldDocumentNumber:
		v.DocumentNumber = value
	case FieldDocumentDetails:
		v.DocumentDetails = value
	case FieldDocumentStatus:
		v.DocumentStatus = value
	default:
		return fmt.Errorf("unknown field %s", name)
	}
	return nil
}

// VisitorFilter constrains visitor listings.
type VisitorFilter struct {
	Search         string
	CheckedOut     *bool
	InputBy        string
	IncludeDeleted bool
	Page           int
	PageSize       int
}

// CanDeleteDirectly reports whether actor may soft-delete record without filing a request.
func CanDeleteDirectly(actor *JWTClaims, record *VisitorRecord) bool {
	if actor == nil || record == nil {
		return false
	}
	return actor.Role.IsAdmin() || record.InputByUserID == actor.UserID
}

// CanEditDirectly mirrors CanDeleteDirectly for edits.
func CanEditDirectly(actor *JWTClaims, record *VisitorRecord) bool {
	return CanDeleteDirectly(actor, record)
}
