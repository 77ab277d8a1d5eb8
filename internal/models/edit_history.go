package models

import "time"

// EditHistoryEntry records one applied edit. Every key in Changes is also in Original.
type EditHistoryEntry struct {
	ID           string    `db:"id" json:"id"`
	VisitorID    string    `db:"visitor_id" json:"visitorId"`
	EditedAt     time.Time `db:"edited_at" json:"editedAt"`
	EditedBy     string    `db:"edited_by" json:"editedBy"`
	EditedByName string    `db:"edited_by_name" json:"editedByName"`
	EditedByRole UserRole  `db:"edited_by_role" json:"editedByRole"`
	Changes      FieldMap  `db:"changes" json:"changes"`
	Original     FieldMap  `db:"original" json:"original"`
	RequestID    *string   `db:"request_id" json:"requestId,omitempty"`
}
