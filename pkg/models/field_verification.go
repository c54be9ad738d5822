package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldVerification records the on-site check of one doubly approved
// instrument. At most one row exists per instrument; repeated writes before
// finalization overwrite it.
type FieldVerification struct {
	ID           uuid.UUID `json:"id"`
	InstrumentID uuid.UUID `json:"instrument_id"`
	AuditorID    string    `json:"auditor_id"`
	Note         string    `json:"note"`
	Score        *int      `json:"score,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsComplete reports whether the verification carries both a score and a
// non-empty note, the finalization checklist requirement.
func (f *FieldVerification) IsComplete() bool {
	return f != nil && f.Score != nil && f.Note != ""
}
