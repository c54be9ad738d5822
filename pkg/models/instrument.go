package models

import (
	"time"

	"github.com/google/uuid"
)

// Instrument is one audit question posed to a unit, created when the unit's
// planning is activated. The embedded answer and evidence link form the
// unit's submission record for the question.
type Instrument struct {
	ID               uuid.UUID `json:"id"`
	UnitAuditID      uuid.UUID `json:"unit_audit_id"`
	StandardCode     string    `json:"standard_code"`
	Question         string    `json:"question"`
	RequiredEvidence string    `json:"required_evidence"`
	Auditor1ID       string    `json:"auditor1_id"`
	Auditor2ID       string    `json:"auditor2_id"`
	AnswerText       string    `json:"answer_text"`
	EvidenceLink     string    `json:"evidence_link"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasResponse reports whether the instrument carries both a non-empty answer
// and a non-empty evidence link.
func (i *Instrument) HasResponse() bool {
	return i.AnswerText != "" && i.EvidenceLink != ""
}

// AuditorSlot returns 1 or 2 for an assigned auditor, 0 otherwise.
func (i *Instrument) AuditorSlot(userID string) int {
	switch {
	case userID != "" && userID == i.Auditor1ID:
		return 1
	case userID != "" && userID == i.Auditor2ID:
		return 2
	default:
		return 0
	}
}

// InstrumentDetail aggregates an instrument with its evaluations and field
// verification for read endpoints.
type InstrumentDetail struct {
	Instrument
	Evaluations       []Evaluation       `json:"evaluations"`
	FieldVerification *FieldVerification `json:"field_verification,omitempty"`
}
