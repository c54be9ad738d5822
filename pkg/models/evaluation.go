package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ScoreConflictThreshold is the maximum allowed difference between the two
// desk scores of an instrument before the pair counts as conflicting.
// Scores are integers on a 0..4 scale, so any disagreement trips it.
const ScoreConflictThreshold = 0.25

// EvaluationStatus represents an auditor's judgement of the evidence for one
// instrument.
type EvaluationStatus string

const (
	EvaluationStatusMissing  EvaluationStatus = "missing"
	EvaluationStatusUploaded EvaluationStatus = "uploaded"
	EvaluationStatusApproved EvaluationStatus = "approved"
	EvaluationStatusRejected EvaluationStatus = "rejected"
)

// ValidEvaluationStatuses contains all valid evaluation status values.
var ValidEvaluationStatuses = []EvaluationStatus{
	EvaluationStatusMissing,
	EvaluationStatusUploaded,
	EvaluationStatusApproved,
	EvaluationStatusRejected,
}

// IsValidEvaluationStatus checks if the given status is valid.
func IsValidEvaluationStatus(s EvaluationStatus) bool {
	for _, v := range ValidEvaluationStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// MinDeskScore and MaxDeskScore bound the desk score scale.
const (
	MinDeskScore = 0
	MaxDeskScore = 4
)

// Evaluation is one auditor's desk evaluation slot for one instrument. Two
// rows exist per instrument, one per assigned auditor, created empty at
// planning activation. Once IsComplete is set the row is immutable.
type Evaluation struct {
	ID            uuid.UUID        `json:"id"`
	InstrumentID  uuid.UUID        `json:"instrument_id"`
	AuditorID     string           `json:"auditor_id"`
	Status        EvaluationStatus `json:"status"`
	Score         *int             `json:"score,omitempty"`
	Note          string           `json:"note"`
	RejectionNote string           `json:"rejection_note"`
	IsComplete    bool             `json:"is_complete"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// EvaluationsConflict reports whether a completed pair of evaluations
// disagrees. A pair conflicts only when both sides are complete and either
// the scores differ by more than the threshold or one side approved while
// the other rejected.
func EvaluationsConflict(a, b *Evaluation) bool {
	if a == nil || b == nil || !a.IsComplete || !b.IsComplete {
		return false
	}

	if a.Score != nil && b.Score != nil {
		if math.Abs(float64(*a.Score)-float64(*b.Score)) > ScoreConflictThreshold {
			return true
		}
	}

	approvedRejected := a.Status == EvaluationStatusApproved && b.Status == EvaluationStatusRejected
	rejectedApproved := a.Status == EvaluationStatusRejected && b.Status == EvaluationStatusApproved
	return approvedRejected || rejectedApproved
}

// DoublyApproved reports whether both evaluation slots are complete and
// approved. Only doubly approved instruments are eligible for field
// verification.
func DoublyApproved(a, b *Evaluation) bool {
	return a != nil && b != nil &&
		a.IsComplete && b.IsComplete &&
		a.Status == EvaluationStatusApproved && b.Status == EvaluationStatusApproved
}
