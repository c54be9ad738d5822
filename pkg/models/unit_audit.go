package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Unit Audit Status
// ============================================================================

// UnitAuditStatus represents the audit stage of a unit within a cycle.
// State machine (forward only):
//
//	desk_evaluation → field_audit → finalized
type UnitAuditStatus string

const (
	UnitAuditStatusDeskEvaluation UnitAuditStatus = "desk_evaluation"
	UnitAuditStatusFieldAudit     UnitAuditStatus = "field_audit"
	UnitAuditStatusFinalized      UnitAuditStatus = "finalized"
)

// ValidUnitAuditStatuses contains all valid unit audit status values.
var ValidUnitAuditStatuses = []UnitAuditStatus{
	UnitAuditStatusDeskEvaluation,
	UnitAuditStatusFieldAudit,
	UnitAuditStatusFinalized,
}

// IsValidUnitAuditStatus checks if the given status is valid.
func IsValidUnitAuditStatus(s UnitAuditStatus) bool {
	for _, v := range ValidUnitAuditStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is the terminal state.
func (s UnitAuditStatus) IsTerminal() bool {
	return s == UnitAuditStatusFinalized
}

// CanTransitionTo returns true if transitioning from this status to the target is valid.
// A unit never regresses to an earlier stage.
func (s UnitAuditStatus) CanTransitionTo(target UnitAuditStatus) bool {
	switch s {
	case UnitAuditStatusDeskEvaluation:
		return target == UnitAuditStatusFieldAudit
	case UnitAuditStatusFieldAudit:
		return target == UnitAuditStatusFinalized
	default:
		return false
	}
}

// ============================================================================
// Submission Status
// ============================================================================

// SubmissionStatus represents the persisted state of a unit's evidence
// submission. The ready_to_submit state is never stored; it is derived on
// read from the instruments (a draft whose instruments all carry an answer
// and an evidence link reads as ready_to_submit).
type SubmissionStatus string

const (
	SubmissionStatusDraft         SubmissionStatus = "draft"
	SubmissionStatusReadyToSubmit SubmissionStatus = "ready_to_submit"
	SubmissionStatusSubmitted     SubmissionStatus = "submitted"
	SubmissionStatusReturned      SubmissionStatus = "returned"
	SubmissionStatusAccepted      SubmissionStatus = "accepted"
)

// StoredSubmissionStatuses contains the status values that are persisted.
var StoredSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusDraft,
	SubmissionStatusSubmitted,
	SubmissionStatusReturned,
	SubmissionStatusAccepted,
}

// IsStoredSubmissionStatus checks if the given status is one of the persisted values.
func IsStoredSubmissionStatus(s SubmissionStatus) bool {
	for _, v := range StoredSubmissionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// AllowsResponseEdits returns true if auditee response writes are legal in
// this submission state. Submitted and accepted submissions are locked.
func (s SubmissionStatus) AllowsResponseEdits() bool {
	return s == SubmissionStatusDraft || s == SubmissionStatusReturned
}

// EffectiveSubmissionStatus derives the externally visible submission status.
// complete reports whether every instrument of the unit carries both a
// non-empty answer and a non-empty evidence link.
func EffectiveSubmissionStatus(stored SubmissionStatus, complete bool) SubmissionStatus {
	if stored == SubmissionStatusDraft && complete {
		return SubmissionStatusReadyToSubmit
	}
	return stored
}

// ============================================================================
// Unit Audit Model
// ============================================================================

// UnitAudit tracks one unit's progress through an audit cycle. It carries the
// auditor pair assigned at activation; the pair is immutable afterwards.
type UnitAudit struct {
	ID               uuid.UUID        `json:"id"`
	CycleID          uuid.UUID        `json:"cycle_id"`
	UnitID           uuid.UUID        `json:"unit_id"`
	UnitName         string           `json:"unit_name"`
	Auditor1ID       string           `json:"auditor1_id"`
	Auditor2ID       string           `json:"auditor2_id"`
	Status           UnitAuditStatus  `json:"status"`
	SubmissionStatus SubmissionStatus `json:"submission_status"`
	FinalScore       *float64         `json:"final_score,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsAssignedAuditor reports whether userID is one of the unit's two auditors.
func (u *UnitAudit) IsAssignedAuditor(userID string) bool {
	return userID != "" && (userID == u.Auditor1ID || userID == u.Auditor2ID)
}
