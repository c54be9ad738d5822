package models

import (
	"time"

	"github.com/google/uuid"
)

// Activity action names written by the workflow services.
const (
	ActivityActionPlanningActivated  = "planning_activated"
	ActivityActionResponseSaved      = "response_saved"
	ActivityActionSubmissionSent     = "submission_sent"
	ActivityActionSubmissionReturned = "submission_returned"
	ActivityActionSubmissionAccepted = "submission_accepted"
	ActivityActionDeskScoreRecorded  = "desk_score_recorded"
	ActivityActionDeskStageFinalized = "desk_stage_finalized"
	ActivityActionFieldVerified      = "field_verification_recorded"
	ActivityActionUnitFinalized      = "unit_finalized"
	ActivityActionDocumentCreated    = "document_created"
	ActivityActionDocumentSent       = "document_sent"
	ActivityActionDocumentAgreed     = "document_agreed"
	ActivityActionRevisionRequested  = "revision_requested"
	ActivityActionDocumentSigned     = "document_signed"
	ActivityActionStatusOverridden   = "status_overridden"
)

// ActivityEntry is one line in a unit's append-only action trail.
type ActivityEntry struct {
	ID          uuid.UUID `json:"id"`
	UnitAuditID uuid.UUID `json:"unit_audit_id"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	Action      string    `json:"action"`
	Details     string    `json:"details,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
