package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Document Status & Actions
// ============================================================================

// DocumentStatus represents the stage of an administrative audit document.
// State machine:
//
//	draft → sent_to_auditee → agreed_by_auditee → finalized
//	              ↓ (request_revision, at most twice)
//	     revision_requested → (send) → sent_to_auditee
//
// finalized is derived: an agreed document becomes finalized when both
// auditor signature slots are filled.
type DocumentStatus string

const (
	DocumentStatusDraft             DocumentStatus = "draft"
	DocumentStatusSentToAuditee     DocumentStatus = "sent_to_auditee"
	DocumentStatusRevisionRequested DocumentStatus = "revision_requested"
	DocumentStatusAgreedByAuditee   DocumentStatus = "agreed_by_auditee"
	DocumentStatusFinalized         DocumentStatus = "finalized"
)

// DocumentAction is a workflow action applied to an audit document.
type DocumentAction string

const (
	DocumentActionSend            DocumentAction = "send"
	DocumentActionAgree           DocumentAction = "agree"
	DocumentActionRequestRevision DocumentAction = "request_revision"
	DocumentActionSign            DocumentAction = "sign"
)

// MaxRevisionRequests caps how many times an auditee may push a document
// back for revision. After the cap the auditee can only agree.
const MaxRevisionRequests = 2

// documentTransitions is the single source of truth for which action is
// legal in which status and where it leads. Signing keeps the document in
// agreed_by_auditee; finalization is derived from the signature slots.
var documentTransitions = map[DocumentStatus]map[DocumentAction]DocumentStatus{
	DocumentStatusDraft: {
		DocumentActionSend: DocumentStatusSentToAuditee,
	},
	DocumentStatusRevisionRequested: {
		DocumentActionSend: DocumentStatusSentToAuditee,
	},
	DocumentStatusSentToAuditee: {
		DocumentActionAgree:           DocumentStatusAgreedByAuditee,
		DocumentActionRequestRevision: DocumentStatusRevisionRequested,
	},
	DocumentStatusAgreedByAuditee: {
		DocumentActionSign: DocumentStatusAgreedByAuditee,
	},
}

// NextStatus returns the status the document moves to when action is applied
// in status s. The second return is false when the action is illegal there.
func (s DocumentStatus) NextStatus(action DocumentAction) (DocumentStatus, bool) {
	next, ok := documentTransitions[s][action]
	return next, ok
}

// ============================================================================
// Document Model
// ============================================================================

// Signature records one filled signature slot. A filled slot is never
// overwritten; re-signing is idempotent.
type Signature struct {
	SignedBy string    `json:"signed_by"`
	Name     string    `json:"name"`
	SignedAt time.Time `json:"signed_at"`
}

// RevisionEntry records one revision request from the auditee.
type RevisionEntry struct {
	RequestedBy   string    `json:"requested_by"`
	Justification string    `json:"justification"`
	RequestedAt   time.Time `json:"requested_at"`
}

// HistoryEntry is one append-only line in the document's history log.
type HistoryEntry struct {
	Actor     string    `json:"actor"`
	ActorName string    `json:"actor_name"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// StandardScore is the mean desk score for one standard in the document's
// content snapshot.
type StandardScore struct {
	StandardCode string  `json:"standard_code"`
	Score        float64 `json:"score"`
}

// DocumentContent is the frozen snapshot embedded in the document at
// creation. It never changes afterwards.
type DocumentContent struct {
	UnitName         string          `json:"unit_name"`
	OverallScore     float64         `json:"overall_score"`
	Predicate        string          `json:"predicate"`
	ScoreSummary     []StandardScore `json:"score_summary"`
	NarrativeSummary string          `json:"narrative_summary"`
	Auditor1Name     string          `json:"auditor1_name"`
	Auditor2Name     string          `json:"auditor2_name"`
	AuditeeName      string          `json:"auditee_name"`
}

// PredicateThreshold separates the two result predicates on the 0..4 scale.
const PredicateThreshold = 3.5

// PredicateFor maps an overall score to its result predicate.
func PredicateFor(score float64) string {
	if score >= PredicateThreshold {
		return "exceeds standard"
	}
	return "meets standard"
}

// AuditDocument is the signed administrative record closing a unit's audit.
// One document exists per finalized unit audit.
type AuditDocument struct {
	ID                uuid.UUID       `json:"id"`
	UnitAuditID       uuid.UUID       `json:"unit_audit_id"`
	Status            DocumentStatus  `json:"status"`
	Content           DocumentContent `json:"content"`
	RevisionCount     int             `json:"revision_count"`
	RevisionHistory   []RevisionEntry `json:"revision_history"`
	Auditor1Signature *Signature      `json:"auditor1_signature,omitempty"`
	Auditor2Signature *Signature      `json:"auditor2_signature,omitempty"`
	AuditeeSignature  *Signature      `json:"auditee_signature,omitempty"`
	HistoryLog        []HistoryEntry  `json:"history_log"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// BothAuditorsSigned reports whether both auditor signature slots are filled.
func (d *AuditDocument) BothAuditorsSigned() bool {
	return d.Auditor1Signature != nil && d.Auditor2Signature != nil
}

// CanRequestRevision reports whether the revision cap still allows a request.
func (d *AuditDocument) CanRequestRevision() bool {
	return d.RevisionCount < MaxRevisionRequests
}

// AppendHistory adds an entry to the front of the history log, newest first.
func (d *AuditDocument) AppendHistory(actor, actorName, action string, at time.Time) {
	entry := HistoryEntry{Actor: actor, ActorName: actorName, Action: action, Timestamp: at}
	d.HistoryLog = append([]HistoryEntry{entry}, d.HistoryLog...)
}

// SignatureSlot returns a pointer to the auditor signature slot (1 or 2)
// owned by userID on the given unit audit, or an error when userID is not
// one of the pair.
func (d *AuditDocument) SignatureSlot(unit *UnitAudit, userID string) (**Signature, error) {
	switch {
	case userID != "" && userID == unit.Auditor1ID:
		return &d.Auditor1Signature, nil
	case userID != "" && userID == unit.Auditor2ID:
		return &d.Auditor2Signature, nil
	default:
		return nil, fmt.Errorf("user %s is not an assigned auditor", userID)
	}
}
