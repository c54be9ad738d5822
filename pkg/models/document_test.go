package models

import (
	"testing"
	"time"
)

func TestDocumentStatus_NextStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   DocumentStatus
		action   DocumentAction
		want     DocumentStatus
		legal    bool
	}{
		{"send a draft", DocumentStatusDraft, DocumentActionSend, DocumentStatusSentToAuditee, true},
		{"resend after revision", DocumentStatusRevisionRequested, DocumentActionSend, DocumentStatusSentToAuditee, true},
		{"auditee agrees", DocumentStatusSentToAuditee, DocumentActionAgree, DocumentStatusAgreedByAuditee, true},
		{"auditee requests revision", DocumentStatusSentToAuditee, DocumentActionRequestRevision, DocumentStatusRevisionRequested, true},
		{"auditor signs an agreed document", DocumentStatusAgreedByAuditee, DocumentActionSign, DocumentStatusAgreedByAuditee, true},
		{"cannot agree to a draft", DocumentStatusDraft, DocumentActionAgree, "", false},
		{"cannot sign before agreement", DocumentStatusSentToAuditee, DocumentActionSign, "", false},
		{"cannot revise an agreed document", DocumentStatusAgreedByAuditee, DocumentActionRequestRevision, "", false},
		{"finalized accepts no actions", DocumentStatusFinalized, DocumentActionSign, "", false},
		{"cannot resend while with auditee", DocumentStatusSentToAuditee, DocumentActionSend, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := tt.status.NextStatus(tt.action)
			if ok != tt.legal {
				t.Fatalf("NextStatus(%s, %s) legal = %v, want %v", tt.status, tt.action, ok, tt.legal)
			}
			if tt.legal && next != tt.want {
				t.Errorf("NextStatus(%s, %s) = %s, want %s", tt.status, tt.action, next, tt.want)
			}
		})
	}
}

func TestAuditDocument_CanRequestRevision(t *testing.T) {
	doc := &AuditDocument{}
	for i := 0; i < MaxRevisionRequests; i++ {
		if !doc.CanRequestRevision() {
			t.Fatalf("revision %d should be allowed under the cap", i+1)
		}
		doc.RevisionCount++
	}
	if doc.CanRequestRevision() {
		t.Errorf("revision %d should be denied, cap is %d", doc.RevisionCount+1, MaxRevisionRequests)
	}
}

func TestAuditDocument_BothAuditorsSigned(t *testing.T) {
	sig := &Signature{SignedBy: "auditor-1", SignedAt: time.Now()}

	doc := &AuditDocument{}
	if doc.BothAuditorsSigned() {
		t.Error("no signatures must not read as signed")
	}

	doc.Auditor1Signature = sig
	if doc.BothAuditorsSigned() {
		t.Error("one auditor signature must not read as signed")
	}

	doc.Auditor2Signature = &Signature{SignedBy: "auditor-2", SignedAt: time.Now()}
	if !doc.BothAuditorsSigned() {
		t.Error("two auditor signatures must read as signed")
	}

	// The auditee signature has no bearing on finalization.
	doc.Auditor1Signature = nil
	doc.AuditeeSignature = sig
	if doc.BothAuditorsSigned() {
		t.Error("an auditee signature must not substitute for an auditor's")
	}
}

func TestAuditDocument_AppendHistory(t *testing.T) {
	doc := &AuditDocument{}
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	doc.AppendHistory("u1", "First", "sent the document", first)
	doc.AppendHistory("u2", "Second", "agreed", second)

	if len(doc.HistoryLog) != 2 {
		t.Fatalf("history length = %d, want 2", len(doc.HistoryLog))
	}
	if doc.HistoryLog[0].Actor != "u2" {
		t.Errorf("newest entry first, got actor %s", doc.HistoryLog[0].Actor)
	}
	if doc.HistoryLog[1].Actor != "u1" {
		t.Errorf("oldest entry last, got actor %s", doc.HistoryLog[1].Actor)
	}
}

func TestAuditDocument_SignatureSlot(t *testing.T) {
	unit := &UnitAudit{Auditor1ID: "auditor-1", Auditor2ID: "auditor-2"}
	doc := &AuditDocument{}

	slot, err := doc.SignatureSlot(unit, "auditor-1")
	if err != nil {
		t.Fatalf("SignatureSlot(auditor-1) error: %v", err)
	}
	*slot = &Signature{SignedBy: "auditor-1"}
	if doc.Auditor1Signature == nil || doc.Auditor1Signature.SignedBy != "auditor-1" {
		t.Error("slot 1 write did not land on Auditor1Signature")
	}

	slot, err = doc.SignatureSlot(unit, "auditor-2")
	if err != nil {
		t.Fatalf("SignatureSlot(auditor-2) error: %v", err)
	}
	*slot = &Signature{SignedBy: "auditor-2"}
	if doc.Auditor2Signature == nil || doc.Auditor2Signature.SignedBy != "auditor-2" {
		t.Error("slot 2 write did not land on Auditor2Signature")
	}

	if _, err := doc.SignatureSlot(unit, "intruder"); err == nil {
		t.Error("an unassigned user must not get a signature slot")
	}
	if _, err := doc.SignatureSlot(unit, ""); err == nil {
		t.Error("an empty user ID must not get a signature slot")
	}
}

func TestPredicateFor(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{4.0, "exceeds standard"},
		{3.5, "exceeds standard"},
		{3.49, "meets standard"},
		{2.0, "meets standard"},
		{0.0, "meets standard"},
	}

	for _, tt := range tests {
		if got := PredicateFor(tt.score); got != tt.want {
			t.Errorf("PredicateFor(%.2f) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
