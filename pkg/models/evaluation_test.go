package models

import "testing"

func scorePtr(v int) *int { return &v }

func TestEvaluationsConflict(t *testing.T) {
	tests := []struct {
		name string
		a    *Evaluation
		b    *Evaluation
		want bool
	}{
		{
			"equal approved scores agree",
			&Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(3), IsComplete: true},
			&Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(3), IsComplete: true},
			false,
		},
		{
			"scores one apart conflict",
			&Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(3), IsComplete: true},
			&Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(4), IsComplete: true},
			true,
		},
		{
			"approved versus rejected conflicts",
			&Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(4), IsComplete: true},
			&Evaluation{Status: EvaluationStatusRejected, RejectionNote: "illegible scan", IsComplete: true},
			true,
		},
		{
			"rejected versus approved conflicts",
			&Evaluation{Status: EvaluationStatusRejected, RejectionNote: "wrong period", IsComplete: true},
			&Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(2), IsComplete: true},
			true,
		},
		{
			"matching rejections agree",
			&Evaluation{Status: EvaluationStatusRejected, RejectionNote: "missing", IsComplete: true},
			&Evaluation{Status: EvaluationStatusRejected, RejectionNote: "missing", IsComplete: true},
			false,
		},
		{
			"incomplete pair never conflicts",
			&Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(0), IsComplete: false},
			&Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(4), IsComplete: true},
			false,
		},
		{
			"both incomplete never conflicts",
			&Evaluation{Status: EvaluationStatusUploaded, IsComplete: false},
			&Evaluation{Status: EvaluationStatusMissing, IsComplete: false},
			false,
		},
		{
			"nil slot never conflicts",
			nil,
			&Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(4), IsComplete: true},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluationsConflict(tt.a, tt.b); got != tt.want {
				t.Errorf("EvaluationsConflict() = %v, want %v", got, tt.want)
			}
			// The rule is symmetric.
			if got := EvaluationsConflict(tt.b, tt.a); got != tt.want {
				t.Errorf("EvaluationsConflict() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDoublyApproved(t *testing.T) {
	approved := func() *Evaluation {
		return &Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(3), IsComplete: true}
	}

	if !DoublyApproved(approved(), approved()) {
		t.Error("two complete approvals must count as doubly approved")
	}

	rejected := &Evaluation{Status: EvaluationStatusRejected, RejectionNote: "n/a", IsComplete: true}
	if DoublyApproved(approved(), rejected) {
		t.Error("a rejection on either side must not count")
	}

	pending := &Evaluation{Status: EvaluationStatusApproved, Score: scorePtr(3), IsComplete: false}
	if DoublyApproved(approved(), pending) {
		t.Error("an incomplete slot must not count")
	}

	if DoublyApproved(approved(), nil) {
		t.Error("a nil slot must not count")
	}
}

func TestIsValidEvaluationStatus(t *testing.T) {
	for _, s := range ValidEvaluationStatuses {
		if !IsValidEvaluationStatus(s) {
			t.Errorf("IsValidEvaluationStatus(%s) = false, want true", s)
		}
	}
	if IsValidEvaluationStatus("pending") {
		t.Error("IsValidEvaluationStatus(pending) = true, want false")
	}
}
