package models

import "testing"

func TestCycleStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name   string
		from   CycleStatus
		target CycleStatus
		want   bool
	}{
		{"planning to active", CycleStatusPlanning, CycleStatusActive, true},
		{"active to finished", CycleStatusActive, CycleStatusFinished, true},
		{"planning to finished skips a stage", CycleStatusPlanning, CycleStatusFinished, false},
		{"active back to planning", CycleStatusActive, CycleStatusPlanning, false},
		{"finished is terminal", CycleStatusFinished, CycleStatusActive, false},
		{"finished to planning", CycleStatusFinished, CycleStatusPlanning, false},
		{"no self transition", CycleStatusActive, CycleStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.from.CanTransitionTo(tt.target)
			if got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.target, got, tt.want)
			}
		})
	}
}

func TestIsValidCycleStatus(t *testing.T) {
	for _, s := range ValidCycleStatuses {
		if !IsValidCycleStatus(s) {
			t.Errorf("IsValidCycleStatus(%s) = false, want true", s)
		}
	}
	if IsValidCycleStatus("archived") {
		t.Error("IsValidCycleStatus(archived) = true, want false")
	}
}
