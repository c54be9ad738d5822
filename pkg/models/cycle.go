package models

import (
	"time"

	"github.com/google/uuid"
)

// CycleStatus represents the lifecycle stage of an audit cycle.
// State machine:
//
//	planning → active → finished
type CycleStatus string

const (
	CycleStatusPlanning CycleStatus = "planning"
	CycleStatusActive   CycleStatus = "active"
	CycleStatusFinished CycleStatus = "finished"
)

// ValidCycleStatuses contains all valid cycle status values.
var ValidCycleStatuses = []CycleStatus{
	CycleStatusPlanning,
	CycleStatusActive,
	CycleStatusFinished,
}

// IsValidCycleStatus checks if the given status is valid.
func IsValidCycleStatus(s CycleStatus) bool {
	for _, v := range ValidCycleStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransitionTo returns true if transitioning from this status to the target is valid.
func (s CycleStatus) CanTransitionTo(target CycleStatus) bool {
	switch s {
	case CycleStatusPlanning:
		return target == CycleStatusActive
	case CycleStatusActive:
		return target == CycleStatusFinished
	default:
		return false
	}
}

// AuditCycle represents one institutional audit period. Units are activated
// into a cycle while it is active; a finished cycle accepts no new units.
type AuditCycle struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	StartDate time.Time   `json:"start_date"`
	EndDate   time.Time   `json:"end_date"`
	Status    CycleStatus `json:"status"`
	CreatedBy string      `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
