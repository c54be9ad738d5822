package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/apperrors"
	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/database"
	"github.com/siapepi/audit-engine/pkg/models"
	"github.com/siapepi/audit-engine/pkg/repositories"
)

// DeskScoreInput is one auditor's write to their evaluation slot.
type DeskScoreInput struct {
	Status        models.EvaluationStatus `json:"status"`
	Score         *int                    `json:"score,omitempty"`
	Note          string                  `json:"note"`
	RejectionNote string                  `json:"rejection_note"`
	IsComplete    bool                    `json:"is_complete"`
}

// DeskChecks is the recomputed gate state for the desk evaluation stage.
type DeskChecks struct {
	AllEvaluated bool        `json:"all_evaluated"`
	NoConflicts  bool        `json:"no_conflicts"`
	Conflicts    []uuid.UUID `json:"conflicts"`
}

// Passed reports whether the desk stage may close.
func (c *DeskChecks) Passed() bool {
	return c.AllEvaluated && c.NoConflicts
}

// EvaluationService owns the dual-auditor desk evaluation stage: slot
// writes, conflict detection, and the gate into the field stage.
type EvaluationService interface {
	// SetDeskScore writes the calling auditor's own evaluation slot for an
	// instrument. Completed slots are immutable; peer slots unreachable.
	SetDeskScore(ctx context.Context, instrumentID uuid.UUID, input *DeskScoreInput) (*models.Evaluation, error)

	// Checks recomputes the desk gate from persisted state.
	Checks(ctx context.Context, unitAuditID uuid.UUID) (*DeskChecks, error)

	// FinalizeDeskEvaluation closes the desk stage and advances the unit to
	// field_audit. Checks are recomputed inside the transaction; a failing
	// precondition is reported as a StateError naming it.
	FinalizeDeskEvaluation(ctx context.Context, unitAuditID uuid.UUID) error
}

type evaluationService struct {
	units       repositories.UnitAuditRepository
	instruments repositories.InstrumentRepository
	evaluations repositories.EvaluationRepository
	activity    ActivityService
	logger      *zap.Logger
}

// NewEvaluationService creates a new EvaluationService.
func NewEvaluationService(
	units repositories.UnitAuditRepository,
	instruments repositories.InstrumentRepository,
	evaluations repositories.EvaluationRepository,
	activity ActivityService,
	logger *zap.Logger,
) EvaluationService {
	return &evaluationService{
		units:       units,
		instruments: instruments,
		evaluations: evaluations,
		activity:    activity,
		logger:      logger.Named("evaluation-service"),
	}
}

var _ EvaluationService = (*evaluationService)(nil)

func (s *evaluationService) SetDeskScore(ctx context.Context, instrumentID uuid.UUID, input *DeskScoreInput) (*models.Evaluation, error) {
	if err := validateDeskScoreInput(input); err != nil {
		return nil, err
	}

	inst, err := s.instruments.GetByID(ctx, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("get instrument: %w", err)
	}
	if inst == nil {
		return nil, apperrors.ErrNotFound
	}

	auditorID := auth.GetUserIDFromContext(ctx)
	if inst.AuditorSlot(auditorID) == 0 {
		return nil, apperrors.Validationf("only an assigned auditor may score this instrument")
	}

	unit, err := s.units.GetByID(ctx, inst.UnitAuditID)
	if err != nil {
		return nil, fmt.Errorf("get unit audit: %w", err)
	}
	if unit == nil {
		return nil, apperrors.ErrNotFound
	}
	if unit.Status != models.UnitAuditStatusDeskEvaluation {
		return nil, apperrors.Statef("unit_status",
			"desk scores can only be recorded during desk evaluation, unit is %s", unit.Status)
	}
	if unit.SubmissionStatus != models.SubmissionStatusSubmitted &&
		unit.SubmissionStatus != models.SubmissionStatusAccepted {
		return nil, apperrors.Statef("submission_status",
			"the unit's evidence has not been submitted yet")
	}

	eval, err := s.evaluations.GetByInstrumentAndAuditor(ctx, instrumentID, auditorID)
	if err != nil {
		return nil, fmt.Errorf("get evaluation slot: %w", err)
	}
	if eval == nil {
		return nil, apperrors.Statef("evaluation_slot", "evaluation slot missing for this auditor")
	}
	if eval.IsComplete {
		return nil, apperrors.Statef("evaluation_complete", "a completed evaluation is immutable")
	}

	eval.Status = input.Status
	eval.Score = input.Score
	eval.Note = input.Note
	eval.RejectionNote = input.RejectionNote
	eval.IsComplete = input.IsComplete

	if err := s.evaluations.UpdateSlot(ctx, eval); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, unit.ID, models.ActivityActionDeskScoreRecorded, inst.StandardCode)
	return eval, nil
}

func validateDeskScoreInput(input *DeskScoreInput) error {
	if !models.IsValidEvaluationStatus(input.Status) {
		return apperrors.Validationf("invalid evaluation status: %s", input.Status)
	}
	if input.Score != nil && (*input.Score < models.MinDeskScore || *input.Score > models.MaxDeskScore) {
		return apperrors.Validationf("score must be between %d and %d",
			models.MinDeskScore, models.MaxDeskScore)
	}
	if input.IsComplete {
		switch input.Status {
		case models.EvaluationStatusApproved:
			if input.Score == nil {
				return apperrors.Validationf("a completed approval requires a score")
			}
		case models.EvaluationStatusRejected:
			if input.RejectionNote == "" {
				return apperrors.Validationf("a completed rejection requires a rejection note")
			}
		default:
			return apperrors.Validationf("a completed evaluation must be approved or rejected")
		}
	}
	return nil
}

func (s *evaluationService) Checks(ctx context.Context, unitAuditID uuid.UUID) (*DeskChecks, error) {
	unit, err := s.units.GetByID(ctx, unitAuditID)
	if err != nil {
		return nil, fmt.Errorf("get unit audit: %w", err)
	}
	if unit == nil {
		return nil, apperrors.ErrNotFound
	}
	return s.computeChecks(ctx, unit)
}

// computeChecks derives the desk gate from the persisted evaluations only,
// never from client-supplied flags.
func (s *evaluationService) computeChecks(ctx context.Context, unit *models.UnitAudit) (*DeskChecks, error) {
	instruments, err := s.instruments.ListByUnitAudit(ctx, unit.ID)
	if err != nil {
		return nil, err
	}
	evaluations, err := s.evaluations.ListByUnitAudit(ctx, unit.ID)
	if err != nil {
		return nil, err
	}

	pairs := make(map[uuid.UUID]map[string]*models.Evaluation)
	for _, eval := range evaluations {
		if pairs[eval.InstrumentID] == nil {
			pairs[eval.InstrumentID] = make(map[string]*models.Evaluation)
		}
		pairs[eval.InstrumentID][eval.AuditorID] = eval
	}

	checks := &DeskChecks{AllEvaluated: true, NoConflicts: true, Conflicts: []uuid.UUID{}}
	for _, inst := range instruments {
		slots := pairs[inst.ID]
		e1, e2 := slots[inst.Auditor1ID], slots[inst.Auditor2ID]
		if e1 == nil || e2 == nil {
			return nil, apperrors.Statef("evaluation_slot",
				"peer evaluation missing for instrument %s", inst.ID)
		}
		if !e1.IsComplete || !e2.IsComplete {
			checks.AllEvaluated = false
		}
		if models.EvaluationsConflict(e1, e2) {
			checks.NoConflicts = false
			checks.Conflicts = append(checks.Conflicts, inst.ID)
		}
	}
	return checks, nil
}

func (s *evaluationService) FinalizeDeskEvaluation(ctx context.Context, unitAuditID uuid.UUID) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	err := scope.WithTx(ctx, func(ctx context.Context) error {
		unit, err := s.units.GetByID(ctx, unitAuditID)
		if err != nil {
			return fmt.Errorf("get unit audit: %w", err)
		}
		if unit == nil {
			return apperrors.ErrNotFound
		}

		claims, _ := auth.GetClaims(ctx)
		if claims == nil || (!unit.IsAssignedAuditor(claims.Subject) && !claims.HasRole(auth.RoleAdmin)) {
			return apperrors.Validationf("only an assigned auditor or an administrator may close the desk stage")
		}

		if unit.Status != models.UnitAuditStatusDeskEvaluation {
			return apperrors.Statef("unit_status",
				"desk stage already closed, unit is %s", unit.Status)
		}
		if unit.SubmissionStatus != models.SubmissionStatusSubmitted &&
			unit.SubmissionStatus != models.SubmissionStatusAccepted {
			return apperrors.Statef("submission_status",
				"the unit's evidence has not been submitted yet")
		}

		checks, err := s.computeChecks(ctx, unit)
		if err != nil {
			return err
		}
		if !checks.AllEvaluated {
			return apperrors.Statef("all_evaluated", "not every instrument has two completed evaluations")
		}
		if !checks.NoConflicts {
			return apperrors.Statef("no_conflicts",
				"%d instruments have conflicting evaluations", len(checks.Conflicts))
		}

		return s.units.UpdateStatus(ctx, unit.ID,
			models.UnitAuditStatusDeskEvaluation, models.UnitAuditStatusFieldAudit)
	})
	if err != nil {
		return err
	}

	s.activity.Record(ctx, unitAuditID, models.ActivityActionDeskStageFinalized, "")
	s.logger.Info("Desk evaluation finalized",
		zap.String("unit_audit_id", unitAuditID.String()))
	return nil
}
