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

// InstrumentSpec describes one instrument to create at planning activation.
type InstrumentSpec struct {
	StandardCode     string `json:"standard_code"`
	Question         string `json:"question"`
	RequiredEvidence string `json:"required_evidence"`
}

// ActivateUnitParams carries everything needed to activate planning for a unit.
type ActivateUnitParams struct {
	UnitID      uuid.UUID        `json:"unit_id"`
	UnitName    string           `json:"unit_name"`
	Auditor1ID  string           `json:"auditor1_id"`
	Auditor2ID  string           `json:"auditor2_id"`
	Instruments []InstrumentSpec `json:"instruments"`
}

// CycleService manages audit cycles and planning activation.
type CycleService interface {
	CreateCycle(ctx context.Context, cycle *models.AuditCycle) error
	ListCycles(ctx context.Context) ([]*models.AuditCycle, error)
	UpdateCycleStatus(ctx context.Context, cycleID uuid.UUID, target models.CycleStatus) (*models.AuditCycle, error)

	// ActivateUnit creates the unit audit, its instruments, and two empty
	// evaluation slots per instrument, in one transaction. The cycle must be
	// active and the auditor pair distinct.
	ActivateUnit(ctx context.Context, cycleID uuid.UUID, params *ActivateUnitParams) (*models.UnitAudit, error)

	GetUnitAudit(ctx context.Context, unitAuditID uuid.UUID) (*models.UnitAudit, error)
	ListUnitAudits(ctx context.Context, cycleID uuid.UUID) ([]*models.UnitAudit, error)

	// GetUnitInstruments returns the unit's instruments with their
	// evaluations and field verification embedded.
	GetUnitInstruments(ctx context.Context, unitAuditID uuid.UUID) ([]*models.InstrumentDetail, error)

	// OverrideUnitStatus sets the unit stage directly. This administrative
	// override is the only path that may move a unit backwards.
	OverrideUnitStatus(ctx context.Context, unitAuditID uuid.UUID, target models.UnitAuditStatus) error
}

type cycleService struct {
	cycles      repositories.CycleRepository
	units       repositories.UnitAuditRepository
	instruments repositories.InstrumentRepository
	evaluations repositories.EvaluationRepository
	fieldVerifs repositories.FieldVerificationRepository
	activity    ActivityService
	logger      *zap.Logger
}

// NewCycleService creates a new CycleService.
func NewCycleService(
	cycles repositories.CycleRepository,
	units repositories.UnitAuditRepository,
	instruments repositories.InstrumentRepository,
	evaluations repositories.EvaluationRepository,
	fieldVerifs repositories.FieldVerificationRepository,
	activity ActivityService,
	logger *zap.Logger,
) CycleService {
	return &cycleService{
		cycles:      cycles,
		units:       units,
		instruments: instruments,
		evaluations: evaluations,
		fieldVerifs: fieldVerifs,
		activity:    activity,
		logger:      logger.Named("cycle-service"),
	}
}

var _ CycleService = (*cycleService)(nil)

func (s *cycleService) CreateCycle(ctx context.Context, cycle *models.AuditCycle) error {
	if cycle.Name == "" {
		return apperrors.Validationf("cycle name is required")
	}
	if !cycle.EndDate.After(cycle.StartDate) {
		return apperrors.Validationf("end date must be after start date")
	}

	cycle.Status = models.CycleStatusPlanning
	cycle.CreatedBy = auth.GetUserIDFromContext(ctx)

	if err := s.cycles.Create(ctx, cycle); err != nil {
		return fmt.Errorf("create cycle: %w", err)
	}

	s.logger.Info("Audit cycle created",
		zap.String("cycle_id", cycle.ID.String()),
		zap.String("name", cycle.Name))
	return nil
}

func (s *cycleService) ListCycles(ctx context.Context) ([]*models.AuditCycle, error) {
	return s.cycles.List(ctx)
}

func (s *cycleService) UpdateCycleStatus(ctx context.Context, cycleID uuid.UUID, target models.CycleStatus) (*models.AuditCycle, error) {
	if !models.IsValidCycleStatus(target) {
		return nil, apperrors.Validationf("invalid cycle status: %s", target)
	}

	cycle, err := s.cycles.GetByID(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("get cycle: %w", err)
	}
	if cycle == nil {
		return nil, apperrors.ErrNotFound
	}

	if !cycle.Status.CanTransitionTo(target) {
		return nil, apperrors.Statef("cycle_status",
			"cycle cannot move from %s to %s", cycle.Status, target)
	}

	if err := s.cycles.UpdateStatus(ctx, cycleID, cycle.Status, target); err != nil {
		return nil, err
	}
	cycle.Status = target

	s.logger.Info("Cycle status updated",
		zap.String("cycle_id", cycleID.String()),
		zap.String("status", string(target)))
	return cycle, nil
}

func (s *cycleService) ActivateUnit(ctx context.Context, cycleID uuid.UUID, params *ActivateUnitParams) (*models.UnitAudit, error) {
	if params.UnitID == uuid.Nil {
		return nil, apperrors.Validationf("unit id is required")
	}
	if params.UnitName == "" {
		return nil, apperrors.Validationf("unit name is required")
	}
	if params.Auditor1ID == "" || params.Auditor2ID == "" {
		return nil, apperrors.Validationf("two assigned auditors are required")
	}
	if params.Auditor1ID == params.Auditor2ID {
		return nil, apperrors.Validationf("the two auditors must be distinct")
	}
	if len(params.Instruments) == 0 {
		return nil, apperrors.Validationf("at least one instrument is required")
	}
	for _, spec := range params.Instruments {
		if spec.StandardCode == "" || spec.Question == "" {
			return nil, apperrors.Validationf("every instrument needs a standard code and a question")
		}
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var unit *models.UnitAudit
	err := scope.WithTx(ctx, func(ctx context.Context) error {
		cycle, err := s.cycles.GetByID(ctx, cycleID)
		if err != nil {
			return fmt.Errorf("get cycle: %w", err)
		}
		if cycle == nil {
			return apperrors.ErrNotFound
		}
		if cycle.Status != models.CycleStatusActive {
			return apperrors.Statef("cycle_status",
				"planning can only be activated while the cycle is active, not %s", cycle.Status)
		}

		existing, err := s.units.GetByCycleAndUnit(ctx, cycleID, params.UnitID)
		if err != nil {
			return fmt.Errorf("check existing unit audit: %w", err)
		}
		if existing != nil {
			return apperrors.Statef("unit_audit",
				"unit %s is already activated in this cycle", params.UnitName)
		}

		unit = &models.UnitAudit{
			CycleID:          cycleID,
			UnitID:           params.UnitID,
			UnitName:         params.UnitName,
			Auditor1ID:       params.Auditor1ID,
			Auditor2ID:       params.Auditor2ID,
			Status:           models.UnitAuditStatusDeskEvaluation,
			SubmissionStatus: models.SubmissionStatusDraft,
		}
		if err := s.units.Create(ctx, unit); err != nil {
			return fmt.Errorf("create unit audit: %w", err)
		}

		instruments := make([]*models.Instrument, len(params.Instruments))
		for i, spec := range params.Instruments {
			instruments[i] = &models.Instrument{
				UnitAuditID:      unit.ID,
				StandardCode:     spec.StandardCode,
				Question:         spec.Question,
				RequiredEvidence: spec.RequiredEvidence,
				Auditor1ID:       params.Auditor1ID,
				Auditor2ID:       params.Auditor2ID,
			}
		}
		if err := s.instruments.CreateBatch(ctx, instruments); err != nil {
			return fmt.Errorf("create instruments: %w", err)
		}

		evaluations := make([]*models.Evaluation, 0, len(instruments)*2)
		for _, inst := range instruments {
			for _, auditorID := range []string{params.Auditor1ID, params.Auditor2ID} {
				evaluations = append(evaluations, &models.Evaluation{
					InstrumentID: inst.ID,
					AuditorID:    auditorID,
					Status:       models.EvaluationStatusMissing,
				})
			}
		}
		if err := s.evaluations.CreateBatch(ctx, evaluations); err != nil {
			return fmt.Errorf("create evaluation slots: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, unit.ID, models.ActivityActionPlanningActivated,
		fmt.Sprintf("%d instruments created", len(params.Instruments)))

	s.logger.Info("Unit planning activated",
		zap.String("cycle_id", cycleID.String()),
		zap.String("unit_audit_id", unit.ID.String()),
		zap.String("unit_name", unit.UnitName),
		zap.Int("instruments", len(params.Instruments)))
	return unit, nil
}

func (s *cycleService) GetUnitAudit(ctx context.Context, unitAuditID uuid.UUID) (*models.UnitAudit, error) {
	unit, err := s.units.GetByID(ctx, unitAuditID)
	if err != nil {
		return nil, fmt.Errorf("get unit audit: %w", err)
	}
	if unit == nil {
		return nil, apperrors.ErrNotFound
	}
	return unit, nil
}

func (s *cycleService) ListUnitAudits(ctx context.Context, cycleID uuid.UUID) ([]*models.UnitAudit, error) {
	return s.units.ListByCycle(ctx, cycleID)
}

func (s *cycleService) GetUnitInstruments(ctx context.Context, unitAuditID uuid.UUID) ([]*models.InstrumentDetail, error) {
	unit, err := s.units.GetByID(ctx, unitAuditID)
	if err != nil {
		return nil, fmt.Errorf("get unit audit: %w", err)
	}
	if unit == nil {
		return nil, apperrors.ErrNotFound
	}

	instruments, err := s.instruments.ListByUnitAudit(ctx, unitAuditID)
	if err != nil {
		return nil, err
	}
	evaluations, err := s.evaluations.ListByUnitAudit(ctx, unitAuditID)
	if err != nil {
		return nil, err
	}
	verifications, err := s.fieldVerifs.ListByUnitAudit(ctx, unitAuditID)
	if err != nil {
		return nil, err
	}

	evalsByInstrument := make(map[uuid.UUID][]models.Evaluation)
	for _, eval := range evaluations {
		evalsByInstrument[eval.InstrumentID] = append(evalsByInstrument[eval.InstrumentID], *eval)
	}
	verifByInstrument := make(map[uuid.UUID]*models.FieldVerification)
	for _, fv := range verifications {
		verifByInstrument[fv.InstrumentID] = fv
	}

	details := make([]*models.InstrumentDetail, len(instruments))
	for i, inst := range instruments {
		details[i] = &models.InstrumentDetail{
			Instrument:        *inst,
			Evaluations:       evalsByInstrument[inst.ID],
			FieldVerification: verifByInstrument[inst.ID],
		}
	}
	return details, nil
}

func (s *cycleService) OverrideUnitStatus(ctx context.Context, unitAuditID uuid.UUID, target models.UnitAuditStatus) error {
	if !models.IsValidUnitAuditStatus(target) {
		return apperrors.Validationf("invalid unit status: %s", target)
	}

	unit, err := s.units.GetByID(ctx, unitAuditID)
	if err != nil {
		return fmt.Errorf("get unit audit: %w", err)
	}
	if unit == nil {
		return apperrors.ErrNotFound
	}

	if err := s.units.OverrideStatus(ctx, unitAuditID, target); err != nil {
		return err
	}

	s.activity.Record(ctx, unitAuditID, models.ActivityActionStatusOverridden,
		fmt.Sprintf("%s -> %s", unit.Status, target))

	s.logger.Warn("Unit status overridden",
		zap.String("unit_audit_id", unitAuditID.String()),
		zap.String("from", string(unit.Status)),
		zap.String("to", string(target)),
		zap.String("actor", auth.GetUserIDFromContext(ctx)))
	return nil
}
