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

// FieldVerificationInput is one auditor's on-site check of an instrument.
type FieldVerificationInput struct {
	Note  string `json:"note"`
	Score *int   `json:"score,omitempty"`
}

// FieldAuditItem pairs an eligible instrument with its verification.
type FieldAuditItem struct {
	Instrument   models.Instrument         `json:"instrument"`
	Verification *models.FieldVerification `json:"verification,omitempty"`
}

// FieldAuditView is the state of a unit's field stage.
type FieldAuditView struct {
	UnitAuditID     uuid.UUID        `json:"unit_audit_id"`
	Items           []FieldAuditItem `json:"items"`
	ProvisionalMean float64          `json:"provisional_mean"`
	EligibleCount   int              `json:"eligible_count"`
	VerifiedCount   int              `json:"verified_count"`
}

// FieldAuditService owns the field verification stage: on-site checks of
// doubly approved instruments and the finalization that freezes the unit's
// final score.
type FieldAuditService interface {
	// RecordVerification writes the verification for one doubly approved
	// instrument. Repeated writes overwrite until the unit is finalized.
	RecordVerification(ctx context.Context, instrumentID uuid.UUID, input *FieldVerificationInput) (*models.FieldVerification, error)

	// GetFieldAudit returns the eligible instruments with their
	// verifications and the provisional mean over recorded scores.
	GetFieldAudit(ctx context.Context, unitAuditID uuid.UUID) (*FieldAuditView, error)

	// FinalizeFieldAudit runs the finalization checklist in a transaction
	// and freezes the unit with its final score.
	FinalizeFieldAudit(ctx context.Context, unitAuditID uuid.UUID) (*models.UnitAudit, error)
}

type fieldAuditService struct {
	units       repositories.UnitAuditRepository
	instruments repositories.InstrumentRepository
	evaluations repositories.EvaluationRepository
	fieldVerifs repositories.FieldVerificationRepository
	activity    ActivityService
	logger      *zap.Logger
}

// NewFieldAuditService creates a new FieldAuditService.
func NewFieldAuditService(
	units repositories.UnitAuditRepository,
	instruments repositories.InstrumentRepository,
	evaluations repositories.EvaluationRepository,
	fieldVerifs repositories.FieldVerificationRepository,
	activity ActivityService,
	logger *zap.Logger,
) FieldAuditService {
	return &fieldAuditService{
		units:       units,
		instruments: instruments,
		evaluations: evaluations,
		fieldVerifs: fieldVerifs,
		activity:    activity,
		logger:      logger.Named("field-audit-service"),
	}
}

var _ FieldAuditService = (*fieldAuditService)(nil)

func (s *fieldAuditService) RecordVerification(ctx context.Context, instrumentID uuid.UUID, input *FieldVerificationInput) (*models.FieldVerification, error) {
	if input.Score != nil && (*input.Score < models.MinDeskScore || *input.Score > models.MaxDeskScore) {
		return nil, apperrors.Validationf("score must be between %d and %d",
			models.MinDeskScore, models.MaxDeskScore)
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
		return nil, apperrors.Validationf("only an assigned auditor may verify this instrument")
	}

	unit, err := s.units.GetByID(ctx, inst.UnitAuditID)
	if err != nil {
		return nil, fmt.Errorf("get unit audit: %w", err)
	}
	if unit == nil {
		return nil, apperrors.ErrNotFound
	}
	if unit.Status != models.UnitAuditStatusFieldAudit {
		return nil, apperrors.Statef("unit_status",
			"field verification is only open while the unit is in field_audit, not %s", unit.Status)
	}

	evals, err := s.evaluations.ListByInstrument(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	if !instrumentDoublyApproved(inst, evals) {
		return nil, apperrors.Statef("instrument_eligibility",
			"only doubly approved instruments are verified in the field")
	}

	fv := &models.FieldVerification{
		InstrumentID: instrumentID,
		AuditorID:    auditorID,
		Note:         input.Note,
		Score:        input.Score,
	}
	if err := s.fieldVerifs.Upsert(ctx, fv); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, unit.ID, models.ActivityActionFieldVerified, inst.StandardCode)
	return fv, nil
}

func (s *fieldAuditService) GetFieldAudit(ctx context.Context, unitAuditID uuid.UUID) (*FieldAuditView, error) {
	unit, err := s.units.GetByID(ctx, unitAuditID)
	if err != nil {
		return nil, fmt.Errorf("get unit audit: %w", err)
	}
	if unit == nil {
		return nil, apperrors.ErrNotFound
	}

	eligible, verifications, err := s.eligibleWithVerifications(ctx, unit)
	if err != nil {
		return nil, err
	}

	view := &FieldAuditView{
		UnitAuditID:   unitAuditID,
		Items:         []FieldAuditItem{},
		EligibleCount: len(eligible),
	}

	var sum float64
	var scored int
	for _, inst := range eligible {
		fv := verifications[inst.ID]
		view.Items = append(view.Items, FieldAuditItem{Instrument: *inst, Verification: fv})
		if fv != nil && fv.Score != nil {
			sum += float64(*fv.Score)
			scored++
		}
		if fv.IsComplete() {
			view.VerifiedCount++
		}
	}
	if scored > 0 {
		view.ProvisionalMean = sum / float64(scored)
	}
	return view, nil
}

func (s *fieldAuditService) FinalizeFieldAudit(ctx context.Context, unitAuditID uuid.UUID) (*models.UnitAudit, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var unit *models.UnitAudit
	err := scope.WithTx(ctx, func(ctx context.Context) error {
		var err error
		unit, err = s.units.GetByID(ctx, unitAuditID)
		if err != nil {
			return fmt.Errorf("get unit audit: %w", err)
		}
		if unit == nil {
			return apperrors.ErrNotFound
		}

		claims, _ := auth.GetClaims(ctx)
		if claims == nil || (!unit.IsAssignedAuditor(claims.Subject) && !claims.HasRole(auth.RoleAdmin)) {
			return apperrors.Validationf("only an assigned auditor or an administrator may finalize the unit")
		}
		if unit.Status != models.UnitAuditStatusFieldAudit {
			return apperrors.Statef("unit_status",
				"only a unit in field_audit can be finalized, not %s", unit.Status)
		}

		// The desk gate must still hold at finalization time.
		deskChecks, err := s.deskChecksStillPass(ctx, unit)
		if err != nil {
			return err
		}
		if !deskChecks {
			return apperrors.Statef("desk_checks",
				"the desk evaluation gate no longer holds for this unit")
		}

		eligible, verifications, err := s.eligibleWithVerifications(ctx, unit)
		if err != nil {
			return err
		}

		var sum float64
		for _, inst := range eligible {
			fv := verifications[inst.ID]
			if !fv.IsComplete() {
				return apperrors.Statef("field_checklist",
					"instrument %s lacks a field score or note", inst.ID)
			}
			sum += float64(*fv.Score)
		}

		finalScore := 0.0
		if len(eligible) > 0 {
			finalScore = sum / float64(len(eligible))
		}

		if err := s.units.Finalize(ctx, unit.ID, finalScore); err != nil {
			return err
		}
		unit.Status = models.UnitAuditStatusFinalized
		unit.FinalScore = &finalScore
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, unitAuditID, models.ActivityActionUnitFinalized,
		fmt.Sprintf("final score %.2f", *unit.FinalScore))
	s.logger.Info("Unit audit finalized",
		zap.String("unit_audit_id", unitAuditID.String()),
		zap.Float64("final_score", *unit.FinalScore))
	return unit, nil
}

// eligibleWithVerifications returns the doubly approved instruments of the
// unit and the verification per instrument id.
func (s *fieldAuditService) eligibleWithVerifications(ctx context.Context, unit *models.UnitAudit) ([]*models.Instrument, map[uuid.UUID]*models.FieldVerification, error) {
	instruments, err := s.instruments.ListByUnitAudit(ctx, unit.ID)
	if err != nil {
		return nil, nil, err
	}
	evaluations, err := s.evaluations.ListByUnitAudit(ctx, unit.ID)
	if err != nil {
		return nil, nil, err
	}
	verifications, err := s.fieldVerifs.ListByUnitAudit(ctx, unit.ID)
	if err != nil {
		return nil, nil, err
	}

	evalsByInstrument := make(map[uuid.UUID][]*models.Evaluation)
	for _, eval := range evaluations {
		evalsByInstrument[eval.InstrumentID] = append(evalsByInstrument[eval.InstrumentID], eval)
	}
	verifByInstrument := make(map[uuid.UUID]*models.FieldVerification)
	for _, fv := range verifications {
		verifByInstrument[fv.InstrumentID] = fv
	}

	var eligible []*models.Instrument
	for _, inst := range instruments {
		if instrumentDoublyApproved(inst, evalsByInstrument[inst.ID]) {
			eligible = append(eligible, inst)
		}
	}
	return eligible, verifByInstrument, nil
}

// deskChecksStillPass re-derives the desk gate from persisted evaluations.
func (s *fieldAuditService) deskChecksStillPass(ctx context.Context, unit *models.UnitAudit) (bool, error) {
	instruments, err := s.instruments.ListByUnitAudit(ctx, unit.ID)
	if err != nil {
		return false, err
	}
	evaluations, err := s.evaluations.ListByUnitAudit(ctx, unit.ID)
	if err != nil {
		return false, err
	}

	pairs := make(map[uuid.UUID]map[string]*models.Evaluation)
	for _, eval := range evaluations {
		if pairs[eval.InstrumentID] == nil {
			pairs[eval.InstrumentID] = make(map[string]*models.Evaluation)
		}
		pairs[eval.InstrumentID][eval.AuditorID] = eval
	}

	for _, inst := range instruments {
		slots := pairs[inst.ID]
		e1, e2 := slots[inst.Auditor1ID], slots[inst.Auditor2ID]
		if e1 == nil || e2 == nil {
			return false, apperrors.Statef("evaluation_slot",
				"peer evaluation missing for instrument %s", inst.ID)
		}
		if !e1.IsComplete || !e2.IsComplete || models.EvaluationsConflict(e1, e2) {
			return false, nil
		}
	}
	return true, nil
}

func instrumentDoublyApproved(inst *models.Instrument, evals []*models.Evaluation) bool {
	var e1, e2 *models.Evaluation
	for _, eval := range evals {
		switch eval.AuditorID {
		case inst.Auditor1ID:
			e1 = eval
		case inst.Auditor2ID:
			e2 = eval
		}
	}
	return models.DoublyApproved(e1, e2)
}
