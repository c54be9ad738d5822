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

// SubmissionView is the derived submission state of a unit.
type SubmissionView struct {
	UnitAuditID      uuid.UUID               `json:"unit_audit_id"`
	Status           models.SubmissionStatus `json:"status"`
	InstrumentCount  int                     `json:"instrument_count"`
	MissingResponses int                     `json:"missing_responses"`
}

// SubmissionService owns the evidence submission tracker: auditee responses
// per instrument and the unit-level submission status machine.
type SubmissionService interface {
	// SaveResponse writes the auditee's answer and evidence link for one
	// instrument. Rejected while the submission is submitted or accepted.
	SaveResponse(ctx context.Context, instrumentID uuid.UUID, answerText, evidenceLink string) error

	// GetSubmission derives the unit's visible submission status. A draft
	// whose instruments all carry answer and evidence reads as
	// ready_to_submit; the regression back to draft is automatic.
	GetSubmission(ctx context.Context, unitAuditID uuid.UUID) (*SubmissionView, error)

	// UpdateSubmission applies a submission transition: submit (auditee),
	// return or accept (auditor). Submit requires a complete draft or a
	// returned submission.
	UpdateSubmission(ctx context.Context, unitAuditID uuid.UUID, target models.SubmissionStatus) (*SubmissionView, error)
}

type submissionService struct {
	units       repositories.UnitAuditRepository
	instruments repositories.InstrumentRepository
	activity    ActivityService
	logger      *zap.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	units repositories.UnitAuditRepository,
	instruments repositories.InstrumentRepository,
	activity ActivityService,
	logger *zap.Logger,
) SubmissionService {
	return &submissionService{
		units:       units,
		instruments: instruments,
		activity:    activity,
		logger:      logger.Named("submission-service"),
	}
}

var _ SubmissionService = (*submissionService)(nil)

func (s *submissionService) SaveResponse(ctx context.Context, instrumentID uuid.UUID, answerText, evidenceLink string) error {
	inst, err := s.instruments.GetByID(ctx, instrumentID)
	if err != nil {
		return fmt.Errorf("get instrument: %w", err)
	}
	if inst == nil {
		return apperrors.ErrNotFound
	}

	unit, err := s.units.GetByID(ctx, inst.UnitAuditID)
	if err != nil {
		return fmt.Errorf("get unit audit: %w", err)
	}
	if unit == nil {
		return apperrors.ErrNotFound
	}

	if auth.GetUnitIDFromContext(ctx) != unit.UnitID {
		return apperrors.Validationf("only the unit's auditee may edit its responses")
	}
	if unit.Status.IsTerminal() {
		return apperrors.Statef("unit_status", "the unit audit is finalized")
	}
	if !unit.SubmissionStatus.AllowsResponseEdits() {
		return apperrors.Statef("submission_status",
			"responses are locked while the submission is %s", unit.SubmissionStatus)
	}

	if err := s.instruments.UpdateResponse(ctx, instrumentID, answerText, evidenceLink); err != nil {
		return err
	}

	s.activity.Record(ctx, unit.ID, models.ActivityActionResponseSaved, inst.StandardCode)
	return nil
}

func (s *submissionService) GetSubmission(ctx context.Context, unitAuditID uuid.UUID) (*SubmissionView, error) {
	unit, err := s.units.GetByID(ctx, unitAuditID)
	if err != nil {
		return nil, fmt.Errorf("get unit audit: %w", err)
	}
	if unit == nil {
		return nil, apperrors.ErrNotFound
	}
	return s.buildView(ctx, unit)
}

func (s *submissionService) buildView(ctx context.Context, unit *models.UnitAudit) (*SubmissionView, error) {
	instruments, err := s.instruments.ListByUnitAudit(ctx, unit.ID)
	if err != nil {
		return nil, err
	}
	missing, err := s.instruments.CountMissingResponses(ctx, unit.ID)
	if err != nil {
		return nil, err
	}

	return &SubmissionView{
		UnitAuditID:      unit.ID,
		Status:           models.EffectiveSubmissionStatus(unit.SubmissionStatus, missing == 0),
		InstrumentCount:  len(instruments),
		MissingResponses: missing,
	}, nil
}

func (s *submissionService) UpdateSubmission(ctx context.Context, unitAuditID uuid.UUID, target models.SubmissionStatus) (*SubmissionView, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	var action string
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
		if unit.Status.IsTerminal() {
			return apperrors.Statef("unit_status", "the unit audit is finalized")
		}

		switch target {
		case models.SubmissionStatusSubmitted:
			if auth.GetUnitIDFromContext(ctx) != unit.UnitID {
				return apperrors.Validationf("only the unit's auditee may submit")
			}
			missing, err := s.instruments.CountMissingResponses(ctx, unit.ID)
			if err != nil {
				return err
			}
			effective := models.EffectiveSubmissionStatus(unit.SubmissionStatus, missing == 0)
			if effective != models.SubmissionStatusReadyToSubmit && effective != models.SubmissionStatusReturned {
				return apperrors.Statef("submission_status",
					"submission is %s; only a complete draft or a returned submission can be submitted", effective)
			}
			action = models.ActivityActionSubmissionSent

		case models.SubmissionStatusReturned:
			if !unit.IsAssignedAuditor(auth.GetUserIDFromContext(ctx)) {
				return apperrors.Validationf("only an assigned auditor may return a submission")
			}
			if unit.SubmissionStatus != models.SubmissionStatusSubmitted {
				return apperrors.Statef("submission_status",
					"only a submitted submission can be returned, not %s", unit.SubmissionStatus)
			}
			action = models.ActivityActionSubmissionReturned

		case models.SubmissionStatusAccepted:
			if !unit.IsAssignedAuditor(auth.GetUserIDFromContext(ctx)) {
				return apperrors.Validationf("only an assigned auditor may accept a submission")
			}
			if unit.SubmissionStatus != models.SubmissionStatusSubmitted {
				return apperrors.Statef("submission_status",
					"only a submitted submission can be accepted, not %s", unit.SubmissionStatus)
			}
			action = models.ActivityActionSubmissionAccepted

		default:
			return apperrors.Validationf("invalid submission transition target: %s", target)
		}

		if err := s.units.UpdateSubmissionStatus(ctx, unit.ID,
			[]models.SubmissionStatus{unit.SubmissionStatus}, target); err != nil {
			return err
		}
		unit.SubmissionStatus = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, unitAuditID, action, "")
	s.logger.Info("Submission status updated",
		zap.String("unit_audit_id", unitAuditID.String()),
		zap.String("status", string(target)))

	return s.buildView(ctx, unit)
}
