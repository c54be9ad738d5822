package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/siapepi/audit-engine/pkg/apperrors"
	"github.com/siapepi/audit-engine/pkg/database"
	"github.com/siapepi/audit-engine/pkg/models"
)

// EvaluationRepository provides data access for desk evaluation slots.
type EvaluationRepository interface {
	CreateBatch(ctx context.Context, evaluations []*models.Evaluation) error
	GetByInstrumentAndAuditor(ctx context.Context, instrumentID uuid.UUID, auditorID string) (*models.Evaluation, error)
	ListByInstrument(ctx context.Context, instrumentID uuid.UUID) ([]*models.Evaluation, error)
	ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) ([]*models.Evaluation, error)

	// UpdateSlot writes an auditor's evaluation. The update carries
	// WHERE NOT is_complete so a write against a completed slot affects no
	// rows and surfaces as apperrors.ErrConflict.
	UpdateSlot(ctx context.Context, eval *models.Evaluation) error
}

type evaluationRepository struct{}

// NewEvaluationRepository creates a new EvaluationRepository.
func NewEvaluationRepository() EvaluationRepository {
	return &evaluationRepository{}
}

var _ EvaluationRepository = (*evaluationRepository)(nil)

func (r *evaluationRepository) CreateBatch(ctx context.Context, evaluations []*models.Evaluation) error {
	if len(evaluations) == 0 {
		return nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()

	query := `
		INSERT INTO evaluations (
			id, instrument_id, auditor_id, status, score, note,
			rejection_note, is_complete, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, eval := range evaluations {
		if eval.ID == uuid.Nil {
			eval.ID = uuid.New()
		}
		if eval.Status == "" {
			eval.Status = models.EvaluationStatusMissing
		}
		eval.CreatedAt = now
		eval.UpdatedAt = now

		_, err := scope.Querier().Exec(ctx, query,
			eval.ID, eval.InstrumentID, eval.AuditorID, eval.Status, eval.Score,
			eval.Note, eval.RejectionNote, eval.IsComplete,
			eval.CreatedAt, eval.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create evaluation: %w", err)
		}
	}

	return nil
}

func (r *evaluationRepository) GetByInstrumentAndAuditor(ctx context.Context, instrumentID uuid.UUID, auditorID string) (*models.Evaluation, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, instrument_id, auditor_id, status, score, note,
		       rejection_note, is_complete, created_at, updated_at
		FROM evaluations
		WHERE instrument_id = $1 AND auditor_id = $2`

	eval, err := scanEvaluation(scope.Querier().QueryRow(ctx, query, instrumentID, auditorID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return eval, nil
}

func (r *evaluationRepository) ListByInstrument(ctx context.Context, instrumentID uuid.UUID) ([]*models.Evaluation, error) {
	return r.list(ctx, `WHERE e.instrument_id = $1`, instrumentID)
}

func (r *evaluationRepository) ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) ([]*models.Evaluation, error) {
	return r.list(ctx, `
		JOIN instruments i ON i.id = e.instrument_id
		WHERE i.unit_audit_id = $1`, unitAuditID)
}

func (r *evaluationRepository) list(ctx context.Context, fromWhere string, args ...any) ([]*models.Evaluation, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT e.id, e.instrument_id, e.auditor_id, e.status, e.score, e.note,
		       e.rejection_note, e.is_complete, e.created_at, e.updated_at
		FROM evaluations e ` + fromWhere + `
		ORDER BY e.instrument_id, e.auditor_id`

	rows, err := scope.Querier().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var evaluations []*models.Evaluation
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evaluations = append(evaluations, eval)
	}
	return evaluations, rows.Err()
}

func (r *evaluationRepository) UpdateSlot(ctx context.Context, eval *models.Evaluation) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE evaluations
		SET status = $1, score = $2, note = $3, rejection_note = $4,
		    is_complete = $5, updated_at = $6
		WHERE instrument_id = $7 AND auditor_id = $8 AND NOT is_complete`

	tag, err := scope.Querier().Exec(ctx, query,
		eval.Status, eval.Score, eval.Note, eval.RejectionNote,
		eval.IsComplete, time.Now(),
		eval.InstrumentID, eval.AuditorID,
	)
	if err != nil {
		return fmt.Errorf("failed to update evaluation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func scanEvaluation(row pgx.Row) (*models.Evaluation, error) {
	var e models.Evaluation
	err := row.Scan(&e.ID, &e.InstrumentID, &e.AuditorID, &e.Status, &e.Score,
		&e.Note, &e.RejectionNote, &e.IsComplete, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan evaluation: %w", err)
	}
	return &e, nil
}
