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

// UnitAuditRepository provides data access for unit audits.
type UnitAuditRepository interface {
	Create(ctx context.Context, unit *models.UnitAudit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.UnitAudit, error)
	GetByCycleAndUnit(ctx context.Context, cycleID, unitID uuid.UUID) (*models.UnitAudit, error)
	ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]*models.UnitAudit, error)

	// UpdateStatus advances the unit stage from the expected current status.
	// Returns apperrors.ErrConflict when the row is no longer in that status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.UnitAuditStatus) error

	// OverrideStatus sets the stage unconditionally. Administrative use only.
	OverrideStatus(ctx context.Context, id uuid.UUID, to models.UnitAuditStatus) error

	// UpdateSubmissionStatus moves the persisted submission status from one
	// of the expected values. Returns apperrors.ErrConflict on a stale write.
	UpdateSubmissionStatus(ctx context.Context, id uuid.UUID, from []models.SubmissionStatus, to models.SubmissionStatus) error

	// Finalize sets the final score and moves the unit from field_audit to
	// finalized in one conditional write.
	Finalize(ctx context.Context, id uuid.UUID, finalScore float64) error
}

type unitAuditRepository struct{}

// NewUnitAuditRepository creates a new UnitAuditRepository.
func NewUnitAuditRepository() UnitAuditRepository {
	return &unitAuditRepository{}
}

var _ UnitAuditRepository = (*unitAuditRepository)(nil)

func (r *unitAuditRepository) Create(ctx context.Context, unit *models.UnitAudit) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()
	unit.CreatedAt = now
	unit.UpdatedAt = now
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	if unit.Status == "" {
		unit.Status = models.UnitAuditStatusDeskEvaluation
	}
	if unit.SubmissionStatus == "" {
		unit.SubmissionStatus = models.SubmissionStatusDraft
	}

	query := `
		INSERT INTO unit_audits (
			id, cycle_id, unit_id, unit_name, auditor1_id, auditor2_id,
			status, submission_status, final_score, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := scope.Querier().Exec(ctx, query,
		unit.ID, unit.CycleID, unit.UnitID, unit.UnitName,
		unit.Auditor1ID, unit.Auditor2ID,
		unit.Status, unit.SubmissionStatus, unit.FinalScore,
		unit.CreatedAt, unit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create unit audit: %w", err)
	}

	return nil
}

func (r *unitAuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UnitAudit, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *unitAuditRepository) GetByCycleAndUnit(ctx context.Context, cycleID, unitID uuid.UUID) (*models.UnitAudit, error) {
	return r.getOne(ctx, `WHERE cycle_id = $1 AND unit_id = $2`, cycleID, unitID)
}

func (r *unitAuditRepository) getOne(ctx context.Context, where string, args ...any) (*models.UnitAudit, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, cycle_id, unit_id, unit_name, auditor1_id, auditor2_id,
		       status, submission_status, final_score, created_at, updated_at
		FROM unit_audits ` + where

	unit, err := scanUnitAudit(scope.Querier().QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return unit, nil
}

func (r *unitAuditRepository) ListByCycle(ctx context.Context, cycleID uuid.UUID) ([]*models.UnitAudit, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, cycle_id, unit_id, unit_name, auditor1_id, auditor2_id,
		       status, submission_status, final_score, created_at, updated_at
		FROM unit_audits
		WHERE cycle_id = $1
		ORDER BY unit_name`

	rows, err := scope.Querier().Query(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unit audits: %w", err)
	}
	defer rows.Close()

	var units []*models.UnitAudit
	for rows.Next() {
		unit, err := scanUnitAudit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func (r *unitAuditRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.UnitAuditStatus) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE unit_audits
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`

	tag, err := scope.Querier().Exec(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update unit status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func (r *unitAuditRepository) OverrideStatus(ctx context.Context, id uuid.UUID, to models.UnitAuditStatus) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE unit_audits
		SET status = $1, updated_at = $2
		WHERE id = $3`

	tag, err := scope.Querier().Exec(ctx, query, to, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to override unit status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *unitAuditRepository) UpdateSubmissionStatus(ctx context.Context, id uuid.UUID, from []models.SubmissionStatus, to models.SubmissionStatus) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE unit_audits
		SET submission_status = $1, updated_at = $2
		WHERE id = $3 AND submission_status = ANY($4)`

	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	tag, err := scope.Querier().Exec(ctx, query, to, time.Now(), id, fromStrs)
	if err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func (r *unitAuditRepository) Finalize(ctx context.Context, id uuid.UUID, finalScore float64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE unit_audits
		SET status = $1, final_score = $2, updated_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := scope.Querier().Exec(ctx, query,
		models.UnitAuditStatusFinalized, finalScore, time.Now(),
		id, models.UnitAuditStatusFieldAudit)
	if err != nil {
		return fmt.Errorf("failed to finalize unit audit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func scanUnitAudit(row pgx.Row) (*models.UnitAudit, error) {
	var u models.UnitAudit
	err := row.Scan(&u.ID, &u.CycleID, &u.UnitID, &u.UnitName,
		&u.Auditor1ID, &u.Auditor2ID,
		&u.Status, &u.SubmissionStatus, &u.FinalScore,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan unit audit: %w", err)
	}
	return &u, nil
}
