package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/siapepi/audit-engine/pkg/database"
	"github.com/siapepi/audit-engine/pkg/models"
)

// FieldVerificationRepository provides data access for field verifications.
type FieldVerificationRepository interface {
	// Upsert writes the verification for an instrument, overwriting any
	// earlier one. At most one row exists per instrument.
	Upsert(ctx context.Context, fv *models.FieldVerification) error
	GetByInstrument(ctx context.Context, instrumentID uuid.UUID) (*models.FieldVerification, error)
	ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) ([]*models.FieldVerification, error)
}

type fieldVerificationRepository struct{}

// NewFieldVerificationRepository creates a new FieldVerificationRepository.
func NewFieldVerificationRepository() FieldVerificationRepository {
	return &fieldVerificationRepository{}
}

var _ FieldVerificationRepository = (*fieldVerificationRepository)(nil)

func (r *fieldVerificationRepository) Upsert(ctx context.Context, fv *models.FieldVerification) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()
	if fv.ID == uuid.Nil {
		fv.ID = uuid.New()
	}
	fv.CreatedAt = now
	fv.UpdatedAt = now

	query := `
		INSERT INTO field_verifications (id, instrument_id, auditor_id, note, score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instrument_id) DO UPDATE
		SET auditor_id = EXCLUDED.auditor_id,
		    note = EXCLUDED.note,
		    score = EXCLUDED.score,
		    updated_at = EXCLUDED.updated_at`

	_, err := scope.Querier().Exec(ctx, query,
		fv.ID, fv.InstrumentID, fv.AuditorID, fv.Note, fv.Score,
		fv.CreatedAt, fv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert field verification: %w", err)
	}
	return nil
}

func (r *fieldVerificationRepository) GetByInstrument(ctx context.Context, instrumentID uuid.UUID) (*models.FieldVerification, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, instrument_id, auditor_id, note, score, created_at, updated_at
		FROM field_verifications
		WHERE instrument_id = $1`

	fv, err := scanFieldVerification(scope.Querier().QueryRow(ctx, query, instrumentID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return fv, nil
}

func (r *fieldVerificationRepository) ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) ([]*models.FieldVerification, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT fv.id, fv.instrument_id, fv.auditor_id, fv.note, fv.score, fv.created_at, fv.updated_at
		FROM field_verifications fv
		JOIN instruments i ON i.id = fv.instrument_id
		WHERE i.unit_audit_id = $1
		ORDER BY fv.instrument_id`

	rows, err := scope.Querier().Query(ctx, query, unitAuditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list field verifications: %w", err)
	}
	defer rows.Close()

	var verifications []*models.FieldVerification
	for rows.Next() {
		fv, err := scanFieldVerification(rows)
		if err != nil {
			return nil, err
		}
		verifications = append(verifications, fv)
	}
	return verifications, rows.Err()
}

func scanFieldVerification(row pgx.Row) (*models.FieldVerification, error) {
	var f models.FieldVerification
	err := row.Scan(&f.ID, &f.InstrumentID, &f.AuditorID, &f.Note, &f.Score,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan field verification: %w", err)
	}
	return &f, nil
}
