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

// InstrumentRepository provides data access for audit instruments.
type InstrumentRepository interface {
	CreateBatch(ctx context.Context, instruments []*models.Instrument) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Instrument, error)
	ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) ([]*models.Instrument, error)

	// UpdateResponse writes the auditee's answer and evidence link.
	UpdateResponse(ctx context.Context, id uuid.UUID, answerText, evidenceLink string) error

	// CountMissingResponses counts instruments of the unit that lack either
	// an answer or an evidence link. Zero means the submission is complete.
	CountMissingResponses(ctx context.Context, unitAuditID uuid.UUID) (int, error)
}

type instrumentRepository struct{}

// NewInstrumentRepository creates a new InstrumentRepository.
func NewInstrumentRepository() InstrumentRepository {
	return &instrumentRepository{}
}

var _ InstrumentRepository = (*instrumentRepository)(nil)

func (r *instrumentRepository) CreateBatch(ctx context.Context, instruments []*models.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()

	query := `
		INSERT INTO instruments (
			id, unit_audit_id, standard_code, question, required_evidence,
			auditor1_id, auditor2_id, answer_text, evidence_link,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for _, inst := range instruments {
		if inst.ID == uuid.Nil {
			inst.ID = uuid.New()
		}
		inst.CreatedAt = now
		inst.UpdatedAt = now

		_, err := scope.Querier().Exec(ctx, query,
			inst.ID, inst.UnitAuditID, inst.StandardCode, inst.Question, inst.RequiredEvidence,
			inst.Auditor1ID, inst.Auditor2ID, inst.AnswerText, inst.EvidenceLink,
			inst.CreatedAt, inst.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create instrument: %w", err)
		}
	}

	return nil
}

func (r *instrumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Instrument, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, unit_audit_id, standard_code, question, required_evidence,
		       auditor1_id, auditor2_id, answer_text, evidence_link,
		       created_at, updated_at
		FROM instruments
		WHERE id = $1`

	inst, err := scanInstrument(scope.Querier().QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return inst, nil
}

func (r *instrumentRepository) ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID) ([]*models.Instrument, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, unit_audit_id, standard_code, question, required_evidence,
		       auditor1_id, auditor2_id, answer_text, evidence_link,
		       created_at, updated_at
		FROM instruments
		WHERE unit_audit_id = $1
		ORDER BY standard_code, created_at`

	rows, err := scope.Querier().Query(ctx, query, unitAuditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*models.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}
	return instruments, rows.Err()
}

func (r *instrumentRepository) UpdateResponse(ctx context.Context, id uuid.UUID, answerText, evidenceLink string) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE instruments
		SET answer_text = $1, evidence_link = $2, updated_at = $3
		WHERE id = $4`

	tag, err := scope.Querier().Exec(ctx, query, answerText, evidenceLink, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update instrument response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *instrumentRepository) CountMissingResponses(ctx context.Context, unitAuditID uuid.UUID) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT COUNT(*)
		FROM instruments
		WHERE unit_audit_id = $1 AND (answer_text = '' OR evidence_link = '')`

	var count int
	if err := scope.Querier().QueryRow(ctx, query, unitAuditID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count missing responses: %w", err)
	}
	return count, nil
}

func scanInstrument(row pgx.Row) (*models.Instrument, error) {
	var i models.Instrument
	err := row.Scan(&i.ID, &i.UnitAuditID, &i.StandardCode, &i.Question, &i.RequiredEvidence,
		&i.Auditor1ID, &i.Auditor2ID, &i.AnswerText, &i.EvidenceLink,
		&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan instrument: %w", err)
	}
	return &i, nil
}
