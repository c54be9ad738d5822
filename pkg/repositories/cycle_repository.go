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

// CycleRepository provides data access for audit cycles.
type CycleRepository interface {
	Create(ctx context.Context, cycle *models.AuditCycle) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditCycle, error)
	List(ctx context.Context) ([]*models.AuditCycle, error)
	// UpdateStatus advances the cycle from the expected current status.
	// Returns apperrors.ErrConflict when the row is no longer in that status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.CycleStatus) error
}

type cycleRepository struct{}

// NewCycleRepository creates a new CycleRepository.
func NewCycleRepository() CycleRepository {
	return &cycleRepository{}
}

var _ CycleRepository = (*cycleRepository)(nil)

func (r *cycleRepository) Create(ctx context.Context, cycle *models.AuditCycle) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	now := time.Now()
	cycle.CreatedAt = now
	cycle.UpdatedAt = now
	if cycle.ID == uuid.Nil {
		cycle.ID = uuid.New()
	}
	if cycle.Status == "" {
		cycle.Status = models.CycleStatusPlanning
	}

	query := `
		INSERT INTO audit_cycles (id, name, start_date, end_date, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := scope.Querier().Exec(ctx, query,
		cycle.ID, cycle.Name, cycle.StartDate, cycle.EndDate,
		cycle.Status, cycle.CreatedBy, cycle.CreatedAt, cycle.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit cycle: %w", err)
	}

	return nil
}

func (r *cycleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditCycle, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, name, start_date, end_date, status, created_by, created_at, updated_at
		FROM audit_cycles
		WHERE id = $1`

	cycle, err := scanCycle(scope.Querier().QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cycle, nil
}

func (r *cycleRepository) List(ctx context.Context) ([]*models.AuditCycle, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, name, start_date, end_date, status, created_by, created_at, updated_at
		FROM audit_cycles
		ORDER BY start_date DESC, created_at DESC`

	rows, err := scope.Querier().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*models.AuditCycle
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, cycle)
	}
	return cycles, rows.Err()
}

func (r *cycleRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.CycleStatus) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE audit_cycles
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`

	tag, err := scope.Querier().Exec(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update cycle status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func scanCycle(row pgx.Row) (*models.AuditCycle, error) {
	var c models.AuditCycle
	err := row.Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.Status,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan audit cycle: %w", err)
	}
	return &c, nil
}
