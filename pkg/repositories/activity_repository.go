package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/siapepi/audit-engine/pkg/database"
	"github.com/siapepi/audit-engine/pkg/models"
)

// ActivityRepository provides data access for the per-unit action trail.
type ActivityRepository interface {
	Append(ctx context.Context, entry *models.ActivityEntry) error
	ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID, limit int) ([]*models.ActivityEntry, error)
}

type activityRepository struct{}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository() ActivityRepository {
	return &activityRepository{}
}

var _ ActivityRepository = (*activityRepository)(nil)

func (r *activityRepository) Append(ctx context.Context, entry *models.ActivityEntry) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	query := `
		INSERT INTO activity_log (id, unit_audit_id, actor_id, actor_name, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := scope.Querier().Exec(ctx, query,
		entry.ID, entry.UnitAuditID, entry.ActorID, entry.ActorName,
		entry.Action, entry.Details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append activity entry: %w", err)
	}
	return nil
}

func (r *activityRepository) ListByUnitAudit(ctx context.Context, unitAuditID uuid.UUID, limit int) ([]*models.ActivityEntry, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, unit_audit_id, actor_id, actor_name, action, details, created_at
		FROM activity_log
		WHERE unit_audit_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := scope.Querier().Query(ctx, query, unitAuditID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		if err := rows.Scan(&e.ID, &e.UnitAuditID, &e.ActorID, &e.ActorName,
			&e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
