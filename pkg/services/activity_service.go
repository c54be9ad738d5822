package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/models"
	"github.com/siapepi/audit-engine/pkg/repositories"
)

// ActivityService records and reads the per-unit action trail.
// Recording is best-effort: failures are logged, never propagated, so the
// trail can never break a workflow operation.
type ActivityService interface {
	// Record appends an entry with the actor taken from the request claims.
	Record(ctx context.Context, unitAuditID uuid.UUID, action, details string)

	// List returns the newest entries for a unit.
	List(ctx context.Context, unitAuditID uuid.UUID, limit int) ([]*models.ActivityEntry, error)
}

type activityService struct {
	repo   repositories.ActivityRepository
	logger *zap.Logger
}

// NewActivityService creates a new ActivityService.
func NewActivityService(repo repositories.ActivityRepository, logger *zap.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.Named("activity-service"),
	}
}

var _ ActivityService = (*activityService)(nil)

func (s *activityService) Record(ctx context.Context, unitAuditID uuid.UUID, action, details string) {
	entry := &models.ActivityEntry{
		UnitAuditID: unitAuditID,
		ActorID:     auth.GetUserIDFromContext(ctx),
		ActorName:   auth.GetUserNameFromContext(ctx),
		Action:      action,
		Details:     details,
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Warn("Failed to record activity entry",
			zap.String("unit_audit_id", unitAuditID.String()),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *activityService) List(ctx context.Context, unitAuditID uuid.UUID, limit int) ([]*models.ActivityEntry, error) {
	return s.repo.ListByUnitAudit(ctx, unitAuditID, limit)
}
