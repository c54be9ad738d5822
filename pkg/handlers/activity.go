package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/models"
	"github.com/siapepi/audit-engine/pkg/services"
)

// ActivityListResponse for GET /api/units/{uid}/activity
type ActivityListResponse struct {
	Entries []*models.ActivityEntry `json:"entries"`
	Total   int                     `json:"total"`
}

// ActivityHandler serves the per-unit action trail.
type ActivityHandler struct {
	activityService services.ActivityService
	logger          *zap.Logger
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(activityService services.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// RegisterRoutes registers the activity handler's routes on the given mux.
func (h *ActivityHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	mux.HandleFunc("GET /api/units/{uid}/activity",
		authMiddleware.RequireAuth(scopeMiddleware(h.List)))
}

// List handles GET /api/units/{uid}/activity
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.activityService.List(r.Context(), unitAuditID, limit)
	if err != nil {
		WriteServiceError(w, h.logger, err, "list_activity_failed")
		return
	}
	if entries == nil {
		entries = []*models.ActivityEntry{}
	}

	if err := WriteJSON(w, http.StatusOK, ActivityListResponse{Entries: entries, Total: len(entries)}); err != nil {
		h.logger.Error("Failed to encode activity list", zap.Error(err))
	}
}
