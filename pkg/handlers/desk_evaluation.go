package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/services"
)

// DeskEvaluationHandler handles dual-auditor desk evaluation HTTP requests.
type DeskEvaluationHandler struct {
	evaluationService services.EvaluationService
	logger            *zap.Logger
}

// NewDeskEvaluationHandler creates a new desk evaluation handler.
func NewDeskEvaluationHandler(evaluationService services.EvaluationService, logger *zap.Logger) *DeskEvaluationHandler {
	return &DeskEvaluationHandler{
		evaluationService: evaluationService,
		logger:            logger,
	}
}

// RegisterRoutes registers the desk evaluation handler's routes on the given mux.
func (h *DeskEvaluationHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	mux.HandleFunc("POST /api/instruments/{iid}/desk-score",
		authMiddleware.RequireRole(auth.RoleAuditor)(scopeMiddleware(h.SetDeskScore)))
	mux.HandleFunc("GET /api/units/{uid}/desk-evaluation/checks",
		authMiddleware.RequireAuth(scopeMiddleware(h.Checks)))
	mux.HandleFunc("POST /api/units/{uid}/desk-evaluation/finalize",
		authMiddleware.RequireRole(auth.RoleAuditor, auth.RoleAdmin)(scopeMiddleware(h.Finalize)))
}

// SetDeskScore handles POST /api/instruments/{iid}/desk-score
func (h *DeskEvaluationHandler) SetDeskScore(w http.ResponseWriter, r *http.Request) {
	instrumentID, ok := ParseInstrumentID(w, r, h.logger)
	if !ok {
		return
	}

	var input services.DeskScoreInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	eval, err := h.evaluationService.SetDeskScore(r.Context(), instrumentID, &input)
	if err != nil {
		WriteServiceError(w, h.logger, err, "set_desk_score_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, eval); err != nil {
		h.logger.Error("Failed to encode evaluation response", zap.Error(err))
	}
}

// Checks handles GET /api/units/{uid}/desk-evaluation/checks
func (h *DeskEvaluationHandler) Checks(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	checks, err := h.evaluationService.Checks(r.Context(), unitAuditID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "desk_checks_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, checks); err != nil {
		h.logger.Error("Failed to encode checks response", zap.Error(err))
	}
}

// Finalize handles POST /api/units/{uid}/desk-evaluation/finalize
func (h *DeskEvaluationHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.evaluationService.FinalizeDeskEvaluation(r.Context(), unitAuditID); err != nil {
		WriteServiceError(w, h.logger, err, "finalize_desk_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "field_audit"}); err != nil {
		h.logger.Error("Failed to encode finalize response", zap.Error(err))
	}
}
