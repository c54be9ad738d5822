package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/models"
	"github.com/siapepi/audit-engine/pkg/services"
)

// SaveResponseRequest for PUT /api/instruments/{iid}/response
type SaveResponseRequest struct {
	AnswerText   string `json:"answer_text"`
	EvidenceLink string `json:"evidence_link"`
}

// UpdateSubmissionRequest for POST /api/units/{uid}/submission
type UpdateSubmissionRequest struct {
	Status models.SubmissionStatus `json:"status"`
}

// SubmissionHandler handles evidence submission HTTP requests.
type SubmissionHandler struct {
	submissionService services.SubmissionService
	logger            *zap.Logger
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(submissionService services.SubmissionService, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		logger:            logger,
	}
}

// RegisterRoutes registers the submission handler's routes on the given mux.
func (h *SubmissionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	mux.HandleFunc("PUT /api/instruments/{iid}/response",
		authMiddleware.RequireRole(auth.RoleAuditee)(scopeMiddleware(h.SaveResponse)))
	mux.HandleFunc("GET /api/units/{uid}/submission",
		authMiddleware.RequireAuth(scopeMiddleware(h.GetSubmission)))
	mux.HandleFunc("POST /api/units/{uid}/submission",
		authMiddleware.RequireRole(auth.RoleAuditee, auth.RoleAuditor)(scopeMiddleware(h.UpdateSubmission)))
}

// SaveResponse handles PUT /api/instruments/{iid}/response
func (h *SubmissionHandler) SaveResponse(w http.ResponseWriter, r *http.Request) {
	instrumentID, ok := ParseInstrumentID(w, r, h.logger)
	if !ok {
		return
	}

	var req SaveResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.submissionService.SaveResponse(r.Context(), instrumentID, req.AnswerText, req.EvidenceLink); err != nil {
		WriteServiceError(w, h.logger, err, "save_response_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// GetSubmission handles GET /api/units/{uid}/submission
func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	view, err := h.submissionService.GetSubmission(r.Context(), unitAuditID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get_submission_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, view); err != nil {
		h.logger.Error("Failed to encode submission view", zap.Error(err))
	}
}

// UpdateSubmission handles POST /api/units/{uid}/submission
func (h *SubmissionHandler) UpdateSubmission(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	view, err := h.submissionService.UpdateSubmission(r.Context(), unitAuditID, req.Status)
	if err != nil {
		WriteServiceError(w, h.logger, err, "update_submission_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, view); err != nil {
		h.logger.Error("Failed to encode submission view", zap.Error(err))
	}
}
