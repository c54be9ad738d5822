package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/services"
)

// FieldAuditHandler handles field verification HTTP requests.
type FieldAuditHandler struct {
	fieldAuditService services.FieldAuditService
	logger            *zap.Logger
}

// NewFieldAuditHandler creates a new field audit handler.
func NewFieldAuditHandler(fieldAuditService services.FieldAuditService, logger *zap.Logger) *FieldAuditHandler {
	return &FieldAuditHandler{
		fieldAuditService: fieldAuditService,
		logger:            logger,
	}
}

// RegisterRoutes registers the field audit handler's routes on the given mux.
func (h *FieldAuditHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	mux.HandleFunc("PUT /api/instruments/{iid}/field-verification",
		authMiddleware.RequireRole(auth.RoleAuditor)(scopeMiddleware(h.RecordVerification)))
	mux.HandleFunc("GET /api/units/{uid}/field-audit",
		authMiddleware.RequireAuth(scopeMiddleware(h.GetFieldAudit)))
	mux.HandleFunc("POST /api/units/{uid}/field-audit/finalize",
		authMiddleware.RequireRole(auth.RoleAuditor, auth.RoleAdmin)(scopeMiddleware(h.Finalize)))
}

// RecordVerification handles PUT /api/instruments/{iid}/field-verification
func (h *FieldAuditHandler) RecordVerification(w http.ResponseWriter, r *http.Request) {
	instrumentID, ok := ParseInstrumentID(w, r, h.logger)
	if !ok {
		return
	}

	var input services.FieldVerificationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	fv, err := h.fieldAuditService.RecordVerification(r.Context(), instrumentID, &input)
	if err != nil {
		WriteServiceError(w, h.logger, err, "record_verification_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, fv); err != nil {
		h.logger.Error("Failed to encode verification response", zap.Error(err))
	}
}

// GetFieldAudit handles GET /api/units/{uid}/field-audit
func (h *FieldAuditHandler) GetFieldAudit(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	view, err := h.fieldAuditService.GetFieldAudit(r.Context(), unitAuditID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get_field_audit_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, view); err != nil {
		h.logger.Error("Failed to encode field audit view", zap.Error(err))
	}
}

// Finalize handles POST /api/units/{uid}/field-audit/finalize
func (h *FieldAuditHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	unit, err := h.fieldAuditService.FinalizeFieldAudit(r.Context(), unitAuditID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "finalize_field_audit_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, unit); err != nil {
		h.logger.Error("Failed to encode unit audit response", zap.Error(err))
	}
}
