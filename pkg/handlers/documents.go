package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/services"
)

// DocumentHandler handles administrative audit document HTTP requests.
type DocumentHandler struct {
	documentService services.DocumentService
	logger          *zap.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(documentService services.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger,
	}
}

// RegisterRoutes registers the document handler's routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	mux.HandleFunc("POST /api/units/{uid}/audit-document",
		authMiddleware.RequireRole(auth.RoleAuditor, auth.RoleAdmin)(scopeMiddleware(h.Create)))
	mux.HandleFunc("GET /api/units/{uid}/audit-document",
		authMiddleware.RequireAuth(scopeMiddleware(h.GetByUnit)))
	mux.HandleFunc("GET /api/audit-documents/{did}",
		authMiddleware.RequireAuth(scopeMiddleware(h.Get)))
	mux.HandleFunc("POST /api/audit-documents/{did}/actions",
		authMiddleware.RequireAuth(scopeMiddleware(h.Act)))
}

// Create handles POST /api/units/{uid}/audit-document
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	doc, err := h.documentService.CreateDocument(r.Context(), unitAuditID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "create_document_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, doc); err != nil {
		h.logger.Error("Failed to encode document response", zap.Error(err))
	}
}

// GetByUnit handles GET /api/units/{uid}/audit-document
func (h *DocumentHandler) GetByUnit(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	doc, err := h.documentService.GetDocumentByUnit(r.Context(), unitAuditID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get_document_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, doc); err != nil {
		h.logger.Error("Failed to encode document response", zap.Error(err))
	}
}

// Get handles GET /api/audit-documents/{did}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	documentID, ok := ParseDocumentID(w, r, h.logger)
	if !ok {
		return
	}

	doc, err := h.documentService.GetDocument(r.Context(), documentID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get_document_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, doc); err != nil {
		h.logger.Error("Failed to encode document response", zap.Error(err))
	}
}

// Act handles POST /api/audit-documents/{did}/actions
func (h *DocumentHandler) Act(w http.ResponseWriter, r *http.Request) {
	documentID, ok := ParseDocumentID(w, r, h.logger)
	if !ok {
		return
	}

	var input services.DocumentActionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	doc, err := h.documentService.Act(r.Context(), documentID, &input)
	if err != nil {
		WriteServiceError(w, h.logger, err, "document_action_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, doc); err != nil {
		h.logger.Error("Failed to encode document response", zap.Error(err))
	}
}
