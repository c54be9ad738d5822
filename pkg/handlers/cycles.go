package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/models"
	"github.com/siapepi/audit-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// CreateCycleRequest for POST /api/cycles
type CreateCycleRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// UpdateCycleStatusRequest for POST /api/cycles/{cid}/status
type UpdateCycleStatusRequest struct {
	Status models.CycleStatus `json:"status"`
}

// OverrideUnitStatusRequest for POST /api/units/{uid}/status
type OverrideUnitStatusRequest struct {
	Status models.UnitAuditStatus `json:"status"`
}

// CycleListResponse for GET /api/cycles
type CycleListResponse struct {
	Cycles []*models.AuditCycle `json:"cycles"`
	Total  int                  `json:"total"`
}

// UnitAuditListResponse for GET /api/cycles/{cid}/units
type UnitAuditListResponse struct {
	Units []*models.UnitAudit `json:"units"`
	Total int                 `json:"total"`
}

// InstrumentListResponse for GET /api/units/{uid}/instruments
type InstrumentListResponse struct {
	Instruments []*models.InstrumentDetail `json:"instruments"`
	Total       int                        `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// CycleHandler handles audit cycle and planning activation HTTP requests.
type CycleHandler struct {
	cycleService services.CycleService
	logger       *zap.Logger
}

// NewCycleHandler creates a new cycle handler.
func NewCycleHandler(cycleService services.CycleService, logger *zap.Logger) *CycleHandler {
	return &CycleHandler{
		cycleService: cycleService,
		logger:       logger,
	}
}

// RegisterRoutes registers the cycle handler's routes on the given mux.
func (h *CycleHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scopeMiddleware ScopeMiddleware) {
	adminOnly := authMiddleware.RequireRole(auth.RoleAdmin)

	mux.HandleFunc("POST /api/cycles", adminOnly(scopeMiddleware(h.Create)))
	mux.HandleFunc("GET /api/cycles", authMiddleware.RequireAuth(scopeMiddleware(h.List)))
	mux.HandleFunc("POST /api/cycles/{cid}/status", adminOnly(scopeMiddleware(h.UpdateStatus)))
	mux.HandleFunc("POST /api/cycles/{cid}/units", adminOnly(scopeMiddleware(h.ActivateUnit)))
	mux.HandleFunc("GET /api/cycles/{cid}/units", authMiddleware.RequireAuth(scopeMiddleware(h.ListUnits)))
	mux.HandleFunc("GET /api/units/{uid}", authMiddleware.RequireAuth(scopeMiddleware(h.GetUnit)))
	mux.HandleFunc("GET /api/units/{uid}/instruments", authMiddleware.RequireAuth(scopeMiddleware(h.ListInstruments)))
	mux.HandleFunc("POST /api/units/{uid}/status", adminOnly(scopeMiddleware(h.OverrideUnitStatus)))
}

// Create handles POST /api/cycles
func (h *CycleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "end_date must be YYYY-MM-DD")
		return
	}

	cycle := &models.AuditCycle{
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
	}
	if err := h.cycleService.CreateCycle(r.Context(), cycle); err != nil {
		WriteServiceError(w, h.logger, err, "create_cycle_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, cycle); err != nil {
		h.logger.Error("Failed to encode cycle response", zap.Error(err))
	}
}

// List handles GET /api/cycles
func (h *CycleHandler) List(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.cycleService.ListCycles(r.Context())
	if err != nil {
		h.logger.Error("Failed to list cycles", zap.Error(err))
		WriteServiceError(w, h.logger, err, "list_cycles_failed")
		return
	}
	if cycles == nil {
		cycles = []*models.AuditCycle{}
	}

	if err := WriteJSON(w, http.StatusOK, CycleListResponse{Cycles: cycles, Total: len(cycles)}); err != nil {
		h.logger.Error("Failed to encode cycle list", zap.Error(err))
	}
}

// UpdateStatus handles POST /api/cycles/{cid}/status
func (h *CycleHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	cycleID, ok := ParseCycleID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateCycleStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	cycle, err := h.cycleService.UpdateCycleStatus(r.Context(), cycleID, req.Status)
	if err != nil {
		WriteServiceError(w, h.logger, err, "update_cycle_status_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, cycle); err != nil {
		h.logger.Error("Failed to encode cycle response", zap.Error(err))
	}
}

// ActivateUnit handles POST /api/cycles/{cid}/units
func (h *CycleHandler) ActivateUnit(w http.ResponseWriter, r *http.Request) {
	cycleID, ok := ParseCycleID(w, r, h.logger)
	if !ok {
		return
	}

	var params services.ActivateUnitParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	unit, err := h.cycleService.ActivateUnit(r.Context(), cycleID, &params)
	if err != nil {
		WriteServiceError(w, h.logger, err, "activate_unit_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, unit); err != nil {
		h.logger.Error("Failed to encode unit audit response", zap.Error(err))
	}
}

// ListUnits handles GET /api/cycles/{cid}/units
func (h *CycleHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	cycleID, ok := ParseCycleID(w, r, h.logger)
	if !ok {
		return
	}

	units, err := h.cycleService.ListUnitAudits(r.Context(), cycleID)
	if err != nil {
		h.logger.Error("Failed to list unit audits",
			zap.String("cycle_id", cycleID.String()),
			zap.Error(err))
		WriteServiceError(w, h.logger, err, "list_units_failed")
		return
	}
	if units == nil {
		units = []*models.UnitAudit{}
	}

	if err := WriteJSON(w, http.StatusOK, UnitAuditListResponse{Units: units, Total: len(units)}); err != nil {
		h.logger.Error("Failed to encode unit audit list", zap.Error(err))
	}
}

// GetUnit handles GET /api/units/{uid}
func (h *CycleHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	unit, err := h.cycleService.GetUnitAudit(r.Context(), unitAuditID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "get_unit_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, unit); err != nil {
		h.logger.Error("Failed to encode unit audit response", zap.Error(err))
	}
}

// ListInstruments handles GET /api/units/{uid}/instruments
func (h *CycleHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	instruments, err := h.cycleService.GetUnitInstruments(r.Context(), unitAuditID)
	if err != nil {
		WriteServiceError(w, h.logger, err, "list_instruments_failed")
		return
	}
	if instruments == nil {
		instruments = []*models.InstrumentDetail{}
	}

	if err := WriteJSON(w, http.StatusOK, InstrumentListResponse{Instruments: instruments, Total: len(instruments)}); err != nil {
		h.logger.Error("Failed to encode instrument list", zap.Error(err))
	}
}

// OverrideUnitStatus handles POST /api/units/{uid}/status
func (h *CycleHandler) OverrideUnitStatus(w http.ResponseWriter, r *http.Request) {
	unitAuditID, ok := ParseUnitAuditID(w, r, h.logger)
	if !ok {
		return
	}

	var req OverrideUnitStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.cycleService.OverrideUnitStatus(r.Context(), unitAuditID, req.Status); err != nil {
		WriteServiceError(w, h.logger, err, "override_unit_status_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)}); err != nil {
		h.logger.Error("Failed to encode override response", zap.Error(err))
	}
}
