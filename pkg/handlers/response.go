package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/apperrors"
)

// ScopeMiddleware wraps a handler with a per-request database scope.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteServiceError maps a service error to its HTTP response: validation
// errors to 400, state errors to 409 with the failing precondition in the
// payload, not-found to 404, write conflicts to 409 with code retry_conflict,
// anything else to 500 under the given fallback code.
func WriteServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallbackCode string) {
	var writeErr error
	switch {
	case apperrors.IsValidation(err):
		writeErr = ErrorResponse(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		writeErr = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, apperrors.ErrConflict):
		writeErr = ErrorResponse(w, http.StatusConflict, "retry_conflict",
			"The resource changed underneath this request; re-read and retry")
	default:
		if stateErr, ok := apperrors.AsState(err); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			writeErr = json.NewEncoder(w).Encode(map[string]string{
				"error":        "precondition_failed",
				"precondition": stateErr.Precondition,
				"message":      stateErr.Msg,
			})
			break
		}
		writeErr = ErrorResponse(w, http.StatusInternalServerError, fallbackCode, err.Error())
	}
	if writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}
