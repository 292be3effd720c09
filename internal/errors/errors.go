// ABOUTME: Standardized error response types and helpers for admin HTTP handlers
// ABOUTME: Every admin error is a JSON envelope with a machine-readable code

package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON envelope for admin API errors.
//
// Usage:
//
//	WriteError(w, http.StatusNotFound, ErrPluginNotFound, "no plugin named \"ledger\"")
type ErrorResponse struct {
	Code    string `json:"code"`              // Machine-readable error code (e.g., "unknown_kind")
	Message string `json:"message"`           // Human-readable error message
	Status  int    `json:"status"`            // HTTP status code
	Field   string `json:"field,omitempty"`   // Request parameter that caused the error
	Details string `json:"details,omitempty"` // Underlying error text
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
	})
}

// WriteErrorWithField names the request parameter that was rejected.
func WriteErrorWithField(w http.ResponseWriter, status int, code, message, field string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
		Field:   field,
	})
}

// WriteErrorWithDetails carries the underlying error text.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message, details string) {
	writeErrorResponse(w, ErrorResponse{
		Code:    code,
		Message: message,
		Status:  status,
		Details: details,
	})
}

func writeErrorResponse(w http.ResponseWriter, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	json.NewEncoder(w).Encode(resp)
}

// Error codes used by the admin API
const (
	// Client errors (4xx)
	ErrInvalidRequest  = "invalid_request"
	ErrUnauthorized    = "unauthorized"
	ErrUnknownKind     = "unknown_kind"
	ErrNotFound        = "not_found"
	ErrPluginNotFound  = "plugin_not_found"
	ErrAlreadyEnabled  = "plugin_already_enabled"
	ErrNotEnabled      = "plugin_not_enabled"
	ErrIncompatibleAPI = "incompatible_api"
	ErrUnbound         = "unbound"
	ErrConflict        = "conflict"

	// Server errors (5xx)
	ErrInternal           = "internal_error"
	ErrDatabaseError      = "database_error"
	ErrServiceUnavailable = "service_unavailable"
	ErrPluginFailed       = "plugin_failed"
)
