// ABOUTME: Unit tests for the admin error envelope helpers
// ABOUTME: Validates status codes, content type, and JSON shape

package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
	}{
		{"unknown kind", http.StatusBadRequest, ErrUnknownKind},
		{"plugin missing", http.StatusNotFound, ErrPluginNotFound},
		{"already enabled", http.StatusConflict, ErrAlreadyEnabled},
		{"store down", http.StatusServiceUnavailable, ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.status, tt.code, tt.name)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			resp := decode(t, w)
			if resp.Code != tt.code || resp.Status != tt.status || resp.Message != tt.name {
				t.Errorf("unexpected body: %+v", resp)
			}
			if resp.Field != "" || resp.Details != "" {
				t.Errorf("optional fields should be empty: %+v", resp)
			}
		})
	}
}

func TestWriteErrorWithField(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorWithField(w, http.StatusBadRequest, ErrUnknownKind, "unknown capability kind \"bank\"", "kind")

	resp := decode(t, w)
	if resp.Field != "kind" {
		t.Errorf("Field = %q, want kind", resp.Field)
	}
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorWithDetails(w, http.StatusInternalServerError, ErrDatabaseError, "failed to list events", "database is locked")

	resp := decode(t, w)
	if resp.Details != "database is locked" {
		t.Errorf("Details = %q", resp.Details)
	}
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}

func TestOptionalFieldsOmitted(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusNotFound, ErrNotFound, "nothing here")

	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"field", "details"} {
		if _, ok := raw[key]; ok {
			t.Errorf("%s should be omitted when empty", key)
		}
	}
}
