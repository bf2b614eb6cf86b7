package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quillpost/internal/models"
	"quillpost/internal/services"
)

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()

	writeJSON(rr, http.StatusCreated, map[string]interface{}{"success": true, "id": "abc"})

	if rr.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got %q", rr.Header().Get("Content-Type"))
	}

	var result map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["id"] != "abc" {
		t.Errorf("Expected id 'abc', got %v", result["id"])
	}
}

func TestErrorResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	req.Header.Set("X-Request-ID", "req-1")

	resp := errorRespWithFields("VALIDATION_ERROR", "Invalid input", map[string]string{"id": "is required"}, req)

	if resp.Success {
		t.Error("Expected success false")
	}
	if resp.Message != "Invalid input" || resp.Error.Message != "Invalid input" {
		t.Errorf("Expected message in both places, got %q / %q", resp.Message, resp.Error.Message)
	}
	if resp.Error.RequestID != "req-1" {
		t.Errorf("Expected request id 'req-1', got %q", resp.Error.RequestID)
	}
	if resp.Error.Fields["id"] != "is required" {
		t.Errorf("Expected field error, got %v", resp.Error.Fields)
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"name": "required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "already published"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "missing"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "no"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "not yours"}, http.StatusForbidden, "FORBIDDEN"},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"upstream", &services.UpstreamError{Message: "provider failed", Err: errors.New("503")}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			var resp models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Error.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, resp.Error.Code)
			}
		})
	}
}

func TestNoStore(t *testing.T) {
	rr := httptest.NewRecorder()
	noStore(rr)
	if rr.Header().Get("Cache-Control") != "no-cache, no-store, must-revalidate" {
		t.Errorf("unexpected Cache-Control %q", rr.Header().Get("Cache-Control"))
	}
}
