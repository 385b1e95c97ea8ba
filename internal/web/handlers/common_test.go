package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/extractor"
	"github.com/kozaktomas/face-gate/internal/verification"
)

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, map[string]string{"status": "ok"})

	contentType := recorder.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", contentType)
	}
}

func TestRespondJSON_SetsStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Accepted", http.StatusAccepted},
		{"BadRequest", http.StatusBadRequest},
		{"NotFound", http.StatusNotFound},
		{"NotImplemented", http.StatusNotImplemented},
		{"BadGateway", http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, nil)

			if recorder.Code != tc.statusCode {
				t.Errorf("expected status %d, got %d", tc.statusCode, recorder.Code)
			}
		})
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusNoContent, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "something went wrong")

	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["error"] != "something went wrong" {
		t.Errorf("expected error 'something went wrong', got '%s'", result["error"])
	}
}

func TestHealthCheck_ReturnsStatusOk(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantErr    string
	}{
		{"valid", `{"subject_id":"u1"}`, http.StatusOK, ""},
		{"empty", ``, http.StatusBadRequest, "request body is empty"},
		{"malformed", `{"subject_id":`, http.StatusBadRequest, errInvalidRequestBody},
		{"wrong type", `{"subject_id":42}`, http.StatusBadRequest, errInvalidRequestBody},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()

			var dst struct {
				SubjectID string `json:"subject_id"`
			}
			status, err := decodeJSON(recorder, req, &dst)

			if status != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, status)
			}
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.SubjectID != "u1" {
					t.Errorf("expected subject 'u1', got %q", dst.SubjectID)
				}
				return
			}
			if err == nil || err.Error() != tc.wantErr {
				t.Errorf("expected error %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	body := `{"image":"` + strings.Repeat("A", MaxBodyBytes) + `"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	recorder := httptest.NewRecorder()

	var dst map[string]string
	status, err := decodeJSON(recorder, req, &dst)

	if status != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status %d, got %d", http.StatusRequestEntityTooLarge, status)
	}
	if err == nil {
		t.Error("expected error for oversized body")
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"no face", extractor.ErrNoFaceDetected, http.StatusBadRequest, "no face detected"},
		{"invalid image", fmt.Errorf("%w: bad header", extractor.ErrInvalidImage), http.StatusBadRequest, "invalid image"},
		{"invalid input", fmt.Errorf("%w: subject id is required", verification.ErrInvalidInput), http.StatusBadRequest, "invalid input: subject id is required"},
		{"unknown comparison", verification.ErrUnknownComparison, http.StatusNotFound, "unknown or expired comparison token"},
		{"record not found", database.ErrNotFound, http.StatusNotFound, "enrollment not found"},
		{"store timeout", fmt.Errorf("list active: %w: %w", database.ErrTimeout, context.DeadlineExceeded), http.StatusBadGateway, "database query timeout"},
		{"store unavailable", fmt.Errorf("enroll: %w: %w", database.ErrUnavailable, errors.New("dial tcp")), http.StatusNotImplemented, "database connection failed"},
		{"extractor down", fmt.Errorf("%w: connection refused", extractor.ErrUnavailable), http.StatusBadGateway, "face extractor unavailable"},
		{"corrupt record", fmt.Errorf("%w: record 7", verification.ErrCorruptRecord), http.StatusInternalServerError, "stored face embedding is corrupt"},
		{"persistence", fmt.Errorf("enroll: %w: %w", database.ErrPersistence, errors.New("disk full")), http.StatusInternalServerError, "internal server error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, message := statusForError(tc.err)
			if status != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, status)
			}
			if message != tc.wantMessage {
				t.Errorf("expected message %q, got %q", tc.wantMessage, message)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("user\nINFO fake entry\r"); got != "userINFO fake entry" {
		t.Errorf("unexpected sanitized value %q", got)
	}
}
