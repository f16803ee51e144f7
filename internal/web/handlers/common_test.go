package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/lost-trace/internal/correlation"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		data       any
		wantBody   string
	}{
		{"OK with data", http.StatusOK, map[string]int{"count": 2}, "{\"count\":2}\n"},
		{"Created", http.StatusCreated, []string{"a"}, "[\"a\"]\n"},
		{"nil data", http.StatusNoContent, nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, tc.data)

			assertStatusCode(t, recorder, tc.statusCode)
			assertContentType(t, recorder, "application/json")
			if recorder.Body.String() != tc.wantBody {
				t.Errorf("expected body %q, got %q", tc.wantBody, recorder.Body.String())
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusNotFound, "report not found")

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "report not found")
}

func TestRespondServiceError(t *testing.T) {
	verr := &correlation.ValidationError{Fields: []correlation.FieldError{{Field: "gender", Message: "is required"}}}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"validation", verr, http.StatusBadRequest, verr.Error()},
		{"wrapped validation", fmt.Errorf("submit: %w", verr), http.StatusBadRequest, verr.Error()},
		{"no face", correlation.ErrNoFaceDetected, http.StatusUnprocessableEntity, "no face detected in image"},
		{"extraction", correlation.ErrExtractionFailed, http.StatusInternalServerError, "failed to create report"},
		{"persistence", fmt.Errorf("%w: disk full", correlation.ErrPersistenceFailed), http.StatusInternalServerError, "failed to create report"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondServiceError(recorder, tc.err, "failed to create report")

			assertStatusCode(t, recorder, tc.wantStatus)
			assertJSONError(t, recorder, tc.wantError)
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("user\r\nINFO fake entry"); got != "userINFO fake entry" {
		t.Errorf("unexpected sanitized value %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPost} {
		recorder := httptest.NewRecorder()
		HealthCheck(recorder, httptest.NewRequest(method, "/api/v1/health", nil))

		assertStatusCode(t, recorder, http.StatusOK)
		var resp map[string]string
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["status"] != "ok" {
			t.Errorf("expected status ok, got %s", resp["status"])
		}
	}
}
