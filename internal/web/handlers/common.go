package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/lost-trace/internal/correlation"
	"github.com/kozaktomas/lost-trace/internal/database"
)

// errStoreUnavailable is a shared error message for a missing report store.
const errStoreUnavailable = "report storage not available"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondValidationError sends a 400 listing every invalid field.
func respondValidationError(w http.ResponseWriter, verr *correlation.ValidationError) {
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"error":  verr.Error(),
		"fields": verr.Fields,
	})
}

// respondServiceError maps correlation errors to HTTP responses.
// fallback is the message used for unexpected failures.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	var verr *correlation.ValidationError
	switch {
	case errors.As(err, &verr):
		respondValidationError(w, verr)
	case errors.Is(err, correlation.ErrNoFaceDetected):
		respondError(w, http.StatusUnprocessableEntity, correlation.ErrNoFaceDetected.Error())
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

// getReportStore returns the registered report store or writes a 500.
func getReportStore(r *http.Request, w http.ResponseWriter) database.ReportWriter {
	store, err := database.GetReportWriter(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, errStoreUnavailable)
		return nil
	}
	return store
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
