package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError sends {"error": message} with a JSON content type.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck // headers already sent
}
