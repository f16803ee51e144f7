package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/kozaktomas/lost-trace/internal/constants"
)

type contextKey string

const submitterContextKey contextKey = "submitter"

// SubmitterHeader carries the id of the party making the request.
const SubmitterHeader = "X-Submitter-ID"

// validSubmitterID rejects empty, oversized and control-character ids.
func validSubmitterID(id string) bool {
	if id == "" || len(id) > constants.MaxSubmitterIDLength {
		return false
	}
	return strings.IndexFunc(id, unicode.IsControl) < 0
}

// RequireSubmitter is middleware that requires a submitter id on the request
func RequireSubmitter() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(SubmitterHeader))
			if !validSubmitterID(id) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), submitterContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubmitterFromContext retrieves the submitter id from the request context
func GetSubmitterFromContext(ctx context.Context) string {
	id, _ := ctx.Value(submitterContextKey).(string)
	return id
}

// SetSubmitterInContext adds a submitter id to the context.
// This is primarily for testing - use RequireSubmitter middleware in production.
func SetSubmitterInContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, submitterContextKey, id)
}
