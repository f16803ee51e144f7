// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Processing constants
const (
	// BackfillWorkers is the default number of parallel workers for signature backfill
	BackfillWorkers = 4

	// ShutdownTimeout is how long the server waits for in-flight requests on shutdown, in seconds
	ShutdownTimeout = 30

	// NotifyTimeout bounds how long a submission waits for a match notification to be acknowledged
	NotifyTimeout = 2 * time.Second
)

// Gallery index constants
const (
	// SearchCandidateLimit is how many candidates the gallery index preselects per search
	SearchCandidateLimit = 50
)
