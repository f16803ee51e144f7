// Package constants provides shared constants used across the codebase.
package constants

// Handler constants
const (
	// MaxUploadSize is the maximum size of an uploaded report image (5 MiB)
	MaxUploadSize = 5 << 20

	// MaxRequestSize bounds the whole multipart request, image plus text fields
	MaxRequestSize = MaxUploadSize + 1<<20

	// MaxMultipartMemory is how much of a multipart body is kept in memory before spilling to disk
	MaxMultipartMemory = 8 << 20

	// MaxSubmitterIDLength is the longest accepted X-Submitter-ID value
	MaxSubmitterIDLength = 128

	// StatsCacheSeconds is how long report statistics are cached
	StatsCacheSeconds = 30
)
