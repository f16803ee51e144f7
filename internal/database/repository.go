package database

import (
	"context"

	"github.com/kozaktomas/lost-trace/internal/facematch"
)

// ReportReader provides read-only access to the report gallery
type ReportReader interface {
	// Get retrieves a report by id, returns nil if not found
	Get(ctx context.Context, id string) (*Report, error)
	// List returns all reports, newest first
	List(ctx context.Context) ([]Report, error)
	// ListBySubmitter returns the reports of one submitter, newest first
	ListBySubmitter(ctx context.Context, submitterID string) ([]Report, error)
	// ScanAll returns every stored report including its signature.
	// Rows with an absent or malformed signature are returned as-is, never as an error.
	ScanAll(ctx context.Context) ([]Report, error)
	// ScanExcluding returns every stored report except the one with the given id
	ScanExcluding(ctx context.Context, id string) ([]Report, error)
	// ListWithoutSignature returns reports that have no comparable signature
	ListWithoutSignature(ctx context.Context) ([]Report, error)
	// Count returns the total number of reports stored
	Count(ctx context.Context) (int, error)
	// CountByStatus returns per-status counts
	CountByStatus(ctx context.Context) (*ReportCounts, error)
}

// ReportWriter provides write access to the report gallery
type ReportWriter interface {
	ReportReader

	// Insert stores a new report atomically and returns its id.
	// An empty ID is replaced with a fresh UUID, an empty status with OPEN
	// and a zero SubmittedAt with the current time.
	Insert(ctx context.Context, report *Report) (string, error)

	// UpdateStatusAndLink sets status and matched_with of a report in one statement.
	// Returns ErrReportNotFound when either report does not exist.
	UpdateStatusAndLink(ctx context.Context, id string, status Status, matchedWith string) error

	// UpdateSignature replaces the stored signature of a report
	UpdateSignature(ctx context.Context, id string, signature facematch.Signature) error

	// Delete removes a report. Links pointing at it are cleared.
	// Returns ErrReportNotFound when the report does not exist.
	Delete(ctx context.Context, id string) error
}
