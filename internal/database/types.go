package database

import (
	"errors"
	"time"

	"github.com/kozaktomas/lost-trace/internal/facematch"
)

// ErrReportNotFound is returned by writes that target a report id that does not exist.
var ErrReportNotFound = errors.New("report not found")

// Status is the lifecycle state of a report.
type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusMatched Status = "MATCHED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusMatched
}

// Gender values accepted on a report.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// ValidGender reports whether g is one of the accepted gender values.
func ValidGender(g string) bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Report is a missing/found-person report together with its face signature.
type Report struct {
	ID             string              `json:"id"`
	PersonName     string              `json:"person_name"`
	Age            int                 `json:"age"`
	Gender         string              `json:"gender"`
	Description    string              `json:"description"`
	ImageURL       string              `json:"image_url"`
	ImageStorageID string              `json:"-"`
	Signature      facematch.Signature `json:"-"`
	Status         Status              `json:"status"`
	MatchedWith    string              `json:"matched_with,omitempty"`
	SubmittedBy    string              `json:"submitted_by"`
	SubmittedAt    time.Time           `json:"submitted_at"`
}

// HasSignature reports whether the report carries a comparable signature.
func (r *Report) HasSignature() bool {
	return r.Signature.Valid()
}

// GalleryEntry returns the report as a matcher candidate.
func (r *Report) GalleryEntry() facematch.GalleryEntry {
	return facematch.GalleryEntry{ID: r.ID, Signature: r.Signature}
}

// GalleryEntries converts reports to matcher candidates, preserving order.
func GalleryEntries(reports []Report) []facematch.GalleryEntry {
	entries := make([]facematch.GalleryEntry, len(reports))
	for i := range reports {
		entries[i] = reports[i].GalleryEntry()
	}
	return entries
}

// ReportCounts holds the number of reports per status.
type ReportCounts struct {
	Total            int `json:"total"`
	Open             int `json:"open"`
	Matched          int `json:"matched"`
	MissingSignature int `json:"missing_signature"`
}
