package correlation

import (
	"strings"
	"unicode/utf8"

	"github.com/kozaktomas/lost-trace/internal/database"
)

// Field limits for submitted reports.
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 5000
	MinAge               = 0
	MaxAge               = 150
)

// ReportFields are the descriptive fields supplied by the reporting party.
type ReportFields struct {
	PersonName  string `json:"person_name"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
	Description string `json:"description"`
}

// Normalize trims surrounding whitespace and lowercases the gender.
func (f ReportFields) Normalize() ReportFields {
	f.PersonName = strings.TrimSpace(f.PersonName)
	f.Gender = strings.ToLower(strings.TrimSpace(f.Gender))
	f.Description = strings.TrimSpace(f.Description)
	return f
}

// Validate checks the fields and returns a *ValidationError listing every problem, or nil.
func (f ReportFields) Validate() error {
	verr := &ValidationError{}

	if f.PersonName == "" {
		verr.add("person_name", "is required")
	} else if utf8.RuneCountInString(f.PersonName) > MaxNameLength {
		verr.add("person_name", "is too long")
	}
	if f.Age < MinAge || f.Age > MaxAge {
		verr.add("age", "must be between 0 and 150")
	}
	if f.Gender == "" {
		verr.add("gender", "is required")
	} else if !database.ValidGender(f.Gender) {
		verr.add("gender", "must be one of male, female, other")
	}
	if utf8.RuneCountInString(f.Description) > MaxDescriptionLength {
		verr.add("description", "is too long")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
