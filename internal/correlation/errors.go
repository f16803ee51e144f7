package correlation

import (
	"errors"
	"strings"

	"github.com/kozaktomas/lost-trace/internal/extractor"
)

var (
	// ErrNoFaceDetected means the photo has no usable face; no report was created.
	ErrNoFaceDetected = extractor.ErrNoFaceDetected
	// ErrExtractionFailed means the signature could not be computed; no report was created.
	ErrExtractionFailed = errors.New("signature extraction failed")
	// ErrPersistenceFailed means the report could not be stored.
	ErrPersistenceFailed = errors.New("failed to store report")
)

// FieldError describes one invalid submission field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid report: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}
