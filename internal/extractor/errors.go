package extractor

import (
	"errors"
	"fmt"
)

// ErrNoFaceDetected is returned when the image contains no usable face.
// A face whose descriptor is malformed is reported the same way.
var ErrNoFaceDetected = errors.New("no face detected in image")

// ExtractionError is returned for every failure other than a missing face:
// undecodable images, an unreachable sidecar, bad status codes or malformed responses.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("signature extraction failed (%s): %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionErr(op string, err error) error {
	return &ExtractionError{Op: op, Err: err}
}
