package handlers

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/lost-trace/internal/constants"
	"github.com/kozaktomas/lost-trace/internal/correlation"
	"github.com/kozaktomas/lost-trace/internal/extractor"
)

// requestError is a client error with the status it should be reported with.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

var errImageTooLarge = &requestError{
	status:  http.StatusRequestEntityTooLarge,
	message: fmt.Sprintf("image must not exceed %d MiB", constants.MaxUploadSize>>20),
}

// respondRequestError writes a requestError, or a generic 400 for anything else.
func respondRequestError(w http.ResponseWriter, err error) {
	var rerr *requestError
	if errors.As(err, &rerr) {
		respondError(w, rerr.status, rerr.message)
		return
	}
	respondError(w, http.StatusBadRequest, err.Error())
}

// parseMultipart limits and parses a multipart request body.
func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestSize)
	if err := r.ParseMultipartForm(constants.MaxMultipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return errImageTooLarge
		}
		return badRequest("failed to parse multipart form")
	}
	return nil
}

// readImage reads the "image" part and checks that it is a decodable image.
func readImage(r *http.Request) ([]byte, *extractor.ImageInfo, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, nil, badRequest("image is required")
	}
	defer file.Close()

	if header.Size > constants.MaxUploadSize {
		return nil, nil, errImageTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize+1))
	if err != nil {
		return nil, nil, badRequest("failed to read image")
	}
	if len(data) > constants.MaxUploadSize {
		return nil, nil, errImageTooLarge
	}

	info, err := extractor.Inspect(data)
	if err != nil {
		return nil, nil, badRequest("image must be a JPEG, PNG, GIF, BMP or WebP file")
	}
	return data, info, nil
}

// parseReportFields reads the descriptive fields of a submission and validates them.
func parseReportFields(r *http.Request) (correlation.ReportFields, error) {
	fields := correlation.ReportFields{
		PersonName:  r.FormValue("person_name"),
		Gender:      r.FormValue("gender"),
		Description: r.FormValue("description"),
	}.Normalize()

	age, ageErr := strconv.Atoi(strings.TrimSpace(r.FormValue("age")))
	if ageErr == nil {
		fields.Age = age
	}

	verr := &correlation.ValidationError{}
	if err := fields.Validate(); err != nil && !errors.As(err, &verr) {
		return fields, err
	}
	if ageErr != nil {
		verr.Fields = append(verr.Fields, correlation.FieldError{Field: "age", Message: "must be a whole number"})
	}
	if len(verr.Fields) > 0 {
		return fields, verr
	}
	return fields, nil
}

// parseThreshold reads an optional non-negative threshold; -1 means "use the default".
func parseThreshold(r *http.Request) (float64, error) {
	s := strings.TrimSpace(r.FormValue("threshold"))
	if s == "" {
		return -1, nil
	}
	t, err := strconv.ParseFloat(s, 64)
	if err != nil || t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, badRequest("threshold must be a non-negative number")
	}
	return t, nil
}
