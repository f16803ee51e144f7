package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/lost-trace/internal/blobstore"
	"github.com/kozaktomas/lost-trace/internal/correlation"
	"github.com/kozaktomas/lost-trace/internal/database"
	"github.com/kozaktomas/lost-trace/internal/database/mock"
	"github.com/kozaktomas/lost-trace/internal/facematch"
	"github.com/kozaktomas/lost-trace/internal/web/middleware"
)

// fakeExtractor returns a fixed signature or error for every image
type fakeExtractor struct {
	mu        sync.Mutex
	signature facematch.Signature
	err       error
	calls     int
}

func (f *fakeExtractor) Extract(context.Context, []byte) (facematch.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.signature, nil
}

// testSignature returns a valid signature with every component set to x
func testSignature(x float32) facematch.Signature {
	s := make(facematch.Signature, facematch.SignatureDim)
	for i := range s {
		s[i] = x
	}
	return s
}

// reportsTest bundles the fakes behind a ReportsHandler
type reportsTest struct {
	store     *mock.MockReportStore
	extractor *fakeExtractor
	blobs     *blobstore.LocalStore
	stats     *StatsHandler
	handler   *ReportsHandler
}

// setupReportsTest registers a MockReportStore via the database provider system
// and returns a handler wired to it. Cleanup deregisters the mock.
func setupReportsTest(t *testing.T) *reportsTest {
	t.Helper()

	store := mock.NewMockReportStore()
	database.RegisterBackend("mock", func() database.ReportWriter { return store })
	t.Cleanup(database.ResetBackend)

	blobs, err := blobstore.NewLocalStore(t.TempDir(), "/images")
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	ex := &fakeExtractor{signature: testSignature(0)}
	service := correlation.NewService(store, ex, facematch.DefaultThreshold)
	stats := NewStatsHandler(facematch.DefaultThreshold)

	return &reportsTest{
		store:     store,
		extractor: ex,
		blobs:     blobs,
		stats:     stats,
		handler:   NewReportsHandler(service, blobs, stats),
	}
}

// testJPEG encodes a small solid-color JPEG
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// multipartRequest builds a multipart request with the given fields and an optional image
func multipartRequest(t *testing.T, path string, fields map[string]string, imageData []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if imageData != nil {
		part, err := writer.CreateFormFile("image", "photo.jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(imageData)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// asSubmitter attaches a submitter id as RequireSubmitter would
func asSubmitter(r *http.Request, id string) *http.Request {
	return r.WithContext(middleware.SetSubmitterInContext(r.Context(), id))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks the response Content-Type header
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%v'", expectedMessage, result["error"])
	}
}
