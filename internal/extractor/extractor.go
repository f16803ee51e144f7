// Package extractor derives face signatures from photos through the face-embedding sidecar.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/lost-trace/internal/facematch"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	defaultTimeout      = 30 * time.Second
	maxResponseBytes    = 4 << 20
)

// Extractor computes face signatures using the embedding sidecar.
// It is safe for concurrent use. The sidecar handshake runs once, on first use;
// a failed handshake is retried by the next call.
type Extractor struct {
	baseURL string
	client  *http.Client

	initMu sync.Mutex
	ready  bool
	model  string
}

// New creates an extractor for the sidecar at baseURL.
func New(baseURL string, timeout time.Duration) *Extractor {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Extractor{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// infoResponse is returned by GET /info.
type infoResponse struct {
	Model string `json:"model"`
	Dim   int    `json:"dim"`
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float64 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Init performs the sidecar handshake if it has not succeeded yet.
// Concurrent callers wait for a single attempt.
func (e *Extractor) Init(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.ready {
		return nil
	}

	info, err := e.fetchInfo(ctx)
	if err != nil {
		return extractionErr("init", err)
	}
	if info != nil {
		if info.Dim != facematch.SignatureDim {
			return extractionErr("init", fmt.Errorf("sidecar model %q produces %d-dim descriptors, need %d",
				info.Model, info.Dim, facematch.SignatureDim))
		}
		e.model = info.Model
	}

	e.ready = true
	log.WithFields(log.Fields{"url": e.baseURL, "model": e.model}).Info("Face embedding sidecar ready")
	return nil
}

// fetchInfo returns nil info when the sidecar has no /info endpoint.
func (e *Extractor) fetchInfo(ctx context.Context) (*infoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		log.WithField("url", e.baseURL).Warn("Sidecar has no /info endpoint, skipping model check")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var info infoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &info, nil
}

// Model returns the sidecar model name reported during Init.
func (e *Extractor) Model() string {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	return e.model
}

// Extract returns the signature of the most confident face in the image.
// It returns ErrNoFaceDetected when no face is found or the face descriptor is malformed,
// and an *ExtractionError for any other failure.
func (e *Extractor) Extract(ctx context.Context, imageData []byte) (facematch.Signature, error) {
	info, err := Inspect(imageData)
	if err != nil {
		return nil, extractionErr("decode", err)
	}

	if err := e.Init(ctx); err != nil {
		return nil, err
	}

	payload, err := downscale(imageData, info, MaxImageSide)
	if err != nil {
		return nil, extractionErr("resize", err)
	}

	faces, err := e.DetectFaces(ctx, payload)
	if err != nil {
		return nil, extractionErr("detect", err)
	}

	return selectSignature(faces)
}

// selectSignature picks the face with the highest detection score.
func selectSignature(faces *FaceResponse) (facematch.Signature, error) {
	if faces == nil || len(faces.Faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	best := &faces.Faces[0]
	for i := 1; i < len(faces.Faces); i++ {
		if faces.Faces[i].DetScore > best.DetScore {
			best = &faces.Faces[i]
		}
	}

	sig := facematch.SignatureFromFloat64(best.Embedding)
	if !sig.Valid() {
		return nil, ErrNoFaceDetected
	}
	return sig, nil
}

// DetectFaces posts the image to the sidecar and returns every detected face.
func (e *Extractor) DetectFaces(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := e.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (e *Extractor) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	return "application/octet-stream"
}
