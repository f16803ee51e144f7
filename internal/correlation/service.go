// Package correlation turns a submitted photo into a stored report and links it
// to the closest earlier report of the same person.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/lost-trace/internal/constants"
	"github.com/kozaktomas/lost-trace/internal/database"
	"github.com/kozaktomas/lost-trace/internal/facematch"
	"github.com/kozaktomas/lost-trace/internal/notify"
)

// SignatureExtractor derives a face signature from an image.
type SignatureExtractor interface {
	Extract(ctx context.Context, image []byte) (facematch.Signature, error)
}

// Service runs submissions and probe-only searches against the report gallery.
type Service struct {
	store     database.ReportWriter
	extractor SignatureExtractor
	notifier  notify.Notifier
	index     *database.GalleryIndex
	threshold float64
	now       func() time.Time

	notifyTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the notifier told about new matches.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithGalleryIndex enables candidate preselection for Search.
func WithGalleryIndex(idx *database.GalleryIndex) Option {
	return func(s *Service) { s.index = idx }
}

// WithClock overrides the time source used for submitted_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNotifyTimeout bounds each match notification.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

// NewService creates a Service. A negative or NaN threshold falls back to facematch.DefaultThreshold.
func NewService(store database.ReportWriter, extractor SignatureExtractor, threshold float64, opts ...Option) *Service {
	if threshold < 0 || math.IsNaN(threshold) {
		threshold = facematch.DefaultThreshold
	}
	s := &Service{
		store:     store,
		extractor: extractor,
		notifier:  notify.Noop{},
		threshold: threshold,
		now:       time.Now,

		notifyTimeout: constants.NotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the configured match threshold.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// SubmitRequest is one report submission.
type SubmitRequest struct {
	Fields         ReportFields
	Image          []byte
	ImageURL       string
	ImageStorageID string
	SubmittedBy    string
}

// MatchedReport is a snapshot of the public fields of a matched report.
type MatchedReport struct {
	PersonName  string          `json:"person_name"`
	Age         int             `json:"age"`
	Gender      string          `json:"gender"`
	ImageURL    string          `json:"image_url"`
	Status      database.Status `json:"status"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// Match is a ranked gallery hit with its presentational confidence.
type Match struct {
	ID         string        `json:"id"`
	Distance   float64       `json:"distance"`
	Confidence string        `json:"confidence"`
	Report     MatchedReport `json:"report"`
}

// SubmitResult is returned for every persisted submission.
// Matches is nil when nothing passed the threshold.
// Degraded is set when the report was stored but could not be linked; it then stays OPEN.
type SubmitResult struct {
	Report    *database.Report `json:"report"`
	Matches   []Match          `json:"matches"`
	Degraded  bool             `json:"degraded"`
	LinkError error            `json:"-"`
}

// Submit validates, extracts, stores and links a new report.
//
// Errors: *ValidationError, ErrNoFaceDetected, ErrExtractionFailed and ErrPersistenceFailed
// all mean nothing was stored. Once the report is stored Submit always returns a result;
// failures to scan the gallery or to link are reported through SubmitResult.Degraded.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	fields := req.Fields.Normalize()
	if err := validateSubmission(fields, req); err != nil {
		return nil, err
	}

	signature, err := s.extract(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	report := &database.Report{
		PersonName:     fields.PersonName,
		Age:            fields.Age,
		Gender:         fields.Gender,
		Description:    fields.Description,
		ImageURL:       req.ImageURL,
		ImageStorageID: req.ImageStorageID,
		Signature:      signature,
		Status:         database.StatusOpen,
		SubmittedBy:    req.SubmittedBy,
		SubmittedAt:    s.now(),
	}

	id, err := s.store.Insert(ctx, report)
	if err != nil {
		log.WithError(err).WithField("submitted_by", req.SubmittedBy).Error("Failed to store report")
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	report.ID = id
	logger := log.WithField("report_id", id)

	result := &SubmitResult{Report: report}

	gallery, err := s.store.ScanExcluding(ctx, id)
	if err != nil {
		logger.WithError(err).Error("Failed to scan gallery, report left unlinked")
		result.Degraded = true
		result.LinkError = err
		return result, nil
	}

	ranked := facematch.Rank(signature, database.GalleryEntries(gallery), s.threshold)
	result.Matches = enrich(ranked, gallery)

	best, ok := facematch.Best(ranked)
	if !ok {
		logger.WithField("gallery_size", len(gallery)).Debug("No match for new report")
		return result, nil
	}

	if err := s.store.UpdateStatusAndLink(ctx, id, database.StatusMatched, best.ID); err != nil {
		logger.WithError(err).WithField("match_id", best.ID).Error("Failed to link report to match")
		result.Degraded = true
		result.LinkError = err
		return result, nil
	}

	report.Status = database.StatusMatched
	report.MatchedWith = best.ID
	logger.WithFields(log.Fields{
		"match_id": best.ID,
		"distance": best.Distance,
	}).Info("Report matched")

	s.notifyMatch(ctx, report, best)
	return result, nil
}

func validateSubmission(fields ReportFields, req SubmitRequest) error {
	err := fields.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		verr = &ValidationError{}
	}
	if len(req.Image) == 0 {
		verr.add("image", "is required")
	}
	if req.SubmittedBy == "" {
		verr.add("submitted_by", "is required")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// extract maps extractor failures onto the service errors.
func (s *Service) extract(ctx context.Context, image []byte) (facematch.Signature, error) {
	signature, err := s.extractor.Extract(ctx, image)
	if errors.Is(err, ErrNoFaceDetected) {
		return nil, ErrNoFaceDetected
	}
	if err != nil {
		log.WithError(err).Error("Signature extraction failed")
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return signature, nil
}

// enrich attaches the snapshot of each matched report taken from the gallery scan.
func enrich(ranked []facematch.RankedMatch, gallery []database.Report) []Match {
	if len(ranked) == 0 {
		return nil
	}

	byID := make(map[string]*database.Report, len(gallery))
	for i := range gallery {
		byID[gallery[i].ID] = &gallery[i]
	}

	matches := make([]Match, 0, len(ranked))
	for _, r := range ranked {
		m := Match{
			ID:         r.ID,
			Distance:   r.Distance,
			Confidence: facematch.FormatConfidence(r.Distance),
		}
		if rep, ok := byID[r.ID]; ok {
			m.Report = MatchedReport{
				PersonName:  rep.PersonName,
				Age:         rep.Age,
				Gender:      rep.Gender,
				ImageURL:    rep.ImageURL,
				Status:      rep.Status,
				SubmittedAt: rep.SubmittedAt,
			}
		}
		matches = append(matches, m)
	}
	return matches
}

func (s *Service) notifyMatch(ctx context.Context, report *database.Report, best facematch.RankedMatch) {
	event := notify.MatchEvent{
		ReportID:    report.ID,
		MatchedWith: best.ID,
		PersonName:  report.PersonName,
		Distance:    best.Distance,
		Confidence:  facematch.FormatConfidence(best.Distance),
		MatchedAt:   s.now(),
	}
	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	if err := s.notifier.NotifyMatch(ctx, event); err != nil {
		log.WithError(err).WithField("report_id", report.ID).Warn("Failed to publish match notification")
	}
}

// SearchResult is the outcome of a probe-only search.
type SearchResult struct {
	Matches   []Match `json:"matches"`
	Threshold float64 `json:"threshold"`
	Searched  int     `json:"searched"`
}

// Search ranks the gallery against the face in image without storing anything.
// A negative threshold uses the service threshold.
func (s *Service) Search(ctx context.Context, image []byte, threshold float64) (*SearchResult, error) {
	if len(image) == 0 {
		verr := &ValidationError{}
		verr.add("image", "is required")
		return nil, verr
	}
	if threshold < 0 || math.IsNaN(threshold) {
		threshold = s.threshold
	}

	signature, err := s.extract(ctx, image)
	if err != nil {
		return nil, err
	}

	gallery, err := s.searchGallery(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("load gallery: %w", err)
	}

	ranked := facematch.Rank(signature, database.GalleryEntries(gallery), threshold)
	return &SearchResult{
		Matches:   enrich(ranked, gallery),
		Threshold: threshold,
		Searched:  len(gallery),
	}, nil
}

// searchGallery returns the reports to rank: index candidates when an index is
// available, otherwise the full gallery.
func (s *Service) searchGallery(ctx context.Context, signature facematch.Signature) ([]database.Report, error) {
	if s.index == nil || s.index.Count() == 0 {
		return s.store.ScanAll(ctx)
	}

	candidates := s.index.Candidates(signature, constants.SearchCandidateLimit, "")
	reports := make([]database.Report, 0, len(candidates))
	for _, c := range candidates {
		r, err := s.store.Get(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if r == nil {
			continue // deleted since indexing
		}
		reports = append(reports, *r)
	}
	return reports, nil
}
