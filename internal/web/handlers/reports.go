package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/lost-trace/internal/blobstore"
	"github.com/kozaktomas/lost-trace/internal/correlation"
	"github.com/kozaktomas/lost-trace/internal/database"
	"github.com/kozaktomas/lost-trace/internal/extractor"
	"github.com/kozaktomas/lost-trace/internal/facematch"
	"github.com/kozaktomas/lost-trace/internal/web/middleware"
)

const blobReleaseTimeout = 10 * time.Second

// ReportsHandler handles report endpoints
type ReportsHandler struct {
	service *correlation.Service
	blobs   blobstore.Store
	stats   *StatsHandler
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(service *correlation.Service, blobs blobstore.Store, stats *StatsHandler) *ReportsHandler {
	return &ReportsHandler{
		service: service,
		blobs:   blobs,
		stats:   stats,
	}
}

// releaseImage deletes a stored image, logging instead of failing.
func (h *ReportsHandler) releaseImage(key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), blobReleaseTimeout)
	defer cancel()
	if err := h.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		log.WithError(err).WithField("key", key).Warn("Failed to release report image")
	}
}

func (h *ReportsHandler) invalidateStats() {
	if h.stats != nil {
		h.stats.InvalidateCache()
	}
}

// Create handles a multipart report submission
func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		respondRequestError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	fields, err := parseReportFields(r)
	if err != nil {
		respondServiceError(w, err, "invalid report")
		return
	}

	data, info, err := readImage(r)
	if err != nil {
		respondRequestError(w, err)
		return
	}

	submitter := middleware.GetSubmitterFromContext(r.Context())
	key := blobstore.NewReportKey(extractor.Extension(info.Format))
	obj, err := h.blobs.Put(r.Context(), key, data, extractor.ContentType(info.Format))
	if err != nil {
		log.WithError(err).WithField("submitted_by", sanitizeForLog(submitter)).Error("Failed to store report image")
		respondError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	result, err := h.service.Submit(r.Context(), correlation.SubmitRequest{
		Fields:         fields,
		Image:          data,
		ImageURL:       obj.URL,
		ImageStorageID: obj.Key,
		SubmittedBy:    submitter,
	})
	if err != nil {
		h.releaseImage(obj.Key)
		respondServiceError(w, err, "failed to create report")
		return
	}

	h.invalidateStats()
	respondJSON(w, http.StatusCreated, result)
}

// filterReports applies the optional name and status query filters.
func filterReports(r *http.Request, reports []database.Report) ([]database.Report, error) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	status := database.Status(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status != "" && !status.Valid() {
		return nil, badRequest("status must be OPEN or MATCHED")
	}

	out := make([]database.Report, 0, len(reports))
	for _, rep := range reports {
		if status != "" && rep.Status != status {
			continue
		}
		if name != "" && !facematch.NameContains(rep.PersonName, name) {
			continue
		}
		out = append(out, rep)
	}
	return out, nil
}

// List returns all reports, newest first
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	store := getReportStore(r, w)
	if store == nil {
		return
	}
	reports, err := store.List(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list reports")
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	h.respondReports(w, r, reports)
}

// Mine returns the reports of the calling submitter, newest first
func (h *ReportsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	store := getReportStore(r, w)
	if store == nil {
		return
	}
	submitter := middleware.GetSubmitterFromContext(r.Context())
	reports, err := store.ListBySubmitter(r.Context(), submitter)
	if err != nil {
		log.WithError(err).WithField("submitted_by", sanitizeForLog(submitter)).Error("Failed to list reports")
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	h.respondReports(w, r, reports)
}

func (h *ReportsHandler) respondReports(w http.ResponseWriter, r *http.Request, reports []database.Report) {
	filtered, err := filterReports(r, reports)
	if err != nil {
		respondRequestError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, filtered)
}

// Get returns a single report
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	store := getReportStore(r, w)
	if store == nil {
		return
	}
	id := chi.URLParam(r, "id")
	report, err := store.Get(r.Context(), id)
	if err != nil {
		log.WithError(err).WithField("report_id", sanitizeForLog(id)).Error("Failed to load report")
		respondError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Delete removes a report owned by the caller and releases its image
func (h *ReportsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	store := getReportStore(r, w)
	if store == nil {
		return
	}
	id := chi.URLParam(r, "id")
	report, err := store.Get(r.Context(), id)
	if err != nil {
		log.WithError(err).WithField("report_id", sanitizeForLog(id)).Error("Failed to load report")
		respondError(w, http.StatusInternalServerError, "failed to delete report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "report not found")
		return
	}
	if report.SubmittedBy != middleware.GetSubmitterFromContext(r.Context()) {
		respondError(w, http.StatusForbidden, "you can only delete your own reports")
		return
	}

	if err := store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrReportNotFound) {
			respondError(w, http.StatusNotFound, "report not found")
			return
		}
		log.WithError(err).WithField("report_id", id).Error("Failed to delete report")
		respondError(w, http.StatusInternalServerError, "failed to delete report")
		return
	}

	h.releaseImage(report.ImageStorageID)
	h.invalidateStats()
	log.WithField("report_id", id).Info("Report deleted")
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Search ranks stored reports against an uploaded photo without storing anything
func (h *ReportsHandler) Search(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		respondRequestError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	threshold, err := parseThreshold(r)
	if err != nil {
		respondRequestError(w, err)
		return
	}
	data, _, err := readImage(r)
	if err != nil {
		respondRequestError(w, err)
		return
	}

	result, err := h.service.Search(r.Context(), data, threshold)
	if err != nil {
		respondServiceError(w, err, "failed to search reports")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
