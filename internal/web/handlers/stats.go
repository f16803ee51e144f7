package handlers

import (
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/lost-trace/internal/constants"
	"github.com/kozaktomas/lost-trace/internal/database"
)

const statsCacheTTL = constants.StatsCacheSeconds * time.Second

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	threshold float64
	cache     statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(threshold float64) *StatsHandler {
	return &StatsHandler{threshold: threshold}
}

// InvalidateCache clears the cached stats so the next request fetches fresh data
func (h *StatsHandler) InvalidateCache() {
	h.cache.invalidate()
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	database.ReportCounts
	Threshold      float64 `json:"threshold"`
	Backend        string  `json:"backend"`
	IndexedReports *int    `json:"indexed_reports,omitempty"`
}

// Get returns report counts by status
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	store := getReportStore(r, w)
	if store == nil {
		return
	}
	counts, err := store.CountByStatus(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to count reports")
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	stats := &StatsResponse{
		ReportCounts: *counts,
		Threshold:    h.threshold,
		Backend:      database.BackendName(),
	}
	if idx := database.GetGalleryIndex(); idx != nil {
		n := idx.Count()
		stats.IndexedReports = &n
	}

	h.cache.set(stats)
	respondJSON(w, http.StatusOK, stats)
}
