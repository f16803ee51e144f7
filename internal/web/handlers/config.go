package handlers

import (
	"net/http"

	"github.com/kozaktomas/lost-trace/internal/config"
	"github.com/kozaktomas/lost-trace/internal/constants"
	"github.com/kozaktomas/lost-trace/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the public part of the configuration
type ConfigResponse struct {
	MatchThreshold      float64 `json:"match_threshold"`
	MaxUploadBytes      int     `json:"max_upload_bytes"`
	GalleryIndex        bool    `json:"gallery_index"`
	StorageBackend      string  `json:"storage_backend"`
	Notifications       bool    `json:"notifications"`
	SubmitRatePerMinute int     `json:"submit_rate_per_minute"`
	StoreReady          bool    `json:"store_ready"`
}

// Get returns the public configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		MatchThreshold:      h.config.Matching.Threshold,
		MaxUploadBytes:      constants.MaxUploadSize,
		GalleryIndex:        h.config.Matching.GalleryIndex,
		StorageBackend:      h.config.Storage.Backend,
		Notifications:       h.config.MQTT.Enabled(),
		SubmitRatePerMinute: h.config.Matching.SubmitRatePerMinute,
		StoreReady:          database.IsInitialized(),
	}

	respondJSON(w, http.StatusOK, response)
}
