package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-gate/internal/config"
)

// ConfigHandler exposes the non-secret matching settings to clients.
type ConfigHandler struct {
	config  *config.Config
	backend string
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, backend string) *ConfigHandler {
	return &ConfigHandler{
		config:  cfg,
		backend: backend,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Backend              string  `json:"backend"`
	EmbeddingDim         int     `json:"embedding_dim"`
	VerifyThreshold      float64 `json:"verify_threshold"`
	CompareThreshold     float64 `json:"compare_threshold"`
	Policy               string  `json:"policy"`
	GeofenceEnabled      bool    `json:"geofence_enabled"`
	GeofenceRadiusMeters float64 `json:"geofence_radius_meters,omitempty"`
	ComparisonTTLSeconds int     `json:"comparison_ttl_seconds"`
}

// Get returns the active configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	m := h.config.Matching
	response := ConfigResponse{
		Backend:              h.backend,
		EmbeddingDim:         m.EmbeddingDim,
		VerifyThreshold:      m.VerifyThreshold,
		CompareThreshold:     m.CompareThreshold,
		Policy:               m.Policy,
		GeofenceEnabled:      h.config.Geofence.Enabled,
		ComparisonTTLSeconds: int(m.ComparisonTTL.Seconds()),
	}
	if h.config.Geofence.Enabled {
		response.GeofenceRadiusMeters = h.config.Geofence.RadiusMeters
	}

	respondJSON(w, http.StatusOK, response)
}
