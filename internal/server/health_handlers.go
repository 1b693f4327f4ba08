package server

import (
	"net/http"
	"time"
)

// HealthStatus represents operational status for the /health endpoint.
type HealthStatus struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Uptime     string                 `json:"uptime"`
	Store      string                 `json:"store"`
	Generation string                 `json:"generation"`
	Tracks     int                    `json:"trackCount"`
	Voices     int                    `json:"voiceCount"`
	Credits    int                    `json:"credits"`
	LastSaved  *time.Time             `json:"lastSaved,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// handleHealthCheck returns basic liveness + dependency checks.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now(),
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		Store:      "ok",
		Generation: "configured",
		Tracks:     len(s.ledger.Tracks()),
		Credits:    s.ledger.Balance(),
		Details:    make(map[string]interface{}),
	}
	if s.mixer != nil {
		health.Voices = len(s.mixer.Voices())
	}

	if s.health != nil {
		if err := s.health.Ping(); err != nil {
			health.Status = "unhealthy"
			health.Store = "error"
			health.Details["store_error"] = err.Error()
		}
		if clock, ok := s.health.(SnapshotClock); ok {
			if saved, err := clock.UpdatedAt(s.config.Store.Name); err == nil {
				health.LastSaved = &saved
			}
		}
	}

	// Missing back end settings degrade generation but not the ledger or mixer
	if s.config.Generation.BaseURL == "" {
		health.Generation = "not configured"
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, health)
}
