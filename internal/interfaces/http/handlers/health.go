package handlers

import (
	"net/http"
	"time"

	"github.com/tectoniq/seismograph/internal/persistence"
)

type healthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Storage   *persistence.HealthCheck `json:"storage,omitempty"`
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Timestamp: time.Now().UTC()}
	status := http.StatusOK

	if h.health != nil {
		check := h.health.Health(r.Context())
		resp.Storage = &check
		if !check.Healthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	h.writeJSON(w, status, resp)
}
