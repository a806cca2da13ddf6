// Package handlers implements the JSON endpoints of the read-only API.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tectoniq/seismograph/internal/application"
	"github.com/tectoniq/seismograph/internal/domain/classifier"
	"github.com/tectoniq/seismograph/internal/persistence"
)

// Metrics receives observability events from the handlers. Implemented by
// the server's metrics registry; nil disables recording.
type Metrics interface {
	RecordClassification(symbol string, regime classifier.Regime)
	RecordSimulation(d time.Duration)
	StreamOpened()
	StreamClosed()
}

type contextKey string

// RequestIDKey carries the per-request id through the context.
const RequestIDKey contextKey = "request_id"

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Handlers bundles endpoint implementations with their dependencies.
type Handlers struct {
	service *application.StateService
	repo    *persistence.Repository
	health  persistence.RepositoryHealth
	metrics Metrics
}

// NewHandlers creates the handler set. repo, health, and metrics may be nil
// when persistence or instrumentation is disabled.
func NewHandlers(service *application.StateService, repo *persistence.Repository,
	health persistence.RepositoryHealth, metrics Metrics) *Handlers {
	return &Handlers{service: service, repo: repo, health: health, metrics: metrics}
}

func (h *Handlers) observeClassification(symbol string, regime classifier.Regime) {
	if h.metrics != nil {
		h.metrics.RecordClassification(symbol, regime)
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(RequestIDKey).(string)
	if requestID == "" {
		requestID = "unknown"
	}
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
}

// NotFound handles unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}
