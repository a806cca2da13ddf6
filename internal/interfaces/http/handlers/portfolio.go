package handlers

import (
	"encoding/json"
	"net/http"
)

// portfolioRequest is the POST body for the portfolio endpoint. Weights are
// optional; holdings are weighted equally when none are given.
type portfolioRequest struct {
	Symbols []string  `json:"symbols"`
	Weights []float64 `json:"weights,omitempty"`
}

// Portfolio handles POST /v1/portfolio: the aggregated portfolio risk state
// for a set of weighted holdings.
func (h *Handlers) Portfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "bad_body", "request body must be JSON with symbols and optional weights")
		return
	}
	if len(req.Symbols) == 0 {
		h.writeError(w, r, http.StatusBadRequest, "missing_symbols", "symbols is required")
		return
	}

	weights := req.Weights
	if len(weights) == 0 {
		weights = make([]float64, len(req.Symbols))
		for i := range weights {
			weights[i] = 1.0 / float64(len(req.Symbols))
		}
	} else if len(weights) != len(req.Symbols) {
		h.writeError(w, r, http.StatusBadRequest, "weight_mismatch",
			"weights must match symbols one to one")
		return
	}

	state, err := h.service.Portfolio(r.Context(), req.Symbols, weights)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "aggregation_failed", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}
