package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/tectoniq/seismograph/internal/backtest"
)

// simulationResponse wraps a run result with its id for later retrieval.
type simulationResponse struct {
	RunID  uuid.UUID        `json:"run_id"`
	Result *backtest.Result `json:"result"`
}

// Simulate handles POST /v1/simulate/{symbol}?mode=defensive.
func (h *Handlers) Simulate(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	mode := backtest.ModeDefensive
	if raw := r.URL.Query().Get("mode"); raw != "" {
		parsed, err := backtest.ParseStrategyMode(raw)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "bad_mode", err.Error())
			return
		}
		mode = parsed
	}

	start := time.Now()
	id, result, err := h.service.Simulate(r.Context(), symbol, mode)
	if err != nil {
		h.writeError(w, r, http.StatusBadGateway, "simulation_failed", err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSimulation(time.Since(start))
	}
	h.writeJSON(w, http.StatusOK, simulationResponse{RunID: id, Result: result})
}

// Runs handles GET /v1/runs?symbol=&limit=: recorded simulation summaries.
func (h *Handlers) Runs(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil || h.repo.Simulations == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "persistence_disabled",
			"run history requires database persistence")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			h.writeError(w, r, http.StatusBadRequest, "bad_limit", "limit must be in [1,500]")
			return
		}
		limit = v
	}

	var err error
	var runs interface{}
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		runs, err = h.repo.Simulations.ListBySymbol(r.Context(), symbol, limit)
	} else {
		runs, err = h.repo.Simulations.Latest(r.Context(), limit)
	}
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "runs_query_failed", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// Run handles GET /v1/runs/{id}: one run with its full result payload.
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil || h.repo.Simulations == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "persistence_disabled",
			"run history requires database persistence")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "bad_run_id", "run id must be a UUID")
		return
	}

	run, err := h.repo.Simulations.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "run_query_failed", err.Error())
		return
	}
	if run == nil {
		h.writeError(w, r, http.StatusNotFound, "run_not_found", "no run with that id")
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}
