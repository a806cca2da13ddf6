package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tectoniq/seismograph/internal/persistence"
)

// State handles GET /v1/state/{symbol}: the latest classified day.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if symbol == "" {
		h.writeError(w, r, http.StatusBadRequest, "missing_symbol", "symbol is required")
		return
	}

	view, err := h.service.State(r.Context(), symbol)
	if err != nil {
		h.writeError(w, r, http.StatusBadGateway, "classification_failed", err.Error())
		return
	}
	h.observeClassification(symbol, view.AcceptedRegime)
	h.writeJSON(w, http.StatusOK, view)
}

// History handles GET /v1/history/{symbol}?from=&to=: the classified daily
// history, optionally bounded by date.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	views, err := h.service.History(r.Context(), symbol)
	if err != nil {
		h.writeError(w, r, http.StatusBadGateway, "classification_failed", err.Error())
		return
	}
	h.observeClassification(symbol, views[len(views)-1].AcceptedRegime)

	from, to, err := parseDateRange(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "bad_date_range", err.Error())
		return
	}
	if !from.IsZero() || !to.IsZero() {
		filtered := views[:0]
		for _, view := range views {
			if !from.IsZero() && view.Date.Before(from) {
				continue
			}
			if !to.IsZero() && view.Date.After(to) {
				continue
			}
			filtered = append(filtered, view)
		}
		views = filtered
	}
	h.writeJSON(w, http.StatusOK, views)
}

// RegimeStats handles GET /v1/stats/{symbol}?from=&to=: days per accepted
// regime, read from the repository.
func (h *Handlers) RegimeStats(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil || h.repo.States == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "persistence_disabled",
			"regime statistics require database persistence")
		return
	}
	symbol := mux.Vars(r)["symbol"]

	from, to, err := parseDateRange(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "bad_date_range", err.Error())
		return
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}

	stats, err := h.repo.States.RegimeStats(r.Context(), symbol, persistence.TimeRange{From: from, To: to})
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "stats_query_failed", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func parseDateRange(r *http.Request) (from, to time.Time, err error) {
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			return
		}
	}
	return
}
