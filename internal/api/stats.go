package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/analytics"
	"github.com/patrickwarner/openbidbridge/internal/middleware"
)

// StatsResponse carries one day of decision counters for a slot.
type StatsResponse struct {
	Slot   string           `json:"slot"`
	Date   string           `json:"date"`
	Counts map[string]int64 `json:"counts"`
}

// StatsHandler handles GET /slots/{slot}/stats?date=YYYY-MM-DD. The date
// defaults to today (UTC).
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "stats"
	const method = "GET"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	e, err := s.lookup(mux.Vars(r)["slot"])
	if err != nil {
		s.observe(endpoint, method, http.StatusNotFound, start)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if s.Stats == nil {
		s.observe(endpoint, method, http.StatusServiceUnavailable, start)
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}

	day := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		day, err = time.Parse("2006-01-02", v)
		if err != nil {
			s.observe(endpoint, method, http.StatusBadRequest, start)
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	counts, err := s.Stats.DecisionCounts(r.Context(), e.slot.ID, day)
	if err != nil {
		logger.Error("read decision counters", zap.String("slot", e.slot.ID), zap.Error(err))
		s.observe(endpoint, method, http.StatusInternalServerError, start)
		http.Error(w, "failed to read stats", http.StatusInternalServerError)
		return
	}
	s.observe(endpoint, method, http.StatusOK, start)
	writeJSON(w, http.StatusOK, StatsResponse{Slot: e.slot.ID, Date: day.Format("2006-01-02"), Counts: counts}, logger)
}

// EventsResponse lists the logged outcomes of one ad request.
type EventsResponse struct {
	RequestID string                  `json:"request_id"`
	Events    []analytics.EventRecord `json:"events"`
}

// EventsHandler handles GET /requests/{id}/events.
func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "events"
	const method = "GET"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	id := mux.Vars(r)["id"]
	if s.Analytics == nil {
		s.observe(endpoint, method, http.StatusServiceUnavailable, start)
		http.Error(w, "analytics unavailable", http.StatusServiceUnavailable)
		return
	}

	events, err := s.Analytics.GetEventsByRequestID(r.Context(), id)
	switch {
	case errors.Is(err, analytics.ErrUnavailable):
		s.observe(endpoint, method, http.StatusServiceUnavailable, start)
		http.Error(w, "analytics unavailable", http.StatusServiceUnavailable)
		return
	case err != nil:
		logger.Error("query events", zap.String("request_id", id), zap.Error(err))
		s.observe(endpoint, method, http.StatusInternalServerError, start)
		http.Error(w, "failed to query events", http.StatusInternalServerError)
		return
	case len(events) == 0:
		s.observe(endpoint, method, http.StatusNotFound, start)
		http.Error(w, "no events for request", http.StatusNotFound)
		return
	}
	s.observe(endpoint, method, http.StatusOK, start)
	writeJSON(w, http.StatusOK, EventsResponse{RequestID: id, Events: events}, logger)
}
