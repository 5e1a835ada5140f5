package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/eventhandler"
	"github.com/patrickwarner/openbidbridge/internal/middleware"
	"github.com/patrickwarner/openbidbridge/internal/models"
)

// AdResponse is the decision for one ad request.
type AdResponse struct {
	RequestID string `json:"request_id"`
	Slot      string `json:"slot"`
	Outcome   string `json:"outcome"`
	Message   string `json:"message,omitempty"`
	Size      string `json:"size,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}

// AdHandler handles POST /slots/{slot}/ad. The optional body is the partner
// bid; the handler waits for the slot to decide the winner.
func (s *Server) AdHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "ad"
	const method = "POST"
	logger := middleware.LoggerFromRequest(r, s.Logger)

	e, err := s.lookup(mux.Vars(r)["slot"])
	if err != nil {
		s.observe(endpoint, method, http.StatusNotFound, start)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.observe(endpoint, method, http.StatusBadRequest, start)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	defer func() {
		if closeErr := r.Body.Close(); closeErr != nil {
			logger.Warn("failed to close request body", zap.Error(closeErr))
		}
	}()

	var bid *models.Bid
	if len(body) > 0 {
		bid = &models.Bid{}
		if err := json.Unmarshal(body, bid); err != nil {
			s.observe(endpoint, method, http.StatusBadRequest, start)
			http.Error(w, "invalid bid json", http.StatusBadRequest)
			return
		}
	}

	if s.Limiter != nil && !s.Limiter.Allow(e.slot.ID) {
		logger.Debug("ad request rate limited", zap.String("slot", e.slot.ID))
		s.observe(endpoint, method, http.StatusTooManyRequests, start)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ch := e.listener.expect()
	id := e.handler.RequestAd(r.Context(), bid)
	e.listener.bind(ch, id)
	logger = logger.With(zap.String("slot", e.slot.ID), zap.String("request_id", string(id)))

	timer := time.NewTimer(s.DecisionTimeout)
	defer timer.Stop()

	select {
	case d := <-ch:
		resp := AdResponse{
			RequestID: string(id),
			Slot:      e.slot.ID,
			Outcome:   d.kind.String(),
			Message:   d.message,
			Size:      d.size,
		}
		logger.Debug("decision", zap.String("outcome", resp.Outcome))
		s.observe(endpoint, method, http.StatusOK, start)
		writeJSON(w, http.StatusOK, resp, logger)
	case <-timer.C:
		e.listener.abandon(ch)
		logger.Warn("no decision before timeout", zap.Duration("timeout", s.DecisionTimeout))
		s.observe(endpoint, method, http.StatusGatewayTimeout, start)
		http.Error(w, "no decision before timeout", http.StatusGatewayTimeout)
	case <-r.Context().Done():
		e.listener.abandon(ch)
		logger.Info("client went away before decision")
		s.observe(endpoint, method, 499, start)
	}
}

// ShowHandler handles POST /slots/{slot}/show for slots presented on demand.
func (s *Server) ShowHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "show"
	const method = "POST"

	e, err := s.lookup(mux.Vars(r)["slot"])
	if err != nil {
		s.observe(endpoint, method, http.StatusNotFound, start)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	shower, ok := e.handler.(Shower)
	if !ok {
		s.observe(endpoint, method, http.StatusBadRequest, start)
		http.Error(w, "slot ads are not shown on demand", http.StatusBadRequest)
		return
	}
	if err := shower.Show(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, eventhandler.ErrNotReady) {
			status = http.StatusConflict
		}
		s.observe(endpoint, method, status, start)
		http.Error(w, err.Error(), status)
		return
	}
	s.observe(endpoint, method, http.StatusNoContent, start)
	w.WriteHeader(http.StatusNoContent)
}
