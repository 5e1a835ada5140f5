package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/analytics"
	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/eventhandler"
	"github.com/patrickwarner/openbidbridge/internal/middleware"
	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/observability"
)

// ErrUnknownSlot is returned for slot ids that were never registered.
var ErrUnknownSlot = errors.New("unknown slot")

const defaultDecisionTimeout = 3 * time.Second

// AdSlot is the part of an event handler the API drives.
type AdSlot interface {
	RequestAd(ctx context.Context, bid *models.Bid) arbiter.RequestID
	SetEventListener(l eventhandler.Listener)
	Destroy()
}

// Shower is implemented by slots whose ad is presented on demand.
type Shower interface {
	Show() error
}

// StatsStore reads daily decision counters.
type StatsStore interface {
	DecisionCounts(ctx context.Context, slotID string, day time.Time) (map[string]int64, error)
}

// RateLimiter gates ad requests per slot.
type RateLimiter interface {
	Allow(slotID string) bool
}

type slotEntry struct {
	slot     models.Slot
	handler  AdSlot
	listener *slotListener

	// mu serializes ad requests on the slot.
	mu sync.Mutex
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger          *zap.Logger
	Stats           StatsStore
	Analytics       analytics.AnalyticsService
	Metrics         observability.MetricsRegistry
	DecisionTimeout time.Duration
	// Limiter is optional; nil admits every ad request.
	Limiter RateLimiter

	mu    sync.RWMutex
	slots map[string]*slotEntry
}

// NewServer constructs a Server. stats and events may be nil, in which case
// the endpoints backed by them answer 503.
func NewServer(logger *zap.Logger, stats StatsStore, events analytics.AnalyticsService, metrics observability.MetricsRegistry, decisionTimeout time.Duration) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if decisionTimeout <= 0 {
		decisionTimeout = defaultDecisionTimeout
	}
	return &Server{
		Logger:          observability.OrNop(logger),
		Stats:           stats,
		Analytics:       events,
		Metrics:         metrics,
		DecisionTimeout: decisionTimeout,
		slots:           make(map[string]*slotEntry),
	}
}

// RegisterSlot makes h reachable under the slot's id. The server becomes
// the handler's event listener.
func (s *Server) RegisterSlot(slot models.Slot, h AdSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[slot.ID]; ok {
		return fmt.Errorf("slot %s already registered", slot.ID)
	}
	l := &slotListener{logger: s.Logger.With(zap.String("slot", slot.ID))}
	h.SetEventListener(l)
	s.slots[slot.ID] = &slotEntry{slot: slot, handler: h, listener: l}
	return nil
}

// SlotIDs returns the registered slot ids in sorted order.
func (s *Server) SlotIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) lookup(id string) (*slotEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.slots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, id)
	}
	return e, nil
}

// Close destroys every registered handler.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.slots {
		e.handler.Destroy()
		delete(s.slots, id)
	}
}

// Router returns the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.WithRequestLogger(s.Logger))
	r.HandleFunc("/slots/{slot}/ad", s.AdHandler).Methods("POST")
	r.HandleFunc("/slots/{slot}/show", s.ShowHandler).Methods("POST")
	r.HandleFunc("/slots/{slot}/stats", s.StatsHandler).Methods("GET")
	r.HandleFunc("/requests/{id}/events", s.EventsHandler).Methods("GET")
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// observe records the request count and latency for an endpoint.
func (s *Server) observe(endpoint, method string, status int, start time.Time) {
	s.Metrics.IncrementRequests(endpoint, method, fmt.Sprint(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
