// Package arbiter reconciles the host ad server's "ad loaded" callback and the
// partner's out-of-band win signal into exactly one decision per ad request.
//
// Both signals, the wait window timer and failures all enter through an
// Arbiter method carrying the RequestID they belong to. Transitions run under
// a single mutex. Resulting notices are queued in order and handed to the
// Sink by one drainer at a time, outside the lock, so a Sink may call back
// into the Arbiter (for example to start the next request).
package arbiter

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/observability"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
)

// DefaultWaitWindow is how long a host win is withheld when the partner may
// still signal.
const DefaultWaitWindow = 400 * time.Millisecond

// RequestID identifies one ad request.
type RequestID string

// NewRequestID returns a random request identity.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

// Decision is what the live request has committed to.
type Decision int

const (
	Undecided Decision = iota
	PartnerWon
	HostWon
	Failed
)

func (d Decision) String() string {
	switch d {
	case PartnerWon:
		return "partner_won"
	case HostWon:
		return "host_won"
	case Failed:
		return "failed"
	default:
		return "undecided"
	}
}

// State is the arbiter's position in its lifecycle.
type State int

const (
	Idle     State = iota // no request
	Armed                 // request issued, nothing decided
	Waiting               // host is ready, wait window running
	Resolved              // decision committed
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Waiting:
		return "waiting"
	case Resolved:
		return "resolved"
	default:
		return "idle"
	}
}

// Notice is one callback bound for the listener.
type Notice struct {
	Request RequestID
	Kind    outcome.Kind
	// Err is set for failures and for the mismatch diagnostic.
	Err *outcome.Error
	// Latency is the time between Arm and the commit that produced the notice.
	Latency time.Duration
}

// Sink receives notices one at a time, in commit order.
type Sink interface {
	Deliver(n Notice)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notice)

func (f SinkFunc) Deliver(n Notice) { f(n) }

// Config holds optional arbiter settings. Zero values use defaults.
type Config struct {
	// Integration labels wait window metrics.
	Integration string
	WaitWindow  time.Duration
	Clock       clock.Clock
	Logger      *zap.Logger
	Metrics     observability.MetricsRegistry
}

type request struct {
	id         RequestID
	eligible   bool
	decision   Decision
	armedAt    time.Time
	timer      *clock.Timer
	window     int // generation of the wait window; bumped on every start and stop
	mismatched bool
}

// Arbiter holds at most one live request.
type Arbiter struct {
	sink        Sink
	integration string
	window      time.Duration
	clock       clock.Clock
	logger      *zap.Logger
	metrics     observability.MetricsRegistry

	mu       sync.Mutex
	req      *request
	queue    []Notice
	draining bool
}

// New returns an idle Arbiter delivering to sink.
func New(sink Sink, cfg Config) *Arbiter {
	a := &Arbiter{
		sink:        sink,
		integration: cfg.Integration,
		window:      cfg.WaitWindow,
		clock:       cfg.Clock,
		logger:      observability.OrNop(cfg.Logger),
		metrics:     cfg.Metrics,
	}
	if a.integration == "" {
		a.integration = "banner"
	}
	if a.window <= 0 {
		a.window = DefaultWaitWindow
	}
	if a.clock == nil {
		a.clock = clock.New()
	}
	if a.metrics == nil {
		a.metrics = observability.NewNoOpRegistry()
	}
	return a
}

// WaitWindow returns the configured wait window.
func (a *Arbiter) WaitWindow() time.Duration { return a.window }

// Arm starts a new request, superseding any previous one. Its wait window is
// cancelled and notices not yet delivered are dropped.
func (a *Arbiter) Arm(partnerEligible bool) RequestID {
	id := NewRequestID()

	a.mu.Lock()
	if prev := a.req; prev != nil {
		a.stopWindowLocked(prev)
		a.logger.Debug("request superseded", zap.String("request_id", string(prev.id)), zap.Stringer("decision", prev.decision))
	}
	a.req = &request{id: id, eligible: partnerEligible, armedAt: a.clock.Now()}
	a.queue = nil
	a.mu.Unlock()

	a.logger.Debug("request armed", zap.String("request_id", string(id)), zap.Bool("partner_eligible", partnerEligible))
	return id
}

// PartnerWin handles the partner's win signal.
func (a *Arbiter) PartnerWin(id RequestID) {
	a.mu.Lock()
	r := a.live(id)
	switch {
	case r == nil:
		a.logger.Debug("stale partner win ignored", zap.String("request_id", string(id)))
	case r.decision == Undecided:
		a.stopWindowLocked(r)
		a.commitLocked(r, PartnerWon, outcome.PartnerWon, nil)
	case r.decision == HostWon && !r.mismatched:
		r.mismatched = true
		a.logger.Warn("partner win signal after host win", zap.String("request_id", string(id)))
		a.enqueueLocked(r, outcome.SignalingMismatch,
			outcome.New(outcome.SignalingMismatch, "partner win signal received after the host win was committed"))
	default:
		a.logger.Debug("partner win ignored", zap.String("request_id", string(id)), zap.Stringer("decision", r.decision))
	}
	a.mu.Unlock()
	a.flush()
}

// HostReady handles the host ad server's load callback. Without a partner
// bid the host wins at once; otherwise the wait window is (re)started.
func (a *Arbiter) HostReady(id RequestID) {
	a.mu.Lock()
	r := a.live(id)
	switch {
	case r == nil:
		a.logger.Debug("stale host ready ignored", zap.String("request_id", string(id)))
	case r.decision != Undecided:
		a.logger.Debug("host ready ignored", zap.String("request_id", string(id)), zap.Stringer("decision", r.decision))
	case !r.eligible:
		a.commitLocked(r, HostWon, outcome.HostWon, nil)
	default:
		a.startWindowLocked(r)
	}
	a.mu.Unlock()
	a.flush()
}

// Fail commits the request to a failure. It reports false when the request
// is stale or already decided, in which case nothing is delivered.
func (a *Arbiter) Fail(id RequestID, err *outcome.Error) bool {
	if err == nil {
		err = outcome.New(outcome.InternalError, "unknown failure")
	}

	a.mu.Lock()
	r := a.live(id)
	committed := r != nil && r.decision == Undecided
	if committed {
		a.stopWindowLocked(r)
		a.commitLocked(r, Failed, err.Kind, err)
	} else {
		a.logger.Debug("failure ignored", zap.String("request_id", string(id)), zap.Error(err))
	}
	a.mu.Unlock()
	a.flush()
	return committed
}

// Stop discards the live request. Nothing further is delivered for it.
func (a *Arbiter) Stop() {
	a.mu.Lock()
	if a.req != nil {
		a.stopWindowLocked(a.req)
	}
	a.req = nil
	a.queue = nil
	a.mu.Unlock()
}

// State reports the lifecycle state of the live request.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch r := a.req; {
	case r == nil:
		return Idle
	case r.decision != Undecided:
		return Resolved
	case r.timer != nil:
		return Waiting
	default:
		return Armed
	}
}

// Current returns the live request and its decision.
func (a *Arbiter) Current() (RequestID, Decision) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.req == nil {
		return "", Undecided
	}
	return a.req.id, a.req.decision
}

func (a *Arbiter) live(id RequestID) *request {
	if a.req == nil || a.req.id != id {
		return nil
	}
	return a.req
}

func (a *Arbiter) startWindowLocked(r *request) {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.window++
	gen, id := r.window, r.id
	r.timer = a.clock.AfterFunc(a.window, func() { a.expire(id, gen) })
	a.metrics.IncrementWaitWindow(a.integration, observability.WaitWindowStarted)
}

func (a *Arbiter) stopWindowLocked(r *request) {
	r.window++
	if r.timer == nil {
		return
	}
	r.timer.Stop()
	r.timer = nil
	a.metrics.IncrementWaitWindow(a.integration, observability.WaitWindowCancelled)
}

func (a *Arbiter) expire(id RequestID, gen int) {
	a.mu.Lock()
	r := a.live(id)
	if r == nil || r.window != gen || r.decision != Undecided {
		a.mu.Unlock()
		return
	}
	r.timer = nil
	a.metrics.IncrementWaitWindow(a.integration, observability.WaitWindowExpired)
	a.commitLocked(r, HostWon, outcome.HostWon, nil)
	a.mu.Unlock()
	a.flush()
}

func (a *Arbiter) commitLocked(r *request, d Decision, kind outcome.Kind, err *outcome.Error) {
	r.decision = d
	a.enqueueLocked(r, kind, err)
}

func (a *Arbiter) enqueueLocked(r *request, kind outcome.Kind, err *outcome.Error) {
	a.queue = append(a.queue, Notice{
		Request: r.id,
		Kind:    kind,
		Err:     err,
		Latency: a.clock.Since(r.armedAt),
	})
}

// flush delivers queued notices. Only one goroutine drains at a time; a
// notice whose request is no longer live is dropped.
func (a *Arbiter) flush() {
	a.mu.Lock()
	if a.draining {
		a.mu.Unlock()
		return
	}
	a.draining = true
	for len(a.queue) > 0 {
		n := a.queue[0]
		a.queue = a.queue[1:]
		if a.live(n.Request) == nil {
			continue
		}
		a.mu.Unlock()
		a.sink.Deliver(n)
		a.mu.Lock()
	}
	a.draining = false
	a.mu.Unlock()
}
