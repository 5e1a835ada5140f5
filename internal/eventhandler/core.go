package eventhandler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/observability"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
)

// DefaultWinKey is the app event name the partner's line item creative fires
// when the partner wins.
const DefaultWinKey = "pubmaticdm"

const defaultRecordTimeout = 2 * time.Second

// Config configures an event handler. Zero values use defaults.
type Config struct {
	Slot models.Slot
	// WinKey overrides Slot.WinKey and DefaultWinKey.
	WinKey string
	// WaitWindow overrides Slot.WaitWindow and arbiter.DefaultWaitWindow.
	WaitWindow    time.Duration
	Clock         clock.Clock
	Logger        *zap.Logger
	Metrics       observability.MetricsRegistry
	Recorders     []DecisionRecorder
	RecordTimeout time.Duration
}

type requestInfo struct {
	id   arbiter.RequestID
	bid  *models.Bid
	span trace.Span
}

// core is the part shared by both handlers: listener management, delivery
// of arbiter notices, tracing and recording.
type core struct {
	integration models.Integration
	slot        models.Slot
	arb         *arbiter.Arbiter
	clock       clock.Clock
	logger      *zap.Logger
	metrics     observability.MetricsRegistry
	tracer      trace.Tracer
	recorders   []DecisionRecorder
	recordTO    time.Duration
	hostAd      func() HostAd

	mu       sync.RWMutex
	listener Listener
	cur      requestInfo
}

func newCore(integration models.Integration, cfg Config, hostAd func() HostAd) *core {
	c := &core{
		integration: integration,
		slot:        cfg.Slot,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		tracer:      observability.Tracer("eventhandler"),
		recorders:   cfg.Recorders,
		recordTO:    cfg.RecordTimeout,
		hostAd:      hostAd,
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.metrics == nil {
		c.metrics = observability.NewNoOpRegistry()
	}
	if c.recordTO <= 0 {
		c.recordTO = defaultRecordTimeout
	}
	c.logger = observability.OrNop(cfg.Logger).With(
		zap.String("slot", cfg.Slot.ID),
		zap.String("integration", string(integration)),
	)

	window := cfg.WaitWindow
	if window <= 0 {
		window = cfg.Slot.WaitWindow
	}
	c.arb = arbiter.New(arbiter.SinkFunc(c.deliver), arbiter.Config{
		Integration: string(integration),
		WaitWindow:  window,
		Clock:       c.clock,
		Logger:      c.logger,
		Metrics:     c.metrics,
	})
	return c
}

func (c *core) setListener(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

func (c *core) getListener() Listener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listener
}

// begin arms the arbiter for a new request and opens its span.
func (c *core) begin(ctx context.Context, bid *models.Bid, armEligible bool) (context.Context, arbiter.RequestID) {
	id := c.arb.Arm(armEligible)

	ctx, span := c.tracer.Start(ctx, string(c.integration)+".request_ad", trace.WithAttributes(
		attribute.String("slot.id", c.slot.ID),
		attribute.String("ad_unit.id", c.slot.AdUnitID),
		attribute.String("request.id", string(id)),
		attribute.Bool("partner.eligible", bid.IsPartnerEligible()),
	))
	if bid != nil {
		span.SetAttributes(attribute.Float64("bid.price", bid.Price), attribute.String("bid.id", bid.ID))
	}

	c.mu.Lock()
	prev := c.cur
	c.cur = requestInfo{id: id, bid: bid, span: span}
	c.mu.Unlock()
	if prev.span != nil {
		prev.span.AddEvent("superseded")
		prev.span.End()
	}

	c.metrics.IncrementAdRequests(string(c.integration))
	if bid != nil {
		c.logger.Debug("requesting ad", zap.String("request_id", string(id)), zap.Object("bid", bid))
	} else {
		c.logger.Debug("requesting ad without partner bid", zap.String("request_id", string(id)))
	}
	return ctx, id
}

// checkReceiver flags publisher code that replaced the handler's host event
// receiver. The request still goes ahead.
func (c *core) checkReceiver(ours bool) {
	if ours {
		return
	}
	c.metrics.IncrementListenerOverride(string(c.integration))
	c.logger.Warn("Do not set host ad server event receivers; the bridge needs them to report the winner")
}

// fail reports a transport failure for id. Errors of any type are normalized.
func (c *core) fail(id arbiter.RequestID, err error) {
	c.arb.Fail(id, outcome.FromError(err))
}

func (c *core) deliver(n arbiter.Notice) {
	l := c.getListener()
	c.mu.RLock()
	info := c.cur
	c.mu.RUnlock()
	if info.id != n.Request {
		info = requestInfo{id: n.Request}
	}

	log := c.logger.With(zap.String("request_id", string(n.Request)), zap.Stringer("outcome", n.Kind))
	if rl, ok := l.(RequestListener); ok {
		l = rl.ForRequest(n.Request)
	}
	switch {
	case l == nil:
		log.Error("no event listener set, outcome dropped")
	case n.Kind == outcome.PartnerWon:
		l.OnPartnerWon()
	case n.Kind == outcome.HostWon:
		l.OnHostWon(c.hostAd())
	default:
		l.OnFailed(n.Err)
	}

	integration := string(c.integration)
	c.metrics.IncrementDecision(integration, n.Kind.String())
	if n.Kind == outcome.SignalingMismatch {
		log.Warn("signaling mismatch reported")
	} else {
		c.metrics.RecordDecisionLatency(integration, n.Kind.String(), n.Latency)
		log.Info("ad request resolved", zap.Duration("latency", n.Latency))
		if info.span != nil {
			info.span.SetAttributes(attribute.String("outcome", n.Kind.String()))
			if n.Kind.IsFailure() && n.Err != nil {
				info.span.SetStatus(codes.Error, n.Err.Message)
			}
			info.span.End()
			c.mu.Lock()
			if c.cur.id == n.Request {
				c.cur.span = nil
			}
			c.mu.Unlock()
		}
	}

	c.record(n, info)
}

func (c *core) record(n arbiter.Notice, info requestInfo) {
	if len(c.recorders) == 0 {
		return
	}
	rec := models.DecisionRecord{
		RequestID:   string(n.Request),
		SlotID:      c.slot.ID,
		AdUnitID:    c.slot.AdUnitID,
		Integration: c.integration,
		Outcome:     n.Kind.String(),
		Latency:     n.Latency,
		Timestamp:   c.clock.Now().UTC(),
	}
	if n.Err != nil {
		rec.Message = n.Err.Message
	}
	if info.bid != nil {
		rec.BidID = info.bid.ID
		rec.BidPrice = info.bid.Price
		rec.PartnerEligible = info.bid.IsPartnerEligible()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.recordTO)
		defer cancel()
		for _, r := range c.recorders {
			if err := r.RecordDecision(ctx, rec); err != nil {
				name := fmt.Sprintf("%T", r)
				c.metrics.IncrementRecordErrors(name)
				c.logger.Warn("failed to record decision",
					zap.String("request_id", rec.RequestID),
					zap.String("recorder", name),
					zap.Error(err))
			}
		}
	}()
}

// stop tears the request down and ends its span.
func (c *core) stop() {
	c.arb.Stop()
	c.mu.Lock()
	span := c.cur.span
	c.cur = requestInfo{}
	c.listener = nil
	c.mu.Unlock()
	if span != nil {
		span.AddEvent("destroyed")
		span.End()
	}
}
