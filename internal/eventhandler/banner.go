package eventhandler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
	"github.com/patrickwarner/openbidbridge/internal/targeting"
)

// BannerConfigurer lets the publisher adjust the view or request, for example
// to add its own custom targeting, before each load.
type BannerConfigurer func(view BannerAdView, req *AdRequest)

// BannerEventHandler races the host's "ad loaded" callback against the
// partner's win app event.
type BannerEventHandler struct {
	c      *core
	view   BannerAdView
	winKey string

	mu         sync.RWMutex
	configurer BannerConfigurer
}

// NewBannerEventHandler registers a handler as view's event receiver.
func NewBannerEventHandler(view BannerAdView, cfg Config) *BannerEventHandler {
	h := &BannerEventHandler{view: view, winKey: cfg.WinKey}
	if h.winKey == "" {
		h.winKey = cfg.Slot.WinKey
	}
	if h.winKey == "" {
		h.winKey = DefaultWinKey
	}
	if cfg.Slot.AdUnitID == "" {
		cfg.Slot.AdUnitID = view.AdUnitID()
	}
	h.c = newCore(models.IntegrationBanner, cfg, func() HostAd { return h.view })
	view.SetEventReceiver(h)
	return h
}

// SetEventListener sets the listener that receives outcomes.
func (h *BannerEventHandler) SetEventListener(l Listener) { h.c.setListener(l) }

// SetConfigurer installs a hook run before every load.
func (h *BannerEventHandler) SetConfigurer(fn BannerConfigurer) {
	h.mu.Lock()
	h.configurer = fn
	h.mu.Unlock()
}

// RequestAd starts a new ad request, superseding any in flight. The bid may
// be nil when the partner did not bid.
func (h *BannerEventHandler) RequestAd(ctx context.Context, bid *models.Bid) arbiter.RequestID {
	ctx, id := h.c.begin(ctx, bid, bid.IsPartnerEligible())

	req := &AdRequest{
		ID:              id,
		AdUnitID:        h.c.slot.AdUnitID,
		Sizes:           h.c.slot.Sizes,
		CustomTargeting: targeting.New(),
	}

	h.mu.RLock()
	configure := h.configurer
	h.mu.RUnlock()
	if configure != nil {
		configure(h.view, req)
	}
	h.c.checkReceiver(h.view.EventReceiver() == HostEvents(h))

	if bid != nil {
		bid.Targeting.Each(func(k, v string) {
			h.c.logger.Debug("custom targeting", zap.String("request_id", string(id)), zap.String("key", k), zap.String("value", v))
			req.CustomTargeting.Set(k, v)
		})
	}

	if err := h.view.LoadAd(ctx, req); err != nil {
		h.c.logger.Warn("ad load could not start", zap.String("request_id", string(id)), zap.Error(err))
		h.c.fail(id, err)
	}
	return id
}

// AdSize returns the served creative size.
func (h *BannerEventHandler) AdSize() (models.AdSize, bool) { return h.view.Size() }

// RequestedAdSizes returns the sizes requested from the host ad server.
func (h *BannerEventHandler) RequestedAdSizes() []models.AdSize { return h.c.slot.Sizes }

// State exposes the arbiter's state for the live request.
func (h *BannerEventHandler) State() arbiter.State { return h.c.arb.State() }

// Destroy cancels the live request and releases the view. No callbacks are
// delivered afterwards.
func (h *BannerEventHandler) Destroy() {
	h.c.stop()
	h.view.SetEventReceiver(nil)
	h.view.Destroy()
}

func (h *BannerEventHandler) OnAdLoaded(id arbiter.RequestID) {
	h.c.arb.HostReady(id)
}

func (h *BannerEventHandler) OnAdFailedToLoad(id arbiter.RequestID, code outcome.HostCode) {
	h.c.arb.Fail(id, outcome.NormalizeHost(code))
}

// OnAppEvent treats the configured win key as the partner's win signal.
// Other app events belong to the publisher and are ignored.
func (h *BannerEventHandler) OnAppEvent(id arbiter.RequestID, name, data string) {
	if name != h.winKey {
		h.c.logger.Debug("app event ignored", zap.String("request_id", string(id)), zap.String("name", name))
		return
	}
	h.c.arb.PartnerWin(id)
}

func (h *BannerEventHandler) OnAdOpened() {
	if l := h.c.getListener(); l != nil {
		l.OnOpened()
	}
}

func (h *BannerEventHandler) OnAdClosed() {
	if l := h.c.getListener(); l != nil {
		l.OnClosed()
	}
}

func (h *BannerEventHandler) OnAdLeftApplication() {
	if l := h.c.getListener(); l != nil {
		l.OnLeftApplication()
	}
}
