package eventhandler

import (
	"context"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
	"github.com/patrickwarner/openbidbridge/internal/targeting"
)

// MediationBannerConfigurer lets the publisher set keywords or local extras
// on the view before each load.
type MediationBannerConfigurer func(view MediationBannerView)

// MediationBannerEventHandler serves banners through a mediation network.
// As with interstitials the partner bid travels as keywords, so there is no
// race and a load reports a host win.
type MediationBannerEventHandler struct {
	c    *core
	view MediationBannerView

	mu         sync.RWMutex
	configurer MediationBannerConfigurer

	// prepMu guards the publisher's own keywords and extras. The view is
	// reset to them before every request.
	prepMu      sync.Mutex
	pubKeywords string
	pubExtras   map[string]any
}

// NewMediationBannerEventHandler registers a handler as view's event receiver.
func NewMediationBannerEventHandler(view MediationBannerView, cfg Config) *MediationBannerEventHandler {
	if cfg.Slot.AdUnitID == "" {
		cfg.Slot.AdUnitID = view.AdUnitID()
	}
	h := &MediationBannerEventHandler{view: view}
	h.c = newCore(models.IntegrationMediationBanner, cfg, func() HostAd { return h.view })
	view.SetEventReceiver(h)
	return h
}

// SetEventListener sets the listener that receives outcomes.
func (h *MediationBannerEventHandler) SetEventListener(l Listener) { h.c.setListener(l) }

// SetConfigurer installs a hook run before every load.
func (h *MediationBannerEventHandler) SetConfigurer(fn MediationBannerConfigurer) {
	h.mu.Lock()
	h.configurer = fn
	h.mu.Unlock()
}

// RequestAd loads a banner. Targeting is forwarded as keywords only when the
// bid carries some; the bid itself goes into local extras only when it won
// the partner auction.
func (h *MediationBannerEventHandler) RequestAd(ctx context.Context, bid *models.Bid) arbiter.RequestID {
	ctx, id := h.c.begin(ctx, bid, false)

	h.mu.RLock()
	configure := h.configurer
	h.mu.RUnlock()

	h.prepMu.Lock()
	h.view.SetKeywords(h.pubKeywords)
	h.view.SetLocalExtras(h.pubExtras)
	if configure != nil {
		configure(h.view)
	}
	h.pubKeywords = h.view.Keywords()
	h.pubExtras = h.view.LocalExtras()

	h.c.checkReceiver(h.view.EventReceiver() == MediationBannerEvents(h))

	if bid != nil && bid.Targeting.Len() > 0 {
		keywords := targeting.JoinKeywords(bid.Targeting, h.view.Keywords())
		h.c.logger.Debug("keywords", zap.String("request_id", string(id)), zap.String("keywords", keywords))
		h.view.SetKeywords(keywords)

		if bid.HasWon() {
			extras := map[string]any{BidExtrasKey: bid}
			maps.Copy(extras, h.view.LocalExtras())
			h.view.SetLocalExtras(extras)
		}
	}
	h.prepMu.Unlock()

	if err := h.view.Load(ctx, id); err != nil {
		h.c.logger.Warn("banner load could not start", zap.String("request_id", string(id)), zap.Error(err))
		h.c.fail(id, err)
	}
	return id
}

// AdSize returns the served creative size.
func (h *MediationBannerEventHandler) AdSize() (models.AdSize, bool) { return h.view.Size() }

// RequestedAdSizes returns the single size the banner is requested at.
func (h *MediationBannerEventHandler) RequestedAdSizes() []models.AdSize {
	if len(h.c.slot.Sizes) == 0 {
		return nil
	}
	return h.c.slot.Sizes[:1]
}

// Destroy cancels the live request and releases the view.
func (h *MediationBannerEventHandler) Destroy() {
	h.c.stop()
	h.view.SetEventReceiver(nil)
	h.view.Destroy()
}

func (h *MediationBannerEventHandler) OnBannerLoaded(id arbiter.RequestID) {
	h.c.arb.HostReady(id)
}

func (h *MediationBannerEventHandler) OnBannerFailed(id arbiter.RequestID, code outcome.NetworkCode) {
	h.c.arb.Fail(id, outcome.NormalizeNetworkBanner(code))
}

// OnBannerClicked needs no action; the network opens the landing page.
func (h *MediationBannerEventHandler) OnBannerClicked() {}

func (h *MediationBannerEventHandler) OnBannerExpanded() {
	if l := h.c.getListener(); l != nil {
		l.OnOpened()
	}
}

func (h *MediationBannerEventHandler) OnBannerCollapsed() {
	if l := h.c.getListener(); l != nil {
		l.OnClosed()
	}
}
