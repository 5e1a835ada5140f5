package eventhandler

import (
	"context"
	"errors"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
	"github.com/patrickwarner/openbidbridge/internal/targeting"
)

// BidExtrasKey is the local extras key the partner bid is passed under.
const BidExtrasKey = "partner_bid"

// ErrNotReady is returned by Show when no interstitial has loaded.
var ErrNotReady = errors.New("interstitial not ready")

// InterstitialConfigurer lets the publisher set keywords or local extras on
// each new interstitial before it loads.
type InterstitialConfigurer func(ad InterstitialAd)

// InterstitialEventHandler serves interstitials through a mediation network.
// There is no race: the partner bid travels as keywords and a successful
// load always reports a host win.
type InterstitialEventHandler struct {
	c     *core
	newAd InterstitialFactory

	mu         sync.RWMutex
	ad         InterstitialAd
	configurer InterstitialConfigurer
}

// NewInterstitialEventHandler returns a handler creating ads with newAd.
func NewInterstitialEventHandler(newAd InterstitialFactory, cfg Config) *InterstitialEventHandler {
	h := &InterstitialEventHandler{newAd: newAd}
	h.c = newCore(models.IntegrationInterstitial, cfg, h.currentHostAd)
	return h
}

// SetEventListener sets the listener that receives outcomes.
func (h *InterstitialEventHandler) SetEventListener(l Listener) { h.c.setListener(l) }

// SetConfigurer installs a hook run on every new interstitial.
func (h *InterstitialEventHandler) SetConfigurer(fn InterstitialConfigurer) {
	h.mu.Lock()
	h.configurer = fn
	h.mu.Unlock()
}

// RequestAd destroys the previous interstitial and loads a new one.
func (h *InterstitialEventHandler) RequestAd(ctx context.Context, bid *models.Bid) arbiter.RequestID {
	ctx, id := h.c.begin(ctx, bid, false)

	ad := h.newAd(h.c.slot.AdUnitID)
	ad.SetEventReceiver(h)

	h.mu.Lock()
	old := h.ad
	h.ad = ad
	configure := h.configurer
	h.mu.Unlock()
	if old != nil {
		old.SetEventReceiver(nil)
		old.Destroy()
	}

	if configure != nil {
		configure(ad)
	}
	h.c.checkReceiver(ad.EventReceiver() == InterstitialEvents(h))

	if bid != nil {
		keywords := targeting.JoinKeywords(bid.Targeting, ad.Keywords())
		h.c.logger.Debug("keywords", zap.String("request_id", string(id)), zap.String("keywords", keywords))
		ad.SetKeywords(keywords)

		extras := map[string]any{BidExtrasKey: bid}
		maps.Copy(extras, ad.LocalExtras())
		ad.SetLocalExtras(extras)
	}

	if err := ad.Load(ctx, id); err != nil {
		h.c.logger.Warn("interstitial load could not start", zap.String("request_id", string(id)), zap.Error(err))
		h.c.fail(id, err)
	}
	return id
}

// Show presents the loaded interstitial.
func (h *InterstitialEventHandler) Show() error {
	h.mu.RLock()
	ad := h.ad
	h.mu.RUnlock()
	if ad == nil || !ad.IsReady() {
		return ErrNotReady
	}
	return ad.Show()
}

// IsReady reports whether an interstitial is loaded and can be shown.
func (h *InterstitialEventHandler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ad != nil && h.ad.IsReady()
}

// Destroy cancels the live request and releases the interstitial.
func (h *InterstitialEventHandler) Destroy() {
	h.c.stop()
	h.destroyAd()
}

func (h *InterstitialEventHandler) destroyAd() {
	h.mu.Lock()
	ad := h.ad
	h.ad = nil
	h.mu.Unlock()
	if ad != nil {
		ad.SetEventReceiver(nil)
		ad.Destroy()
	}
}

func (h *InterstitialEventHandler) currentHostAd() HostAd {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.ad == nil {
		return nil
	}
	return h.ad
}

func (h *InterstitialEventHandler) OnInterstitialLoaded(id arbiter.RequestID) {
	h.c.arb.HostReady(id)
}

func (h *InterstitialEventHandler) OnInterstitialFailed(id arbiter.RequestID, code outcome.NetworkCode) {
	h.c.arb.Fail(id, outcome.NormalizeNetwork(code))
}

func (h *InterstitialEventHandler) OnInterstitialShown() {
	if l := h.c.getListener(); l != nil {
		l.OnOpened()
	}
}

func (h *InterstitialEventHandler) OnInterstitialClicked() {
	if l := h.c.getListener(); l != nil {
		l.OnLeftApplication()
	}
}

// OnInterstitialDismissed reports the close and releases the interstitial.
func (h *InterstitialEventHandler) OnInterstitialDismissed() {
	if l := h.c.getListener(); l != nil {
		l.OnClosed()
	}
	h.destroyAd()
}
