package hostclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/eventhandler"
	"github.com/patrickwarner/openbidbridge/internal/models"
)

// BannerView is an HTTP backed eventhandler.BannerAdView.
type BannerView struct {
	client   *Client
	adUnitID string

	mu       sync.Mutex
	receiver eventhandler.HostEvents
	current  arbiter.RequestID
	resp     *AdResponse
	cancel   context.CancelFunc
	timers   []*clock.Timer
}

// NewBannerView returns a banner view for adUnitID.
func (c *Client) NewBannerView(adUnitID string) *BannerView {
	return &BannerView{client: c, adUnitID: adUnitID}
}

func (v *BannerView) AdUnitID() string { return v.adUnitID }

// Size returns the size of the loaded creative.
func (v *BannerView) Size() (models.AdSize, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.resp == nil || v.resp.Width == 0 || v.resp.Height == 0 {
		return models.AdSize{}, false
	}
	return models.AdSize{W: v.resp.Width, H: v.resp.Height}, true
}

// Creative returns the loaded creative, nil before a load completes.
func (v *BannerView) Creative() *AdResponse {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resp
}

func (v *BannerView) EventReceiver() eventhandler.HostEvents {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.receiver
}

func (v *BannerView) SetEventReceiver(r eventhandler.HostEvents) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.receiver = r
}

// LoadAd cancels any load in progress and fetches a new ad in the background.
func (v *BannerView) LoadAd(ctx context.Context, req *eventhandler.AdRequest) error {
	if req == nil {
		return errors.New("nil ad request")
	}
	body := &adRequest{
		RequestID: string(req.ID),
		AdUnitID:  req.AdUnitID,
		Format:    string(models.IntegrationBanner),
		Sizes:     formatSizes(req.Sizes),
		Targeting: req.CustomTargeting,
	}
	if body.AdUnitID == "" {
		body.AdUnitID = v.adUnitID
	}

	ctx, cancel := context.WithCancel(ctx)
	v.mu.Lock()
	v.resetLocked()
	v.current = req.ID
	v.cancel = cancel
	v.mu.Unlock()

	go v.load(ctx, req.ID, body)
	return nil
}

func (v *BannerView) load(ctx context.Context, id arbiter.RequestID, body *adRequest) {
	resp, err := v.client.fetch(ctx, string(models.IntegrationBanner), body)

	v.mu.Lock()
	if v.current != id {
		v.mu.Unlock()
		return
	}
	r := v.receiver
	if err != nil {
		v.mu.Unlock()
		v.client.logger.Debug("host ad request failed", zap.String("request_id", string(id)), zap.Error(err))
		if r != nil {
			r.OnAdFailedToLoad(id, HostCode(err))
		}
		return
	}

	v.resp = resp
	var immediate []AppEvent
	for _, ev := range resp.AppEvents {
		if ev.DelayMS <= 0 {
			immediate = append(immediate, ev)
			continue
		}
		ev := ev
		t := v.client.clock.AfterFunc(time.Duration(ev.DelayMS)*time.Millisecond, func() { v.emit(id, ev) })
		v.timers = append(v.timers, t)
	}
	v.mu.Unlock()

	if r == nil {
		return
	}
	for _, ev := range immediate {
		r.OnAppEvent(id, ev.Name, ev.Data)
	}
	r.OnAdLoaded(id)
}

func (v *BannerView) emit(id arbiter.RequestID, ev AppEvent) {
	v.mu.Lock()
	r, current := v.receiver, v.current
	v.mu.Unlock()
	if r != nil && current == id {
		r.OnAppEvent(id, ev.Name, ev.Data)
	}
}

// Destroy cancels pending work and drops the receiver.
func (v *BannerView) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resetLocked()
	v.current = ""
	v.receiver = nil
}

func (v *BannerView) resetLocked() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	for _, t := range v.timers {
		t.Stop()
	}
	v.timers = nil
	v.resp = nil
}
