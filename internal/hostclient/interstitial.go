package hostclient

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/eventhandler"
	"github.com/patrickwarner/openbidbridge/internal/models"
)

// Interstitial is an HTTP backed eventhandler.InterstitialAd.
type Interstitial struct {
	client   *Client
	adUnitID string

	mu       sync.Mutex
	receiver eventhandler.InterstitialEvents
	keywords string
	extras   map[string]any
	current  arbiter.RequestID
	resp     *AdResponse
	shown    bool
	cancel   context.CancelFunc
}

// NewInterstitial returns an interstitial for adUnitID.
func (c *Client) NewInterstitial(adUnitID string) *Interstitial {
	return &Interstitial{client: c, adUnitID: adUnitID}
}

// InterstitialFactory adapts NewInterstitial for the interstitial event handler.
func (c *Client) InterstitialFactory() eventhandler.InterstitialFactory {
	return func(adUnitID string) eventhandler.InterstitialAd {
		return c.NewInterstitial(adUnitID)
	}
}

func (a *Interstitial) AdUnitID() string { return a.adUnitID }

func (a *Interstitial) Size() (models.AdSize, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resp == nil || a.resp.Width == 0 || a.resp.Height == 0 {
		return models.AdSize{}, false
	}
	return models.AdSize{W: a.resp.Width, H: a.resp.Height}, true
}

func (a *Interstitial) EventReceiver() eventhandler.InterstitialEvents {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.receiver
}

func (a *Interstitial) SetEventReceiver(r eventhandler.InterstitialEvents) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receiver = r
}

func (a *Interstitial) Keywords() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.keywords
}

func (a *Interstitial) SetKeywords(keywords string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keywords = keywords
}

func (a *Interstitial) LocalExtras() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.extras
}

func (a *Interstitial) SetLocalExtras(extras map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.extras = extras
}

// Load fetches the interstitial in the background. The partner bid, if
// present in local extras, is sent along with the keywords.
func (a *Interstitial) Load(ctx context.Context, id arbiter.RequestID) error {
	ctx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.cancel = cancel
	a.current = id
	a.resp = nil
	a.shown = false
	body := &adRequest{
		RequestID: string(id),
		AdUnitID:  a.adUnitID,
		Format:    string(models.IntegrationInterstitial),
		Keywords:  a.keywords,
	}
	if bid, ok := a.extras[eventhandler.BidExtrasKey].(*models.Bid); ok {
		body.Bid = bid
	}
	a.mu.Unlock()

	go a.load(ctx, id, body)
	return nil
}

func (a *Interstitial) load(ctx context.Context, id arbiter.RequestID, body *adRequest) {
	resp, err := a.client.fetch(ctx, string(models.IntegrationInterstitial), body)

	a.mu.Lock()
	if a.current != id {
		a.mu.Unlock()
		return
	}
	r := a.receiver
	if err == nil {
		a.resp = resp
	}
	a.mu.Unlock()

	if r == nil {
		return
	}
	if err != nil {
		a.client.logger.Debug("interstitial request failed", zap.String("request_id", string(id)), zap.Error(err))
		r.OnInterstitialFailed(id, NetworkCode(err))
		return
	}
	r.OnInterstitialLoaded(id)
}

// IsReady reports whether a loaded interstitial is waiting to be shown.
func (a *Interstitial) IsReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resp != nil && !a.shown
}

// Show marks the interstitial as presented.
func (a *Interstitial) Show() error {
	a.mu.Lock()
	if a.resp == nil || a.shown {
		a.mu.Unlock()
		return eventhandler.ErrNotReady
	}
	a.shown = true
	r := a.receiver
	a.mu.Unlock()
	if r != nil {
		r.OnInterstitialShown()
	}
	return nil
}

// Click reports a click on the presented interstitial.
func (a *Interstitial) Click() {
	if r := a.EventReceiver(); r != nil {
		r.OnInterstitialClicked()
	}
}

// Dismiss reports that the user closed the interstitial.
func (a *Interstitial) Dismiss() {
	if r := a.EventReceiver(); r != nil {
		r.OnInterstitialDismissed()
	}
}

// Destroy cancels any load in progress and drops the receiver.
func (a *Interstitial) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.receiver = nil
	a.current = ""
	a.resp = nil
}
