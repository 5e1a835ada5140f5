package hostclient

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/eventhandler"
	"github.com/patrickwarner/openbidbridge/internal/models"
)

// MediationBanner is an HTTP backed eventhandler.MediationBannerView.
type MediationBanner struct {
	client   *Client
	adUnitID string
	size     []models.AdSize

	mu       sync.Mutex
	receiver eventhandler.MediationBannerEvents
	keywords string
	extras   map[string]any
	current  arbiter.RequestID
	resp     *AdResponse
	cancel   context.CancelFunc
}

// NewMediationBanner returns a mediation banner for adUnitID requested at
// the first of sizes, if any.
func (c *Client) NewMediationBanner(adUnitID string, sizes []models.AdSize) *MediationBanner {
	b := &MediationBanner{client: c, adUnitID: adUnitID}
	if len(sizes) > 0 {
		b.size = sizes[:1]
	}
	return b
}

func (b *MediationBanner) AdUnitID() string { return b.adUnitID }

func (b *MediationBanner) Size() (models.AdSize, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resp == nil || b.resp.Width == 0 || b.resp.Height == 0 {
		return models.AdSize{}, false
	}
	return models.AdSize{W: b.resp.Width, H: b.resp.Height}, true
}

func (b *MediationBanner) EventReceiver() eventhandler.MediationBannerEvents {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receiver
}

func (b *MediationBanner) SetEventReceiver(r eventhandler.MediationBannerEvents) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiver = r
}

func (b *MediationBanner) Keywords() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.keywords
}

func (b *MediationBanner) SetKeywords(keywords string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keywords = keywords
}

func (b *MediationBanner) LocalExtras() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.extras
}

func (b *MediationBanner) SetLocalExtras(extras map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.extras = extras
}

// Load cancels any load in progress and fetches a banner in the background.
func (b *MediationBanner) Load(ctx context.Context, id arbiter.RequestID) error {
	ctx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.cancel = cancel
	b.current = id
	b.resp = nil
	body := &adRequest{
		RequestID: string(id),
		AdUnitID:  b.adUnitID,
		Format:    string(models.IntegrationMediationBanner),
		Sizes:     formatSizes(b.size),
		Keywords:  b.keywords,
	}
	if bid, ok := b.extras[eventhandler.BidExtrasKey].(*models.Bid); ok {
		body.Bid = bid
	}
	b.mu.Unlock()

	go b.load(ctx, id, body)
	return nil
}

func (b *MediationBanner) load(ctx context.Context, id arbiter.RequestID, body *adRequest) {
	resp, err := b.client.fetch(ctx, string(models.IntegrationMediationBanner), body)

	b.mu.Lock()
	if b.current != id {
		b.mu.Unlock()
		return
	}
	r := b.receiver
	if err == nil {
		b.resp = resp
	}
	b.mu.Unlock()

	if r == nil {
		return
	}
	if err != nil {
		b.client.logger.Debug("mediation banner request failed", zap.String("request_id", string(id)), zap.Error(err))
		r.OnBannerFailed(id, NetworkCode(err))
		return
	}
	r.OnBannerLoaded(id)
}

// Click reports a click on the banner.
func (b *MediationBanner) Click() {
	if r := b.EventReceiver(); r != nil {
		r.OnBannerClicked()
	}
}

// Expand reports that the banner expanded to full screen.
func (b *MediationBanner) Expand() {
	if r := b.EventReceiver(); r != nil {
		r.OnBannerExpanded()
	}
}

// Collapse reports that an expanded banner returned to its slot.
func (b *MediationBanner) Collapse() {
	if r := b.EventReceiver(); r != nil {
		r.OnBannerCollapsed()
	}
}

// Destroy cancels any load in progress and drops the receiver.
func (b *MediationBanner) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.receiver = nil
	b.current = ""
	b.resp = nil
}
