package eventhandler

import (
	"context"
	"sync"

	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
)

type recordingListener struct {
	mu      sync.Mutex
	events  []string
	errs    []*outcome.Error
	hostAds []HostAd
}

func (l *recordingListener) add(ev string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *recordingListener) OnPartnerWon() { l.add("partner_won") }

func (l *recordingListener) OnHostWon(ad HostAd) {
	l.mu.Lock()
	l.hostAds = append(l.hostAds, ad)
	l.mu.Unlock()
	l.add("host_won")
}

func (l *recordingListener) OnOpened()          { l.add("opened") }
func (l *recordingListener) OnClosed()          { l.add("closed") }
func (l *recordingListener) OnLeftApplication() { l.add("left_application") }

func (l *recordingListener) OnFailed(err *outcome.Error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
	l.add("failed:" + err.Kind.String())
}

func (l *recordingListener) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

func (l *recordingListener) lastErr() *outcome.Error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) == 0 {
		return nil
	}
	return l.errs[len(l.errs)-1]
}

// scopedListener records which request each outcome was scoped to.
type scopedListener struct {
	recordingListener
	idMu sync.Mutex
	ids  []arbiter.RequestID
}

func (l *scopedListener) ForRequest(id arbiter.RequestID) Listener {
	l.idMu.Lock()
	l.ids = append(l.ids, id)
	l.idMu.Unlock()
	return &l.recordingListener
}

func (l *scopedListener) requestIDs() []arbiter.RequestID {
	l.idMu.Lock()
	defer l.idMu.Unlock()
	return append([]arbiter.RequestID(nil), l.ids...)
}

type fakeBannerView struct {
	mu        sync.Mutex
	adUnit    string
	receiver  HostEvents
	requests  []*AdRequest
	loadErr   error
	destroyed bool
}

func (v *fakeBannerView) AdUnitID() string { return v.adUnit }

func (v *fakeBannerView) Size() (models.AdSize, bool) { return models.AdSize{W: 320, H: 50}, true }

func (v *fakeBannerView) EventReceiver() HostEvents {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.receiver
}

func (v *fakeBannerView) SetEventReceiver(r HostEvents) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.receiver = r
}

func (v *fakeBannerView) LoadAd(_ context.Context, req *AdRequest) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requests = append(v.requests, req)
	return v.loadErr
}

func (v *fakeBannerView) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.destroyed = true
}

func (v *fakeBannerView) lastRequest() *AdRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.requests) == 0 {
		return nil
	}
	return v.requests[len(v.requests)-1]
}

type fakeInterstitial struct {
	mu        sync.Mutex
	adUnit    string
	receiver  InterstitialEvents
	keywords  string
	extras    map[string]any
	loadedID  arbiter.RequestID
	ready     bool
	shown     bool
	destroyed bool
}

func (a *fakeInterstitial) AdUnitID() string { return a.adUnit }

func (a *fakeInterstitial) Size() (models.AdSize, bool) { return models.AdSize{W: 320, H: 480}, a.ready }

func (a *fakeInterstitial) EventReceiver() InterstitialEvents {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.receiver
}

func (a *fakeInterstitial) SetEventReceiver(r InterstitialEvents) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receiver = r
}

func (a *fakeInterstitial) Keywords() string            { return a.keywords }
func (a *fakeInterstitial) SetKeywords(k string)        { a.keywords = k }
func (a *fakeInterstitial) LocalExtras() map[string]any { return a.extras }
func (a *fakeInterstitial) SetLocalExtras(e map[string]any) {
	a.extras = e
}

func (a *fakeInterstitial) Load(_ context.Context, id arbiter.RequestID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadedID = id
	return nil
}

// complete simulates the network finishing the load.
func (a *fakeInterstitial) complete() {
	a.mu.Lock()
	a.ready = true
	r, id := a.receiver, a.loadedID
	a.mu.Unlock()
	if r != nil {
		r.OnInterstitialLoaded(id)
	}
}

func (a *fakeInterstitial) IsReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *fakeInterstitial) Show() error {
	a.mu.Lock()
	a.shown = true
	r := a.receiver
	a.mu.Unlock()
	if r != nil {
		r.OnInterstitialShown()
	}
	return nil
}

func (a *fakeInterstitial) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyed = true
	a.ready = false
}

type interstitialFactory struct {
	mu      sync.Mutex
	created []*fakeInterstitial
}

func (f *interstitialFactory) New(adUnitID string) InterstitialAd {
	f.mu.Lock()
	defer f.mu.Unlock()
	ad := &fakeInterstitial{adUnit: adUnitID}
	f.created = append(f.created, ad)
	return ad
}

func (f *interstitialFactory) last() *fakeInterstitial {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[len(f.created)-1]
}

type chanRecorder struct {
	ch  chan models.DecisionRecord
	err error
}

func (r *chanRecorder) RecordDecision(_ context.Context, rec models.DecisionRecord) error {
	r.ch <- rec
	return r.err
}

type fakeMediationBanner struct {
	mu        sync.Mutex
	adUnit    string
	receiver  MediationBannerEvents
	keywords  string
	extras    map[string]any
	loads     []arbiter.RequestID
	sent      []string
	loadErr   error
	destroyed bool
}

func (v *fakeMediationBanner) AdUnitID() string { return v.adUnit }

func (v *fakeMediationBanner) Size() (models.AdSize, bool) { return models.AdSize{W: 320, H: 50}, true }

func (v *fakeMediationBanner) EventReceiver() MediationBannerEvents {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.receiver
}

func (v *fakeMediationBanner) SetEventReceiver(r MediationBannerEvents) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.receiver = r
}

func (v *fakeMediationBanner) Keywords() string            { return v.keywords }
func (v *fakeMediationBanner) SetKeywords(k string)        { v.keywords = k }
func (v *fakeMediationBanner) LocalExtras() map[string]any { return v.extras }
func (v *fakeMediationBanner) SetLocalExtras(e map[string]any) {
	v.extras = e
}

func (v *fakeMediationBanner) Load(_ context.Context, id arbiter.RequestID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loads = append(v.loads, id)
	v.sent = append(v.sent, v.keywords)
	return v.loadErr
}

func (v *fakeMediationBanner) lastLoad() arbiter.RequestID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loads[len(v.loads)-1]
}

func (v *fakeMediationBanner) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.destroyed = true
}
