package api

import (
	"sync"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/eventhandler"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
)

type decision struct {
	kind    outcome.Kind
	message string
	size    string
}

// waiter is the pending HTTP request. Until bind learns its request id,
// outcomes are held by id so that a late outcome for an earlier request
// cannot answer this one.
type waiter struct {
	ch    chan decision
	id    arbiter.RequestID
	bound bool
	early map[arbiter.RequestID]decision
}

// slotListener hands the first outcome for the bound request to the waiting
// HTTP request. Anything else, including a mismatch after the decision or a
// late outcome for an abandoned request, is only logged.
type slotListener struct {
	logger *zap.Logger

	mu sync.Mutex
	w  *waiter
}

var _ eventhandler.RequestListener = (*slotListener)(nil)

func (l *slotListener) expect() <-chan decision {
	w := &waiter{ch: make(chan decision, 1)}
	l.mu.Lock()
	l.w = w
	l.mu.Unlock()
	return w.ch
}

// bind ties the waiter for ch to request id, answering it at once if the
// outcome already arrived.
func (l *slotListener) bind(ch <-chan decision, id arbiter.RequestID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.w
	if w == nil || (<-chan decision)(w.ch) != ch {
		return
	}
	w.id = id
	w.bound = true
	early := w.early
	w.early = nil
	if d, ok := early[id]; ok {
		delete(early, id)
		l.w = nil
		w.ch <- d
	}
	for other, d := range early {
		l.logger.Info("outcome for an earlier request", zap.String("request_id", string(other)), zap.Stringer("outcome", d.kind))
	}
}

// abandon drops the pending waiter, if it is still ch.
func (l *slotListener) abandon(ch <-chan decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w != nil && (<-chan decision)(l.w.ch) == ch {
		l.w = nil
	}
}

func (l *slotListener) send(id arbiter.RequestID, d decision) {
	l.mu.Lock()
	w := l.w
	switch {
	case w == nil:
	case !w.bound:
		if w.early == nil {
			w.early = make(map[arbiter.RequestID]decision)
		}
		if _, seen := w.early[id]; !seen {
			w.early[id] = d
		}
		l.mu.Unlock()
		return
	case w.id != id:
		w = nil
	default:
		l.w = nil
	}
	l.mu.Unlock()
	if w == nil {
		l.logger.Info("outcome with no waiting request",
			zap.String("request_id", string(id)), zap.Stringer("outcome", d.kind), zap.String("message", d.message))
		return
	}
	w.ch <- d
}

// ForRequest scopes the listener to one ad request.
func (l *slotListener) ForRequest(id arbiter.RequestID) eventhandler.Listener {
	return requestListener{l: l, id: id}
}

// The unscoped methods only see outcomes for an unknown request, which never
// match a bound waiter.
func (l *slotListener) OnPartnerWon()                    { requestListener{l: l}.OnPartnerWon() }
func (l *slotListener) OnHostWon(ad eventhandler.HostAd) { requestListener{l: l}.OnHostWon(ad) }
func (l *slotListener) OnFailed(err *outcome.Error)      { requestListener{l: l}.OnFailed(err) }
func (l *slotListener) OnOpened()                        { l.logger.Debug("ad opened") }
func (l *slotListener) OnClosed()                        { l.logger.Debug("ad closed") }
func (l *slotListener) OnLeftApplication()               { l.logger.Debug("ad left application") }

type requestListener struct {
	l  *slotListener
	id arbiter.RequestID
}

func (r requestListener) OnPartnerWon() { r.l.send(r.id, decision{kind: outcome.PartnerWon}) }

func (r requestListener) OnHostWon(ad eventhandler.HostAd) {
	d := decision{kind: outcome.HostWon}
	if ad != nil {
		if size, ok := ad.Size(); ok {
			d.size = size.String()
		}
	}
	r.l.send(r.id, d)
}

func (r requestListener) OnFailed(err *outcome.Error) {
	if err == nil {
		err = outcome.New(outcome.InternalError, "")
	}
	r.l.send(r.id, decision{kind: err.Kind, message: err.Message})
}

func (r requestListener) OnOpened()          { r.l.OnOpened() }
func (r requestListener) OnClosed()          { r.l.OnClosed() }
func (r requestListener) OnLeftApplication() { r.l.OnLeftApplication() }
