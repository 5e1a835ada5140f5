package arbiter

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openbidbridge/internal/observability"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
)

type recordingSink struct {
	mu      sync.Mutex
	notices []Notice
}

func (s *recordingSink) Deliver(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func (s *recordingSink) all() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notice, len(s.notices))
	copy(out, s.notices)
	return out
}

func (s *recordingSink) kinds() []outcome.Kind {
	var kinds []outcome.Kind
	for _, n := range s.all() {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func (s *recordingSink) count() int { return len(s.all()) }

func newTestArbiter() (*Arbiter, *recordingSink, *clock.Mock, *observability.MockMetricsRegistry) {
	sink := &recordingSink{}
	mock := clock.NewMock()
	metrics := observability.NewMockMetricsRegistry()
	a := New(sink, Config{Clock: mock, Metrics: metrics})
	return a, sink, mock, metrics
}

// quiet asserts nothing new reaches the sink for a short real-time period,
// giving mock timer goroutines a chance to run.
func quiet(t *testing.T, sink *recordingSink, want int) {
	t.Helper()
	assert.Never(t, func() bool { return sink.count() != want }, 30*time.Millisecond, 5*time.Millisecond)
}

func TestIneligibleHostReadyWinsImmediately(t *testing.T) {
	a, sink, mock, metrics := newTestArbiter()

	id := a.Arm(false)
	mock.Add(50 * time.Millisecond)
	a.HostReady(id)

	require.Equal(t, []outcome.Kind{outcome.HostWon}, sink.kinds())
	assert.Equal(t, 50*time.Millisecond, sink.all()[0].Latency)
	assert.Equal(t, Resolved, a.State())
	assert.Zero(t, metrics.Count("IncrementWaitWindow", "banner", observability.WaitWindowStarted))
}

func TestPartnerWinBeforeHostReady(t *testing.T) {
	a, sink, mock, metrics := newTestArbiter()

	id := a.Arm(true)
	a.PartnerWin(id)
	a.HostReady(id)
	mock.Add(time.Second)

	quiet(t, sink, 1)
	assert.Equal(t, []outcome.Kind{outcome.PartnerWon}, sink.kinds())
	_, decision := a.Current()
	assert.Equal(t, PartnerWon, decision)
	assert.Zero(t, metrics.Count("IncrementWaitWindow", "banner", observability.WaitWindowStarted))
}

func TestHostReadyAloneResolvesAfterWindow(t *testing.T) {
	a, sink, mock, metrics := newTestArbiter()

	id := a.Arm(true)
	mock.Add(10 * time.Millisecond)
	a.HostReady(id)
	assert.Equal(t, Waiting, a.State())

	mock.Add(399 * time.Millisecond)
	quiet(t, sink, 0)

	mock.Add(time.Millisecond)
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)
	n := sink.all()[0]
	assert.Equal(t, outcome.HostWon, n.Kind)
	assert.Equal(t, id, n.Request)
	assert.Equal(t, 410*time.Millisecond, n.Latency)
	assert.Equal(t, 1, metrics.Count("IncrementWaitWindow", "banner", observability.WaitWindowExpired))
}

func TestPartnerWinDuringWindowCancelsIt(t *testing.T) {
	a, sink, mock, metrics := newTestArbiter()

	id := a.Arm(true)
	mock.Add(10 * time.Millisecond)
	a.HostReady(id)
	mock.Add(190 * time.Millisecond)
	a.PartnerWin(id)

	require.Equal(t, []outcome.Kind{outcome.PartnerWon}, sink.kinds())
	assert.Equal(t, 200*time.Millisecond, sink.all()[0].Latency)
	assert.Equal(t, 1, metrics.Count("IncrementWaitWindow", "banner", observability.WaitWindowCancelled))

	mock.Add(time.Second)
	quiet(t, sink, 1)
	assert.Zero(t, metrics.Count("IncrementWaitWindow", "banner", observability.WaitWindowExpired))
}

func TestLatePartnerWinReportsOneMismatch(t *testing.T) {
	a, sink, mock, _ := newTestArbiter()

	id := a.Arm(true)
	a.HostReady(id)
	mock.Add(DefaultWaitWindow)
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)

	a.PartnerWin(id)
	a.PartnerWin(id)

	notices := sink.all()
	require.Len(t, notices, 2)
	assert.Equal(t, outcome.HostWon, notices[0].Kind)
	assert.Equal(t, outcome.SignalingMismatch, notices[1].Kind)
	require.NotNil(t, notices[1].Err)
	assert.Equal(t, outcome.SignalingMismatch, notices[1].Err.Kind)
	_, decision := a.Current()
	assert.Equal(t, HostWon, decision)
}

func TestRepeatedHostReadyRestartsWindow(t *testing.T) {
	a, sink, mock, metrics := newTestArbiter()

	id := a.Arm(true)
	a.HostReady(id)
	mock.Add(300 * time.Millisecond)
	a.HostReady(id)
	mock.Add(300 * time.Millisecond)
	quiet(t, sink, 0)

	mock.Add(100 * time.Millisecond)
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 700*time.Millisecond, sink.all()[0].Latency)
	assert.Equal(t, 2, metrics.Count("IncrementWaitWindow", "banner", observability.WaitWindowStarted))
}

func TestHostReadyAfterDecisionIsNoop(t *testing.T) {
	a, sink, _, _ := newTestArbiter()

	id := a.Arm(false)
	a.HostReady(id)
	a.HostReady(id)

	assert.Equal(t, []outcome.Kind{outcome.HostWon}, sink.kinds())
}

func TestRestartDropsPreviousRequest(t *testing.T) {
	a, sink, mock, metrics := newTestArbiter()

	first := a.Arm(true)
	a.HostReady(first)
	second := a.Arm(true)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, metrics.Count("IncrementWaitWindow", "banner", observability.WaitWindowCancelled))

	mock.Add(time.Second)
	a.PartnerWin(first)
	assert.False(t, a.Fail(first, outcome.New(outcome.NoFill, "late")))
	quiet(t, sink, 0)

	a.PartnerWin(second)
	require.Len(t, sink.all(), 1)
	assert.Equal(t, second, sink.all()[0].Request)
}

func TestStopSilencesEverything(t *testing.T) {
	a, sink, mock, _ := newTestArbiter()

	id := a.Arm(true)
	a.HostReady(id)
	a.Stop()
	assert.Equal(t, Idle, a.State())

	mock.Add(time.Second)
	a.PartnerWin(id)
	quiet(t, sink, 0)
}

func TestFailureCommitsRequest(t *testing.T) {
	a, sink, mock, _ := newTestArbiter()

	id := a.Arm(true)
	a.HostReady(id)
	assert.True(t, a.Fail(id, outcome.NormalizeHost(outcome.HostNoFill)))

	mock.Add(time.Second)
	a.PartnerWin(id)
	a.HostReady(id)
	quiet(t, sink, 1)

	n := sink.all()[0]
	assert.Equal(t, outcome.NoFill, n.Kind)
	assert.Equal(t, "host ad server gives no fill error", n.Err.Message)
	_, decision := a.Current()
	assert.Equal(t, Failed, decision)
}

func TestFailureAfterWinIsIgnored(t *testing.T) {
	a, sink, _, _ := newTestArbiter()

	id := a.Arm(true)
	a.PartnerWin(id)
	assert.False(t, a.Fail(id, outcome.New(outcome.NetworkError, "late")))
	assert.Equal(t, []outcome.Kind{outcome.PartnerWon}, sink.kinds())
}

func TestFailWithNilErrorIsInternal(t *testing.T) {
	a, sink, _, _ := newTestArbiter()

	id := a.Arm(false)
	assert.True(t, a.Fail(id, nil))
	assert.Equal(t, []outcome.Kind{outcome.InternalError}, sink.kinds())
}

func TestSinkMayStartNextRequest(t *testing.T) {
	var a *Arbiter
	var next RequestID
	var got []outcome.Kind
	a = New(SinkFunc(func(n Notice) {
		got = append(got, n.Kind)
		if n.Kind == outcome.HostWon {
			next = a.Arm(true)
			a.PartnerWin(next)
		}
	}), Config{Clock: clock.NewMock()})

	a.HostReady(a.Arm(false))

	assert.Equal(t, []outcome.Kind{outcome.HostWon, outcome.PartnerWon}, got)
	id, decision := a.Current()
	assert.Equal(t, next, id)
	assert.Equal(t, PartnerWon, decision)
}

func TestConcurrentSignalsYieldOneDecision(t *testing.T) {
	for i := 0; i < 50; i++ {
		sink := &recordingSink{}
		a := New(sink, Config{WaitWindow: 2 * time.Millisecond})
		id := a.Arm(true)

		var wg sync.WaitGroup
		for _, fn := range []func(){
			func() { a.HostReady(id) },
			func() { a.PartnerWin(id) },
			func() { a.HostReady(id) },
			func() { a.PartnerWin(id) },
		} {
			wg.Add(1)
			go func(f func()) {
				defer wg.Done()
				f()
			}(fn)
		}
		wg.Wait()
		time.Sleep(10 * time.Millisecond)

		decisions := 0
		for j, n := range sink.all() {
			if n.Kind == outcome.SignalingMismatch {
				require.Greater(t, j, 0)
				assert.Equal(t, outcome.HostWon, sink.all()[0].Kind)
				continue
			}
			decisions++
		}
		assert.Equal(t, 1, decisions, "iteration %d", i)
	}
}

func TestConfigDefaults(t *testing.T) {
	a := New(SinkFunc(func(Notice) {}), Config{})
	assert.Equal(t, DefaultWaitWindow, a.WaitWindow())
	assert.Equal(t, Idle, a.State())
	assert.Equal(t, "idle", a.State().String())
	assert.Equal(t, "undecided", Undecided.String())
}
