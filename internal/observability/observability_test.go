package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		level    string
		expected zapcore.Level
	}{
		{"explicit debug", "production", "debug", zap.DebugLevel},
		{"explicit warn", "", "WARN", zap.WarnLevel},
		{"development default", "dev", "", zap.DebugLevel},
		{"production default", "production", "", zap.InfoLevel},
		{"unknown level falls back to env", "development", "verbose", zap.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			t.Setenv("LOG_LEVEL", tt.level)
			assert.Equal(t, tt.expected, getLogLevel())
		})
	}
}

func TestInitLoggerWithLevelInstallsGlobal(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	logger, err := InitLoggerWithLevel(zap.WarnLevel, "bridge-test")
	require.NoError(t, err)
	assert.Same(t, logger, zap.L())
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.ErrorLevel))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, "AlwaysOffSampler", samplerFor(0).Description())
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestPrometheusRegistryRecordsDecisions(t *testing.T) {
	r := NewPrometheusRegistry()
	before := testutil.ToFloat64(DecisionCount.WithLabelValues("banner", "partner_won"))
	r.IncrementDecision("banner", "partner_won")
	assert.Equal(t, before+1, testutil.ToFloat64(DecisionCount.WithLabelValues("banner", "partner_won")))

	windows := testutil.ToFloat64(WaitWindowCount.WithLabelValues("banner", WaitWindowExpired))
	r.IncrementWaitWindow("banner", WaitWindowExpired)
	assert.Equal(t, windows+1, testutil.ToFloat64(WaitWindowCount.WithLabelValues("banner", WaitWindowExpired)))
}

func TestPrometheusRegistryRateLimit(t *testing.T) {
	r := NewPrometheusRegistry()
	checks := testutil.ToFloat64(RateLimitRequests.WithLabelValues("home"))
	hits := testutil.ToFloat64(RateLimitHits.WithLabelValues("home"))
	r.IncrementRateLimitRequests("home")
	r.IncrementRateLimitHits("home")
	assert.Equal(t, checks+1, testutil.ToFloat64(RateLimitRequests.WithLabelValues("home")))
	assert.Equal(t, hits+1, testutil.ToFloat64(RateLimitHits.WithLabelValues("home")))
}

func TestMockMetricsRegistryCounts(t *testing.T) {
	m := NewMockMetricsRegistry()
	m.IncrementDecision("banner", "host_won")
	m.IncrementDecision("banner", "host_won")
	m.RecordDecisionLatency("banner", "host_won", time.Second)

	assert.Equal(t, 2, m.Count("IncrementDecision", "banner", "host_won"))
	assert.Equal(t, 1, m.Count("RecordDecisionLatency", "banner", "host_won"))
	assert.Zero(t, m.Count("IncrementDecision", "banner", "partner_won"))

	var zero MockMetricsRegistry
	zero.IncrementAdRequests("banner")
	assert.Equal(t, 1, zero.Count("IncrementAdRequests", "banner"))
}
