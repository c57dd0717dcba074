package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/NERVsystems/ecoroute/pkg/estimator"
)

func TestMetricsInitialization(t *testing.T) {
	// Test that all metrics are properly registered
	metrics := []prometheus.Collector{
		MCPRequestsTotal,
		MCPRequestDuration,
		EstimatesTotal,
		EstimateDuration,
		SimulatedDelay,
		ActiveSessions,
		SessionActionsTotal,
		RateLimitExceeded,
		CacheHits,
		CacheMisses,
		CacheSize,
		ActiveConnections,
		ErrorsTotal,
		SystemInfo,
		GoRoutines,
		MemoryUsage,
		GCRuns,
	}

	for _, metric := range metrics {
		if metric == nil {
			t.Error("Metric is nil")
		}
	}
}

func TestRecordMCPRequest(t *testing.T) {
	// Clear any existing metrics
	MCPRequestsTotal.Reset()

	// Test successful request
	RecordMCPRequest("test_tool", 100*time.Millisecond, true)

	// Check counter
	if got := testutil.ToFloat64(MCPRequestsTotal.WithLabelValues("test_tool", "success")); got != 1 {
		t.Errorf("Expected 1 successful request, got %v", got)
	}

	// Test failed request
	RecordMCPRequest("test_tool", 200*time.Millisecond, false)

	// Check counter
	if got := testutil.ToFloat64(MCPRequestsTotal.WithLabelValues("test_tool", "error")); got != 1 {
		t.Errorf("Expected 1 failed request, got %v", got)
	}
}

func TestRecordEstimate(t *testing.T) {
	EstimatesTotal.Reset()

	RecordEstimate(estimator.OutcomeSuccess, 1200*time.Millisecond)
	RecordEstimate(estimator.OutcomeTransientFailure, 800*time.Millisecond)
	RecordEstimate(estimator.OutcomeSuccess, 1500*time.Millisecond)

	if got := testutil.ToFloat64(EstimatesTotal.WithLabelValues(estimator.OutcomeSuccess)); got != 2 {
		t.Errorf("Expected 2 successful estimates, got %v", got)
	}
	if got := testutil.ToFloat64(EstimatesTotal.WithLabelValues(estimator.OutcomeTransientFailure)); got != 1 {
		t.Errorf("Expected 1 transient failure, got %v", got)
	}
}

func TestEstimatorHooks(t *testing.T) {
	EstimatesTotal.Reset()
	CacheHits.Reset()
	CacheMisses.Reset()
	ErrorsTotal.Reset()

	hooks := EstimatorHooks("routes")
	hooks.OnEstimate(estimator.OutcomeProviderError, time.Millisecond)
	hooks.OnDelay(time.Second)
	hooks.OnCache(true)
	hooks.OnCache(false)
	hooks.OnCache(false)

	if got := testutil.ToFloat64(EstimatesTotal.WithLabelValues(estimator.OutcomeProviderError)); got != 1 {
		t.Errorf("Expected 1 provider error estimate, got %v", got)
	}
	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("estimator", estimator.OutcomeProviderError)); got != 1 {
		t.Errorf("Expected provider error to be counted, got %v", got)
	}
	if got := testutil.ToFloat64(CacheHits.WithLabelValues("routes")); got != 1 {
		t.Errorf("Expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("routes")); got != 2 {
		t.Errorf("Expected 2 cache misses, got %v", got)
	}
}

func TestSessionMetrics(t *testing.T) {
	SessionActionsTotal.Reset()

	RecordSessionAction("SET_LOADING")
	RecordSessionAction("SET_LOADING")
	UpdateActiveSessions(3)

	if got := testutil.ToFloat64(SessionActionsTotal.WithLabelValues("SET_LOADING")); got != 2 {
		t.Errorf("Expected 2 SET_LOADING actions, got %v", got)
	}
	if got := testutil.ToFloat64(ActiveSessions); got != 3 {
		t.Errorf("Expected 3 active sessions, got %v", got)
	}
}

func TestCacheMetrics(t *testing.T) {
	// Clear any existing metrics
	CacheHits.Reset()
	CacheMisses.Reset()
	CacheSize.Reset()

	// Test cache hit
	RecordCacheHit("test_cache")
	if got := testutil.ToFloat64(CacheHits.WithLabelValues("test_cache")); got != 1 {
		t.Errorf("Expected 1 cache hit, got %v", got)
	}

	// Test cache miss
	RecordCacheMiss("test_cache")
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("test_cache")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}

	// Test cache size update
	UpdateCacheSize("test_cache", 42)
	if got := testutil.ToFloat64(CacheSize.WithLabelValues("test_cache")); got != 42 {
		t.Errorf("Expected cache size 42, got %v", got)
	}
}

func TestRateLimitMetrics(t *testing.T) {
	// Clear any existing metrics
	RateLimitExceeded.Reset()

	RecordRateLimitExceeded("http")
	if got := testutil.ToFloat64(RateLimitExceeded.WithLabelValues("http")); got != 1 {
		t.Errorf("Expected 1 rate limit exceeded, got %v", got)
	}
}

func TestErrorMetrics(t *testing.T) {
	// Clear any existing metrics
	ErrorsTotal.Reset()

	// Test error recording
	RecordError("test_component", "test_error")
	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("test_component", "test_error")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
}

func TestUpdateActiveConnections(t *testing.T) {
	// Clear any existing metrics
	ActiveConnections.Reset()

	// Test connection update
	UpdateActiveConnections("http", "client", 5)
	if got := testutil.ToFloat64(ActiveConnections.WithLabelValues("http", "client")); got != 5 {
		t.Errorf("Expected 5 active connections, got %v", got)
	}
}

func BenchmarkRecordMCPRequest(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RecordMCPRequest("benchmark_tool", 100*time.Millisecond, true)
	}
}

func BenchmarkRecordEstimate(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RecordEstimate("success", 100*time.Millisecond)
	}
}

func BenchmarkRecordCacheHit(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RecordCacheHit("benchmark_cache")
	}
}
