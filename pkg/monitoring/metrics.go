package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/NERVsystems/ecoroute/pkg/estimator"
)

const (
	// Service name for metrics
	ServiceName = "ecoroute"
)

var (
	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_mcp_requests_total",
			Help: "Total number of MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// Estimator metrics
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_estimates_total",
			Help: "Total number of route estimates by outcome",
		},
		[]string{"outcome"},
	)

	EstimateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecoroute_estimate_duration_seconds",
			Help:    "Route estimate duration in seconds, including simulated latency",
			Buckets: []float64{0.01, 0.1, 0.5, 1.0, 1.25, 1.5, 1.75, 2.0, 2.5, 5.0},
		},
		[]string{"outcome"},
	)

	SimulatedDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecoroute_simulated_delay_seconds",
			Help:    "Sampled upstream latency before each estimate",
			Buckets: []float64{0.25, 0.5, 1.0, 1.25, 1.5, 1.75, 2.0, 3.0},
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecoroute_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Session metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_active_sessions",
			Help: "Number of planning sessions held in memory",
		},
	)

	SessionActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_session_actions_total",
			Help: "Total number of session state transitions",
		},
		[]string{"action"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_rate_limit_exceeded_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecoroute_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport", "type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoroute_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecoroute_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecoroute_gc_runs_total",
			Help: "Total number of garbage collection runs",
		},
	)
)

// TransportInfo holds transport configuration and status
type TransportInfo struct {
	Type     string `json:"type"`                // "http_sse" or "stdio"
	HTTPAddr string `json:"http_addr,omitempty"` // HTTP address if enabled
}

// ServiceHealth is the body of the /health endpoint
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration          `json:"uptime"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     time.Time              `json:"start_time,omitempty"`
	Components    map[string]ConnStatus  `json:"components"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Transport     *TransportInfo         `json:"transport,omitempty"`
}

// ConnStatus is the last observed state of one monitored component
type ConnStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "connected", "degraded", "error"
	Latency   int64     `json:"latency_ms,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Helper functions for common metric updates
func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	MCPRequestsTotal.WithLabelValues(tool, status).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordEstimate(outcome string, duration time.Duration) {
	EstimatesTotal.WithLabelValues(outcome).Inc()
	EstimateDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordSimulatedDelay(d time.Duration) {
	SimulatedDelay.Observe(d.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func UpdateActiveSessions(count int) {
	ActiveSessions.Set(float64(count))
}

func RecordSessionAction(action string) {
	SessionActionsTotal.WithLabelValues(action).Inc()
}

func RecordRateLimitExceeded(scope string) {
	RateLimitExceeded.WithLabelValues(scope).Inc()
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport, connType string, count int) {
	ActiveConnections.WithLabelValues(transport, connType).Set(float64(count))
}

// EstimatorHooks feeds estimator events into the metrics above. cacheType
// labels the route cache lookups.
func EstimatorHooks(cacheType string) *estimator.Hooks {
	return &estimator.Hooks{
		OnEstimate: func(outcome string, elapsed time.Duration) {
			RecordEstimate(outcome, elapsed)
			if outcome == estimator.OutcomeProviderError {
				RecordError("estimator", outcome)
			}
		},
		OnDelay: RecordSimulatedDelay,
		OnCache: func(hit bool) {
			if hit {
				RecordCacheHit(cacheType)
			} else {
				RecordCacheMiss(cacheType)
			}
		},
	}
}
