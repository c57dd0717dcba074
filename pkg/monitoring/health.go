package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/version"
)

// Component states reported by monitors.
const (
	StatusConnected = "connected"
	StatusDegraded  = "degraded"
	StatusError     = "error"
)

// Overall service states.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// Gauge names that also feed Prometheus metrics.
const (
	GaugeActiveSessions = "active_sessions"
	GaugeRouteCache     = "route_cache_entries"
)

// HealthChecker tracks component status and serves the health endpoints
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time
	transport   *TransportInfo

	mu         sync.RWMutex
	components map[string]*ConnStatus
	gauges     map[string]func() int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHealthChecker creates a new health checker and starts runtime
// metrics collection.
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())

	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		components:  make(map[string]*ConnStatus),
		gauges:      make(map[string]func() int),
		ctx:         ctx,
		cancel:      cancel,
	}

	hc.updateSystemMetrics()
	go hc.collectSystemMetrics()

	return hc
}

// SetTransport records how the MCP server is exposed.
func (h *HealthChecker) SetTransport(info TransportInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = &info
}

// RegisterGauge adds a named count to the health metrics, sampled on every
// health request and metrics tick.
func (h *HealthChecker) RegisterGauge(name string, fn func() int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gauges[name] = fn
}

// UpdateConnection updates the status of a component
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	h.components[name] = &ConnStatus{
		Name:      name,
		Status:    status,
		Latency:   latencyMs,
		LastError: errStr,
		CheckedAt: time.Now(),
	}
}

// GetHealth returns the current health status
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	degradedCount := 0
	errorCount := 0
	for _, c := range h.components {
		switch c.Status {
		case StatusError, "disconnected":
			errorCount++
		case StatusDegraded:
			degradedCount++
		}
	}

	// healthy -> degraded -> unhealthy once most components are failing
	status := HealthHealthy
	if errorCount > 0 {
		if errorCount > len(h.components)/2 {
			status = HealthUnhealthy
		} else {
			status = HealthDegraded
		}
	} else if degradedCount > 0 {
		status = HealthDegraded
	}

	components := make(map[string]ConnStatus, len(h.components))
	for k, v := range h.components {
		components[k] = *v
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics := map[string]interface{}{
		"goroutines":          runtime.NumGoroutine(),
		"memory_alloc_mb":     m.Alloc / 1024 / 1024,
		"memory_sys_mb":       m.Sys / 1024 / 1024,
		"gc_runs":             m.NumGC,
		"cpu_count":           runtime.NumCPU(),
		"version_info":        version.Info(),
		"total_components":    len(h.components),
		"error_components":    errorCount,
		"degraded_components": degradedCount,
	}
	for name, fn := range h.gauges {
		metrics[name] = fn()
	}

	uptime := time.Since(h.startTime)
	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		Uptime:        uptime,
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		Components:    components,
		Metrics:       metrics,
		Transport:     h.transport,
	}
}

// HealthHandler returns an HTTP handler for health checks
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		w.Header().Set("Content-Type", "application/json")

		switch health.Status {
		case HealthHealthy, HealthDegraded:
			// Degraded still serves
			w.WriteHeader(http.StatusOK)
		case HealthUnhealthy:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}

		if err := json.NewEncoder(w).Encode(health); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode health response: %v", err), http.StatusInternalServerError)
		}
	}
}

// ReadinessHandler reports whether the service should receive traffic
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		w.Header().Set("Content-Type", "application/json")

		ready := health.Status != HealthUnhealthy
		if ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		response := map[string]interface{}{
			"ready":  ready,
			"status": health.Status,
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode readiness response: %v", err), http.StatusInternalServerError)
		}
	}
}

// LivenessHandler returns a simple liveness check
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).String(),
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode liveness response: %v", err), http.StatusInternalServerError)
		}
	}
}

func (h *HealthChecker) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

// updateSystemMetrics copies runtime state into the Prometheus gauges
func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))
	GCRuns.Set(float64(m.NumGC))

	info := version.Info()
	SystemInfo.WithLabelValues(
		info["version"],
		info["go_version"],
		info["commit"],
		info["build_date"],
	).Set(1)

	h.mu.RLock()
	sessions, hasSessions := h.gauges[GaugeActiveSessions]
	routes, hasRoutes := h.gauges[GaugeRouteCache]
	h.mu.RUnlock()
	if hasSessions {
		n := sessions()
		UpdateActiveSessions(n)
		UpdateCacheSize("sessions", n)
	}
	if hasRoutes {
		UpdateCacheSize("routes", routes())
	}
}

// Shutdown stops background metrics collection
func (h *HealthChecker) Shutdown() {
	h.cancel()
}

// ComponentMonitor periodically probes one component and reports the
// result to a HealthChecker.
type ComponentMonitor struct {
	name          string
	healthChecker *HealthChecker
	check         func(ctx context.Context) error
	interval      time.Duration
	timeout       time.Duration
	logger        *slog.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewComponentMonitor creates a monitor. Each probe gets a context bounded
// by timeout; a probe slower than half the timeout is reported degraded.
func NewComponentMonitor(name string, hc *HealthChecker, check func(ctx context.Context) error, interval, timeout time.Duration) *ComponentMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	if timeout <= 0 {
		timeout = interval
	}

	return &ComponentMonitor{
		name:          name,
		healthChecker: hc,
		check:         check,
		interval:      interval,
		timeout:       timeout,
		logger:        slog.Default().With("component", name),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Start begins monitoring the component
func (cm *ComponentMonitor) Start() {
	go cm.monitor()
}

// Stop stops monitoring and waits for the loop to exit
func (cm *ComponentMonitor) Stop() {
	cm.cancel()
	<-cm.done
}

func (cm *ComponentMonitor) monitor() {
	defer close(cm.done)

	cm.performCheck()

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

func (cm *ComponentMonitor) performCheck() {
	ctx, cancel := context.WithTimeout(cm.ctx, cm.timeout)
	defer cancel()

	start := time.Now()
	err := cm.check(ctx)
	elapsed := time.Since(start)

	status := StatusConnected
	switch {
	case err != nil:
		status = StatusError
		RecordError(cm.name, "probe_failed")
		cm.logger.Warn("component probe failed", "error", err, "latency", elapsed)
	case elapsed > cm.timeout/2:
		status = StatusDegraded
	}

	cm.healthChecker.UpdateConnection(cm.name, status, elapsed.Milliseconds(), err)
}
