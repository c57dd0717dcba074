package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newChecker(t testing.TB) *HealthChecker {
	t.Helper()
	hc := NewHealthChecker("ecoroute", "1.0.0")
	t.Cleanup(hc.Shutdown)
	return hc
}

func component(hc *HealthChecker, name string) (ConnStatus, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	c, ok := hc.components[name]
	if !ok {
		return ConnStatus{}, false
	}
	return *c, true
}

func TestUpdateConnection(t *testing.T) {
	hc := newChecker(t)

	hc.UpdateConnection("estimator", StatusConnected, 12, nil)
	c, ok := component(hc, "estimator")
	if !ok {
		t.Fatal("estimator component missing")
	}
	if c.Status != StatusConnected || c.Latency != 12 || c.LastError != "" {
		t.Errorf("unexpected component %+v", c)
	}

	hc.UpdateConnection("estimator", StatusError, 40, errors.New("route provider probe: no candidates"))
	c, _ = component(hc, "estimator")
	if c.Status != StatusError || c.LastError != "route provider probe: no candidates" {
		t.Errorf("error not recorded: %+v", c)
	}
}

func TestGetHealthStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"no components", nil, HealthHealthy},
		{"all connected", []string{StatusConnected, StatusConnected}, HealthHealthy},
		{"one degraded", []string{StatusConnected, StatusDegraded}, HealthDegraded},
		{"minority failing", []string{StatusConnected, StatusConnected, StatusError}, HealthDegraded},
		{"half failing", []string{StatusConnected, StatusError}, HealthDegraded},
		{"majority failing", []string{StatusConnected, StatusError, "disconnected"}, HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := newChecker(t)
			for i, status := range tt.statuses {
				var err error
				if status != StatusConnected && status != StatusDegraded {
					err = errors.New(status)
				}
				hc.UpdateConnection(fmt.Sprintf("component-%d", i), status, 10, err)
			}

			if got := hc.GetHealth().Status; got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGetHealthFields(t *testing.T) {
	hc := newChecker(t)
	hc.UpdateConnection("estimator", StatusConnected, 5, nil)

	health := hc.GetHealth()
	if health.Service != "ecoroute" || health.Version != "1.0.0" {
		t.Errorf("service/version = %s/%s", health.Service, health.Version)
	}
	if health.StartTime.IsZero() || health.Uptime < 0 {
		t.Errorf("bad uptime fields: start %v uptime %v", health.StartTime, health.Uptime)
	}
	if _, ok := health.Components["estimator"]; !ok {
		t.Error("estimator missing from components")
	}
	for _, key := range []string{"goroutines", "memory_alloc_mb", "cpu_count", "version_info", "total_components"} {
		if _, ok := health.Metrics[key]; !ok {
			t.Errorf("metrics missing %s", key)
		}
	}
}

func TestHealthHandlers(t *testing.T) {
	tests := []struct {
		name       string
		failing    bool
		handler    func(*HealthChecker) http.HandlerFunc
		path       string
		wantStatus int
		wantKey    string
		wantValue  any
	}{
		{"health ok", false, (*HealthChecker).HealthHandler, "/health", http.StatusOK, "status", HealthHealthy},
		{"health failing", true, (*HealthChecker).HealthHandler, "/health", http.StatusServiceUnavailable, "status", HealthUnhealthy},
		{"ready ok", false, (*HealthChecker).ReadinessHandler, "/ready", http.StatusOK, "ready", true},
		{"ready failing", true, (*HealthChecker).ReadinessHandler, "/ready", http.StatusServiceUnavailable, "ready", false},
		{"live while failing", true, (*HealthChecker).LivenessHandler, "/live", http.StatusOK, "alive", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := newChecker(t)
			if tt.failing {
				hc.UpdateConnection("estimator", StatusError, 0, errors.New("probe failed"))
			}

			rec := httptest.NewRecorder()
			tt.handler(hc)(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %s", ct)
			}

			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if body[tt.wantKey] != tt.wantValue {
				t.Errorf("%s = %v, want %v", tt.wantKey, body[tt.wantKey], tt.wantValue)
			}
		})
	}
}

func TestNewComponentMonitor(t *testing.T) {
	hc := newChecker(t)

	check := func(context.Context) error { return nil }

	monitor := NewComponentMonitor("estimator", hc, check, 1*time.Second, 0)

	if monitor.name != "estimator" {
		t.Errorf("Expected name 'estimator', got %s", monitor.name)
	}

	if monitor.healthChecker != hc {
		t.Error("Health checker should match")
	}

	if monitor.interval != 1*time.Second {
		t.Errorf("Expected interval 1s, got %v", monitor.interval)
	}

	// Zero timeout falls back to the interval
	if monitor.timeout != 1*time.Second {
		t.Errorf("Expected timeout 1s, got %v", monitor.timeout)
	}
}

func TestComponentMonitorSuccess(t *testing.T) {
	hc := newChecker(t)

	check := func(context.Context) error { return nil }

	monitor := NewComponentMonitor("estimator", hc, check, 100*time.Millisecond, time.Second)
	monitor.Start()

	// Wait for at least one check
	time.Sleep(200 * time.Millisecond)
	monitor.Stop()

	hc.mu.RLock()
	conn, exists := hc.components["estimator"]
	hc.mu.RUnlock()

	if !exists {
		t.Fatal("Component should exist")
	}

	if conn.Status != StatusConnected {
		t.Errorf("Expected status 'connected', got %s", conn.Status)
	}

	if conn.CheckedAt.IsZero() {
		t.Error("CheckedAt should be set")
	}
}

func TestComponentMonitorError(t *testing.T) {
	hc := newChecker(t)

	testErr := errors.New("test error")
	check := func(context.Context) error { return testErr }

	monitor := NewComponentMonitor("estimator", hc, check, 100*time.Millisecond, time.Second)
	monitor.Start()

	time.Sleep(200 * time.Millisecond)
	monitor.Stop()

	hc.mu.RLock()
	conn, exists := hc.components["estimator"]
	hc.mu.RUnlock()

	if !exists {
		t.Fatal("Component should exist")
	}

	if conn.Status != StatusError {
		t.Errorf("Expected status 'error', got %s", conn.Status)
	}

	if conn.LastError != "test error" {
		t.Errorf("Expected error 'test error', got %s", conn.LastError)
	}

	// One failing component out of one is unhealthy
	if got := hc.GetHealth().Status; got != HealthUnhealthy {
		t.Errorf("Expected status 'unhealthy', got %s", got)
	}
}

func TestComponentMonitorTimeout(t *testing.T) {
	hc := newChecker(t)

	// Blocks until the probe deadline
	check := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	monitor := NewComponentMonitor("estimator", hc, check, time.Hour, 50*time.Millisecond)
	monitor.performCheck()

	hc.mu.RLock()
	conn := hc.components["estimator"]
	hc.mu.RUnlock()

	if conn == nil || conn.Status != StatusError {
		t.Fatalf("Expected error status after timeout, got %+v", conn)
	}
}

func TestComponentMonitorDegraded(t *testing.T) {
	hc := newChecker(t)

	check := func(context.Context) error {
		time.Sleep(60 * time.Millisecond)
		return nil
	}

	monitor := NewComponentMonitor("estimator", hc, check, time.Hour, 100*time.Millisecond)
	monitor.performCheck()

	if got := hc.GetHealth().Status; got != HealthDegraded {
		t.Errorf("Expected status 'degraded', got %s", got)
	}
}

func TestComponentMonitorStop(t *testing.T) {
	hc := newChecker(t)

	check := func(context.Context) error { return nil }

	monitor := NewComponentMonitor("estimator", hc, check, 50*time.Millisecond, 0)
	monitor.Start()

	time.Sleep(100 * time.Millisecond)

	// Stop waits for the loop to exit
	monitor.Stop()
}

func TestRegisterGauge(t *testing.T) {
	hc := newChecker(t)

	hc.RegisterGauge(GaugeActiveSessions, func() int { return 7 })
	hc.RegisterGauge(GaugeRouteCache, func() int { return 3 })
	hc.SetTransport(TransportInfo{Type: "http_sse", HTTPAddr: ":7082"})

	health := hc.GetHealth()
	if got, ok := health.Metrics[GaugeActiveSessions].(int); !ok || got != 7 {
		t.Errorf("Expected active_sessions 7, got %v", health.Metrics[GaugeActiveSessions])
	}
	if health.Transport == nil || health.Transport.Type != "http_sse" {
		t.Errorf("Expected transport info, got %+v", health.Transport)
	}

	hc.updateSystemMetrics()
	if got := testutil.ToFloat64(ActiveSessions); got != 7 {
		t.Errorf("Expected active sessions gauge 7, got %v", got)
	}
	if got := testutil.ToFloat64(CacheSize.WithLabelValues("routes")); got != 3 {
		t.Errorf("Expected route cache size 3, got %v", got)
	}
}

func BenchmarkGetHealth(b *testing.B) {
	hc := newChecker(b)
	hc.RegisterGauge(GaugeActiveSessions, func() int { return 42 })
	hc.UpdateConnection("estimator", StatusConnected, 100, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hc.GetHealth()
	}
}

func BenchmarkUpdateConnection(b *testing.B) {
	hc := newChecker(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hc.UpdateConnection("estimator", StatusConnected, 100, nil)
	}
}
