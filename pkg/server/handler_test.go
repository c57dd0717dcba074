package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/tools"
)

func getRoutes(t *testing.T, h http.Handler, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/routes?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	h := NewHandler(discardLogger(), newTestRegistry(t, 0))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "{\"status\":\"ok\"}\n" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandler_Routes(t *testing.T) {
	h := NewHandler(discardLogger(), newTestRegistry(t, 0))

	rec := getRoutes(t, h, url.Values{"from": {"1 Market St"}, "to": {"Golden Gate Park"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var out tools.EstimateRoutesOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if out.SessionID == "" {
		t.Error("expected a new session ID")
	}
	if len(out.Routes) == 0 {
		t.Fatal("expected routes")
	}
	for i := 1; i < len(out.Routes); i++ {
		if out.Routes[i-1].Score > out.Routes[i].Score {
			t.Errorf("routes not ranked by eco score: %v", out.Routes)
		}
	}

	// The session carries over to the next call
	rec = getRoutes(t, h, url.Values{"from": {"A"}, "to": {"B"}, "session_id": {out.SessionID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with an existing session, got %d", rec.Code)
	}
	var again tools.EstimateRoutesOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &again); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if again.SessionID != out.SessionID {
		t.Errorf("session_id = %s, want %s", again.SessionID, out.SessionID)
	}
}

func TestHandler_RoutesErrors(t *testing.T) {
	tests := []struct {
		name        string
		failureRate float64
		params      url.Values
		wantStatus  int
		wantCode    core.ErrorCode
	}{
		{
			name:       "missing to",
			params:     url.Values{"from": {"A"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "blank addresses",
			params:     url.Values{"from": {" "}, "to": {"B"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   core.ErrInvalidInput,
		},
		{
			name:       "duplicate addresses",
			params:     url.Values{"from": {"Main St"}, "to": {"main st"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   core.ErrDuplicateAddress,
		},
		{
			name:       "unknown session",
			params:     url.Values{"from": {"A"}, "to": {"B"}, "session_id": {"0b7e9a52-2c4c-4a1e-9d61-8d3f6f0a4f11"}},
			wantStatus: http.StatusNotFound,
			wantCode:   core.ErrNotFound,
		},
		{
			name:        "transient failure",
			failureRate: 1,
			params:      url.Values{"from": {"A"}, "to": {"B"}},
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    core.ErrServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(discardLogger(), newTestRegistry(t, tt.failureRate))

			rec := getRoutes(t, h, tt.params)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode == "" {
				return
			}

			var e core.MCPError
			if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if e.Code != string(tt.wantCode) {
				t.Errorf("code = %s, want %s", e.Code, tt.wantCode)
			}
			if tt.wantStatus == http.StatusServiceUnavailable && rec.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After on 503")
			}
		})
	}
}

func TestHandler_NotFound(t *testing.T) {
	h := NewHandler(discardLogger(), newTestRegistry(t, 0))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/geocode", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{`{"code":"NOT_FOUND","message":"x"}`, http.StatusNotFound},
		{`{"code":"SERVICE_UNAVAILABLE","message":"x"}`, http.StatusServiceUnavailable},
		{`{"code":"REQUEST_CANCELED","message":"x"}`, http.StatusRequestTimeout},
		{`{"code":"INTERNAL_ERROR","message":"x"}`, http.StatusInternalServerError},
		{`{"code":"INVALID_INPUT","message":"x"}`, http.StatusBadRequest},
		{`plain text error`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		if got := errorStatus(tt.body); got != tt.want {
			t.Errorf("errorStatus(%s) = %d, want %d", tt.body, got, tt.want)
		}
	}
}
