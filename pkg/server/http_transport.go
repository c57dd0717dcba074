package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/ecoroute/pkg/config"
	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
)

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string  `json:"addr"`
	BaseURL        string  `json:"base_url"`  // used in service discovery and SSE endpoint events
	AuthType       string  `json:"auth_type"` // none, bearer or basic
	AuthToken      string  `json:"auth_token"`
	SSEEndpoint    string  `json:"sse_endpoint"`
	MsgEndpoint    string  `json:"msg_endpoint"`
	RateLimit      float64 `json:"rate_limit"` // requests per second per IP, 0 disables
	RateBurst      int     `json:"rate_burst"`
	MaxRequestSize int64   `json:"max_request_size"`
	MaxHeaderBytes int     `json:"max_header_bytes"`
	TLSCertFile    string  `json:"tls_cert_file"`
	TLSKeyFile     string  `json:"tls_key_file"`
	ForceHTTPS     bool    `json:"force_https"`

	// TrustedProxies are peers whose forwarding headers name the client.
	TrustedProxies []netip.Prefix `json:"trusted_proxies,omitempty"`
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":7082",
		AuthType:       core.AuthNone,
		SSEEndpoint:    "/sse",
		MsgEndpoint:    "/message",
		RateLimit:      10,
		RateBurst:      20,
		MaxRequestSize: 1 << 20,
		MaxHeaderBytes: 1 << 20,
	}
}

// TransportConfig builds the transport settings from the http section of
// the service configuration. c must have passed Config.Validate.
func TransportConfig(c config.HTTPConfig) HTTPTransportConfig {
	tc := DefaultHTTPTransportConfig()
	tc.Addr = c.Addr
	tc.BaseURL = c.BaseURL
	tc.AuthType = c.AuthType
	tc.AuthToken = c.AuthToken
	tc.RateLimit = c.RateLimit
	tc.RateBurst = c.RateBurst
	tc.MaxRequestSize = c.MaxBodyBytes
	tc.TLSCertFile = c.TLSCertFile
	tc.TLSKeyFile = c.TLSKeyFile
	tc.ForceHTTPS = c.ForceHTTPS
	tc.TrustedProxies, _ = c.TrustedProxyPrefixes()
	return tc
}

// HTTPTransport serves MCP over HTTP+SSE next to the health endpoints
type HTTPTransport struct {
	config        HTTPTransportConfig
	logger        *slog.Logger
	sseServer     *mcpserver.SSEServer
	mux           *http.ServeMux
	httpSrv       *http.Server
	rateLimiter   *RateLimiter
	healthChecker *monitoring.HealthChecker
	sseClients    atomic.Int64
	mu            sync.RWMutex
}

// NewHTTPTransport creates a new HTTP transport instance
func NewHTTPTransport(mcpServer *mcpserver.MCPServer, config HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SSEEndpoint == "" {
		config.SSEEndpoint = "/sse"
	}
	if config.MsgEndpoint == "" {
		config.MsgEndpoint = "/message"
	}
	if config.AuthType == "" {
		config.AuthType = core.AuthNone
	}

	if config.AuthType == core.AuthBearer {
		if err := core.ValidateAuthToken(config.AuthToken); err != nil {
			logger.Warn("weak authentication token detected", "error", err.Error())
		}
	}

	sseServer := mcpserver.NewSSEServer(
		mcpServer,
		mcpserver.WithSSEEndpoint(config.SSEEndpoint),
		mcpserver.WithMessageEndpoint(config.MsgEndpoint),
		mcpserver.WithBaseURL(config.BaseURL),
	)

	t := &HTTPTransport{
		config:    config,
		logger:    logger.With("component", "http_transport"),
		sseServer: sseServer,
		mux:       http.NewServeMux(),
	}
	if config.RateLimit > 0 {
		t.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit), config.RateBurst)
		t.rateLimiter.TrustProxies(config.TrustedProxies)
	}

	t.setupRoutes()

	return t
}

// SetHealthChecker sets the health checker for the HTTP transport
func (t *HTTPTransport) SetHealthChecker(hc *monitoring.HealthChecker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.healthChecker = hc
}

// Handle mounts h behind HTTPS enforcement and authentication.
func (t *HTTPTransport) Handle(pattern string, h http.Handler) {
	t.mux.Handle(pattern, t.protect(h))
}

func (t *HTTPTransport) setupRoutes() {
	t.mux.HandleFunc("/", t.httpsEnforcement(t.handleServiceDiscovery))

	// Probes stay unauthenticated
	t.mux.HandleFunc("/health", t.probe((*monitoring.HealthChecker).HealthHandler, map[string]any{"status": "ok"}))
	t.mux.HandleFunc("/ready", t.probe((*monitoring.HealthChecker).ReadinessHandler, map[string]any{"ready": true, "status": "ok"}))
	t.mux.HandleFunc("/live", t.probe((*monitoring.HealthChecker).LivenessHandler, map[string]any{"alive": true}))

	sse := t.countSSE(t.sseServer.SSEHandler())
	msg := t.sseServer.MessageHandler()
	t.Handle(t.config.SSEEndpoint, sse)
	t.Handle(t.config.SSEEndpoint+"/", sse)
	t.Handle(t.config.MsgEndpoint, msg)
	t.Handle(t.config.MsgEndpoint+"/", msg)
}

func (t *HTTPTransport) protect(h http.Handler) http.Handler {
	return t.httpsEnforcement(t.authMiddleware(h).ServeHTTP)
}

// httpsEnforcement redirects plain HTTP requests when ForceHTTPS is set
func (t *HTTPTransport) httpsEnforcement(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t.config.ForceHTTPS && r.TLS == nil {
			httpsURL := "https://" + r.Host + r.RequestURI
			t.logger.Info("redirecting HTTP request to HTTPS",
				"client_ip", clientIP(r, t.config.TrustedProxies),
				"original_url", r.URL.String(),
				"redirect_url", httpsURL)

			http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
			return
		}

		next(w, r)
	}
}

// authMiddleware rejects requests that fail the configured auth scheme
func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.config.AuthType == core.AuthNone {
			next.ServeHTTP(w, r)
			return
		}

		result := core.Authenticate(r, t.config.AuthType, t.config.AuthToken)
		if !result.Authorized {
			monitoring.RecordError("http_transport", "auth_failed")
			t.logger.Warn("authentication failed",
				"client_ip", clientIP(r, t.config.TrustedProxies),
				"path", r.URL.Path,
				"auth_type", t.config.AuthType,
				"error", result.Error,
				"auth_duration", result.Duration)

			if t.config.AuthType == core.AuthBasic {
				w.Header().Set("WWW-Authenticate", `Basic realm="ecoroute"`)
			} else {
				w.Header().Set("WWW-Authenticate", "Bearer")
			}
			writeJSONRPCError(w, http.StatusUnauthorized, nil, -32001, "Authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// countSSE tracks open SSE streams in the active connections gauge.
func (t *HTTPTransport) countSSE(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		monitoring.UpdateActiveConnections("http", "sse", int(t.sseClients.Add(1)))
		defer func() {
			monitoring.UpdateActiveConnections("http", "sse", int(t.sseClients.Add(-1)))
		}()
		next.ServeHTTP(w, r)
	})
}

// handleServiceDiscovery lists the MCP endpoints for clients
func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseURL := t.config.BaseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil || t.config.ForceHTTPS || t.tlsEnabled() {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "mcp-server",
		"transport": "HTTP+SSE",
		"endpoints": map[string]string{
			"sse":     baseURL + t.config.SSEEndpoint,
			"message": baseURL + t.config.MsgEndpoint,
		},
		"capabilities": map[string]any{
			"tools":   true,
			"prompts": true,
		},
		"auth": map[string]any{
			"required": t.config.AuthType != core.AuthNone,
			"type":     t.config.AuthType,
		},
	})
}

// probe serves a health checker endpoint, or fallback when no checker is
// attached.
func (t *HTTPTransport) probe(handler func(*monitoring.HealthChecker) http.HandlerFunc, fallback map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		t.mu.RLock()
		hc := t.healthChecker
		t.mu.RUnlock()

		if hc != nil {
			handler(hc)(w, r)
			return
		}
		writeJSON(w, http.StatusOK, fallback)
	}
}

// writeJSONRPCError writes a JSON-RPC error response
func writeJSONRPCError(w http.ResponseWriter, status int, id any, code int, message string) {
	writeJSON(w, status, map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func (t *HTTPTransport) tlsEnabled() bool {
	return t.config.TLSCertFile != "" && t.config.TLSKeyFile != ""
}

// handler returns the mux wrapped in the middleware chain. Tracing runs
// outermost so every request gets a span.
func (t *HTTPTransport) handler() http.Handler {
	h := http.Handler(t.mux)
	h = RequestSizeLimiter(t.config.MaxRequestSize)(h)
	if t.rateLimiter != nil {
		h = t.rateLimiter.Middleware(h)
	}
	h = SecurityHeaders(h)
	h = LoggingMiddleware(t.logger)(h)
	h = TracingMiddleware()(h)
	return h
}

// Start serves HTTP requests and blocks until the server stops. It returns
// nil after a graceful Shutdown.
func (t *HTTPTransport) Start() error {
	t.mu.Lock()
	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("The HTTP transport is already running. Stop it before starting again.")
	}

	t.httpSrv = &http.Server{
		Addr:              t.config.Addr,
		Handler:           t.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// SSE streams stay open, so no WriteTimeout
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: t.config.MaxHeaderBytes,
	}
	srv := t.httpSrv
	t.mu.Unlock()

	t.logger.Info("starting HTTP transport",
		"addr", t.config.Addr,
		"sse_endpoint", t.config.SSEEndpoint,
		"message_endpoint", t.config.MsgEndpoint,
		"auth_type", t.config.AuthType,
		"base_url", t.config.BaseURL,
		"rate_limit", t.config.RateLimit,
		"tls_enabled", t.tlsEnabled(),
		"force_https", t.config.ForceHTTPS)

	var err error
	if t.tlsEnabled() {
		err = srv.ListenAndServeTLS(t.config.TLSCertFile, t.config.TLSKeyFile)
	} else {
		if t.config.ForceHTTPS {
			t.logger.Warn("HTTPS enforcement enabled without TLS certificates, HTTP requests will be redirected")
		}
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP transport
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rateLimiter != nil {
		t.rateLimiter.Stop()
	}
	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")

	// SSE streams first, otherwise http.Server.Shutdown waits on them
	if err := t.sseServer.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shutdown SSE server", "error", err)
	}

	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}

// GetConfig returns the transport configuration
func (t *HTTPTransport) GetConfig() HTTPTransportConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.config
}
