package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/tools"
)

// Handler serves the route planner as plain JSON over HTTP:
//
//	GET /health
//	GET /routes?from=...&to=...[&session_id=...]
//
// /routes answers with the estimate_routes result, or with the tool's error
// object and a matching status code.
type Handler struct {
	logger   *slog.Logger
	estimate tools.HandlerFunc
}

// NewHandler creates a JSON handler over the tools of registry.
func NewHandler(logger *slog.Logger, registry *tools.Registry) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	estimate, _ := registry.Handler(tools.ToolEstimateRoutes)
	return &Handler{
		logger:   logger.With("component", "json_api"),
		estimate: estimate,
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	reqID := RequestID(r.Context())
	if reqID == "" {
		reqID = r.Header.Get("X-Request-ID")
	}

	var status int
	var err error
	switch r.URL.Path {
	case "/health":
		status, err = h.handleHealth(w, r)
	case "/routes":
		status, err = h.handleRoutes(w, r)
	default:
		status = http.StatusNotFound
		writeJSON(w, status, core.NewError(core.ErrNotFound, "Unknown endpoint").WithQuery(r.URL.Path))
	}

	duration := time.Since(start)
	if err != nil {
		h.logger.Error("request failed",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", duration,
			"error", err)
		return
	}
	h.logger.Debug("request completed",
		"request_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration", duration)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) (int, error) {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return http.StatusOK, nil
}

func (h *Handler) handleRoutes(w http.ResponseWriter, r *http.Request) (int, error) {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w)
	}

	q := r.URL.Query()
	args := make(map[string]any, 3)
	for param, arg := range map[string]string{
		"from":       core.ParamFromAddress,
		"to":         core.ParamToAddress,
		"session_id": core.ParamSessionID,
	} {
		if q.Has(param) {
			args[arg] = q.Get(param)
		}
	}

	result, err := h.estimate(r.Context(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      tools.ToolEstimateRoutes,
			Arguments: args,
		},
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, core.NewError(core.ErrInternalError, "Route estimate failed"))
		return http.StatusInternalServerError, err
	}

	body := resultText(result)
	status := http.StatusOK
	if result.IsError {
		status = errorStatus(body)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		return status, err
	}
	return status, nil
}

// errorStatus maps the code of a JSON tool error to an HTTP status.
func errorStatus(body string) int {
	var e core.MCPError
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return http.StatusBadRequest
	}

	switch core.ErrorCode(e.Code) {
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	case core.ErrRequestCanceled:
		return http.StatusRequestTimeout
	case core.ErrInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if t, ok := c.(mcp.TextContent); ok {
			return t.Text
		}
	}
	return "{}"
}

func methodNotAllowed(w http.ResponseWriter) (int, error) {
	w.Header().Set("Allow", http.MethodGet)
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	return http.StatusMethodNotAllowed, nil
}
