// Package tools provides the ecoroute MCP tool implementations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/estimator"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/session"
	"github.com/NERVsystems/ecoroute/pkg/tools/prompts"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// Tool names.
const (
	ToolEstimateRoutes  = "estimate_routes"
	ToolGetSessionState = "get_session_state"
	ToolGetRouteDetails = "get_route_details"
	ToolScoreRoute      = "score_route"
	ToolGetVersion      = "get_version"
)

// HandlerFunc is the signature shared by every tool handler.
type HandlerFunc func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Registry contains all tool definitions and the services their handlers
// use.
type Registry struct {
	logger    *slog.Logger
	factory   *core.ToolFactory
	estimator *estimator.Estimator
	sessions  *session.Store
}

// NewRegistry creates a new tool registry
func NewRegistry(logger *slog.Logger, est *estimator.Estimator, sessions *session.Store) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:    logger,
		factory:   core.NewToolFactory(),
		estimator: est,
		sessions:  sessions,
	}
}

// ToolDefinition represents an ecoroute MCP tool definition.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     HandlerFunc
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolEstimateRoutes,
			Description: "Estimate and rank trip options between two addresses by eco-score. Parameters: from_address (string), to_address (string), session_id (string, optional)",
			Tool: r.factory.CreateAddressPairTool(ToolEstimateRoutes,
				"Estimate driving, bicycling, transit and walking options between two addresses and return the best ones ranked by eco-score (lower is better). Takes one to two seconds and occasionally fails transiently; retry on SERVICE_UNAVAILABLE."),
			Handler: r.HandleEstimateRoutes,
		},
		{
			Name:        ToolGetSessionState,
			Description: "Get the addresses, routes, loading flag, error and selection of a session. Parameters: session_id (string)",
			Tool: r.factory.CreateSessionTool(ToolGetSessionState,
				"Get the current planning state of a session: entered addresses, ranked routes, loading flag, last error and selected route."),
			Handler: r.HandleGetSessionState,
		},
		{
			Name:        ToolGetRouteDetails,
			Description: "Select a route of a session and get its map preview. Parameters: session_id (string), index (number), zoom (number, 1-19), map_type (string: standard, satellite)",
			Tool: r.factory.CreateRouteDetailsTool(ToolGetRouteDetails,
				"Select one of a session's ranked routes and return its details with a map preview: encoded path, markers, tile coordinates and an OpenStreetMap link."),
			Handler: r.HandleGetRouteDetails,
		},
		{
			Name:        ToolScoreRoute,
			Description: "Compute the eco-score of a trip. Parameters: mode (string), time_min (number), co2_g (number)",
			Tool:        ScoreRouteTool(),
			Handler:     HandleScoreRoute,
		},
		{
			Name:        ToolGetVersion,
			Description: "Get the version information for this ecoroute MCP",
			Tool:        GetVersionTool(),
			Handler:     HandleGetVersion,
		},
	}
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, r.wrapWithTracing(def.Name, def.Handler))
	}
}

// Handler returns the traced handler of the named tool.
func (r *Registry) Handler(name string) (HandlerFunc, bool) {
	for _, def := range r.GetToolDefinitions() {
		if def.Name == name {
			return r.wrapWithTracing(def.Name, def.Handler), true
		}
	}
	return nil, false
}

// wrapWithTracing wraps a tool handler with an OpenTelemetry span and
// request metrics
func (r *Registry) wrapWithTracing(toolName string, handler HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		spanName := fmt.Sprintf("mcp.tool.%s", toolName)
		ctx, span := tracing.StartSpan(ctx, spanName,
			trace.WithAttributes(
				attribute.String(tracing.AttrMCPToolName, toolName),
			),
		)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)
		durationMs := duration.Milliseconds()

		// Tool-level failures come back as error results, not errors
		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned error result")
		default:
			span.SetStatus(codes.Ok, "")
		}

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(
			attribute.String(tracing.AttrMCPToolStatus, status),
			attribute.Int64(tracing.AttrMCPToolDuration, durationMs),
			attribute.Int(tracing.AttrMCPResultSize, resultSize),
		)
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", durationMs,
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}

// RegisterPrompts registers all prompts with the MCP server.
func (r *Registry) RegisterPrompts(mcpServer *server.MCPServer) {
	r.logger.Info("registering route planning prompts")
	prompts.RegisterRoutePrompts(mcpServer)
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// RegisterAll registers all tools and prompts with the MCP server.
func (r *Registry) RegisterAll(mcpServer *server.MCPServer) {
	r.RegisterTools(mcpServer)
	r.RegisterPrompts(mcpServer)
}
