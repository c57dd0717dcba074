package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/estimator"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/preview"
	"github.com/NERVsystems/ecoroute/pkg/session"
)

// EstimateRoutesOutput is the result of estimate_routes.
type EstimateRoutesOutput struct {
	SessionID   string                     `json:"session_id"`
	FromAddress string                     `json:"from_address"`
	ToAddress   string                     `json:"to_address"`
	Routes      []estimator.RouteCandidate `json:"routes"`
}

// RouteDetailsOutput is the result of get_route_details.
type RouteDetailsOutput struct {
	SessionID string          `json:"session_id"`
	Index     int             `json:"index"`
	Preview   preview.Preview `json:"preview"`
}

// HandleEstimateRoutes estimates routes for an address pair and records
// the attempt in the caller's session, creating one when none is given.
func (r *Registry) HandleEstimateRoutes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", ToolEstimateRoutes)

	from, to, err := core.ParseAddressPair(req)
	if err != nil {
		logger.Error("invalid address parameters", "error", err)
		return toResult(err), nil
	}

	sessionID, err := core.ParseOptionalSessionID(req)
	if err != nil {
		logger.Error("invalid session id", "error", err)
		return toResult(err), nil
	}
	if sessionID == "" {
		sessionID = r.sessions.Create()
		logger.Debug("created session", "session_id", sessionID)
	}

	started, err := r.dispatch(ctx, sessionID, session.SetAddresses(from, to))
	if err != nil {
		return r.sessionError(logger, sessionID, err), nil
	}
	seq := started.Request
	if _, err := r.dispatch(ctx, sessionID, session.SetLoading(true).ForRequest(seq)); err != nil {
		return r.sessionError(logger, sessionID, err), nil
	}

	routes, err := r.estimator.Estimate(ctx, from, to)
	if err != nil {
		mcpErr := core.FromEstimateError(err).WithQuery(sessionID)
		if _, dispatchErr := r.dispatch(ctx, sessionID, session.SetError(mcpErr.Message).ForRequest(seq)); dispatchErr != nil {
			logger.Warn("failed to record estimate error", "session_id", sessionID, "error", dispatchErr)
		}

		switch estimator.Outcome(err) {
		case estimator.OutcomeTransientFailure, estimator.OutcomeProviderError:
			logger.Error("route estimate failed", "session_id", sessionID, "error", err)
		default:
			logger.Info("route estimate rejected", "session_id", sessionID, "reason", err)
		}
		return mcpErr.ToMCPResult(), nil
	}

	st, err := r.dispatch(ctx, sessionID, session.SetRoutes(routes).ForRequest(seq))
	if err != nil {
		return r.sessionError(logger, sessionID, err), nil
	}
	if st.Request != seq {
		logger.Debug("newer estimate owns the session", "session_id", sessionID, "request", seq, "current", st.Request)
	}

	logger.Info("routes estimated", "session_id", sessionID, "routes", len(routes))

	return jsonResult(logger, EstimateRoutesOutput{
		SessionID:   sessionID,
		FromAddress: from,
		ToAddress:   to,
		Routes:      routes,
	})
}

// HandleGetRouteDetails selects a route of a session and builds its
// preview.
func (r *Registry) HandleGetRouteDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", ToolGetRouteDetails)

	sessionID, err := core.ParseSessionIDWithLog(req, logger)
	if err != nil {
		return toResult(err), nil
	}

	state, err := r.sessions.Get(sessionID)
	if err != nil {
		return r.sessionError(logger, sessionID, err), nil
	}

	index, err := core.ParseIndex(req, core.ParamIndex, len(state.Routes))
	if err != nil {
		logger.Error("invalid route index", "session_id", sessionID, "error", err)
		return toResult(err), nil
	}

	zoom, err := core.ParseZoom(req)
	if err != nil {
		logger.Error("invalid zoom", "error", err)
		return toResult(err), nil
	}

	mapType, err := core.ParseMapType(req)
	if err != nil {
		logger.Error("invalid map type", "error", err)
		return toResult(err), nil
	}

	state, err = r.dispatch(ctx, sessionID, session.SelectRoute(index))
	if err != nil {
		return r.sessionError(logger, sessionID, err), nil
	}

	route, ok := state.SelectedRoute()
	if !ok || state.Selected != index {
		// Routes were replaced between the read and the selection
		return core.NewError(core.ErrNotFound, "Selected route is no longer available").
			WithQuery(sessionID).
			WithGuidance("Call get_session_state and pick a route from the current list").
			ToMCPResult(), nil
	}

	p, err := preview.Build(route, preview.Options{
		Zoom:        zoom,
		MapType:     mapType,
		FromAddress: state.FromAddress,
		ToAddress:   state.ToAddress,
	})
	if err != nil {
		logger.Error("failed to build preview", "error", err)
		return core.NewError(core.ErrInternalError, "Failed to build route preview").ToMCPResult(), nil
	}

	return jsonResult(logger, RouteDetailsOutput{
		SessionID: sessionID,
		Index:     index,
		Preview:   p,
	})
}

// dispatch applies an action and counts it.
func (r *Registry) dispatch(ctx context.Context, id string, a session.Action) (session.State, error) {
	st, err := r.sessions.Dispatch(ctx, id, a)
	if err != nil {
		return st, err
	}
	monitoring.RecordSessionAction(string(a.Type))
	return st, nil
}

// sessionError converts a session store error to a tool result.
func (r *Registry) sessionError(logger *slog.Logger, id string, err error) *mcp.CallToolResult {
	if errors.Is(err, session.ErrNotFound) {
		logger.Info("session not found", "session_id", id)
		return core.SessionNotFound(id).ToMCPResult()
	}
	logger.Error("session store error", "session_id", id, "error", err)
	return core.NewError(core.ErrInternalError, "Session update failed").ToMCPResult()
}

// toResult renders err as a tool error result. *core.MCPError keeps its
// code and guidance.
func toResult(err error) *mcp.CallToolResult {
	var mcpErr *core.MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr.ToMCPResult()
	}
	return ErrorResponse(err.Error())
}

// jsonResult marshals v as the text content of a tool result.
func jsonResult(logger *slog.Logger, v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		return ErrorResponse("Failed to generate result"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
