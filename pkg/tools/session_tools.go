package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/session"
)

// SessionStateOutput is the result of get_session_state.
type SessionStateOutput struct {
	SessionID string `json:"session_id"`
	session.State
}

// HandleGetSessionState returns the current state of a session.
func (r *Registry) HandleGetSessionState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", ToolGetSessionState)

	sessionID, err := core.ParseSessionIDWithLog(req, logger)
	if err != nil {
		return toResult(err), nil
	}

	state, err := r.sessions.Get(sessionID)
	if err != nil {
		return r.sessionError(logger, sessionID, err), nil
	}

	return jsonResult(logger, SessionStateOutput{
		SessionID: sessionID,
		State:     state,
	})
}
