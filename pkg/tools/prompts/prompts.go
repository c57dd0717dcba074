// Package prompts holds the MCP prompts served alongside the tools.
package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// EcoRoutePromptName is the name of the route planning system prompt.
const EcoRoutePromptName = "eco_route_system"

// EcoRouteSystemPrompt returns the instructions for planning trips with the
// ecoroute tools.
func EcoRouteSystemPrompt() string {
	return `You help people choose the most environmentally friendly way to make a trip.

Workflow:
1. Call estimate_routes with from_address and to_address exactly as the user wrote them.
   Keep the returned session_id and pass it on later calls in the same conversation.
2. Present the routes in the order returned. They are ranked by eco-score, lower is better.
   For each route give the mode, distance in km, time in minutes and CO2 in grams.
3. When the user picks a route, call get_route_details with the session_id and the
   zero-based index of that route. Share the summary and the OpenStreetMap link.
4. Use get_session_state to recall the current addresses, routes or selection.

Errors:
- INVALID_INPUT and DUPLICATE_ADDRESS: show the message as-is and ask for corrected addresses.
- SERVICE_UNAVAILABLE is temporary. Retry the same estimate_routes call once before
  reporting the failure.
- NOT_FOUND for a session means it expired. Start again without session_id.

The eco-score is round(time_min*0.6 + (co2_g/10)*0.4). Use score_route to compare a
trip the user describes against the suggested routes. Estimates are illustrative and
do not come from a live routing service.`
}

// RegisterRoutePrompts adds the route planning prompts to srv.
func RegisterRoutePrompts(srv *server.MCPServer) {
	prompt := mcp.NewPrompt(EcoRoutePromptName,
		mcp.WithPromptDescription("System prompt with eco-friendly trip planning instructions"),
	)

	srv.AddPrompt(prompt, HandleEcoRoutePrompt)
}

// HandleEcoRoutePrompt serves the eco_route_system prompt.
func HandleEcoRoutePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return mcp.NewGetPromptResult(
		"Eco Route Planning Instructions",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(
				mcp.RoleAssistant,
				mcp.NewTextContent(EcoRouteSystemPrompt()),
			),
		},
	), nil
}
