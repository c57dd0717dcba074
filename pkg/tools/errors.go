package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorResponse returns a plain text error result.
func ErrorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// GetToolUsageExample returns an example argument object for a tool, used
// when a call cannot be parsed.
func GetToolUsageExample(toolName string) string {
	examples := map[string]string{
		ToolEstimateRoutes: `{
  "from_address": "1 Market St, San Francisco",
  "to_address": "Golden Gate Park, San Francisco"
}`,
		ToolGetSessionState: `{
  "session_id": "0b7e9a52-2c4c-4a1e-9d61-8d3f6f0a4f11"
}`,
		ToolGetRouteDetails: `{
  "session_id": "0b7e9a52-2c4c-4a1e-9d61-8d3f6f0a4f11",
  "index": 0,
  "zoom": 13,
  "map_type": "standard"
}`,
		ToolScoreRoute: `{
  "mode": "transit",
  "time_min": 41,
  "co2_g": 547
}`,
	}

	if example, exists := examples[toolName]; exists {
		return example
	}
	return "{}"
}
