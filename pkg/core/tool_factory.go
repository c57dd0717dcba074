package core

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/preview"
)

// ToolFactory provides a simplified way to create new tool definitions
// with standardized parameters
type ToolFactory struct{}

// NewToolFactory creates a new tool factory
func NewToolFactory() *ToolFactory {
	return &ToolFactory{}
}

// CreateBasicTool creates a new tool with the specified name and description
func (f *ToolFactory) CreateBasicTool(name, description string) mcp.Tool {
	return mcp.NewTool(name, mcp.WithDescription(description))
}

// CreateAddressPairTool creates a tool taking a starting address, a
// destination and an optional session ID
func (f *ToolFactory) CreateAddressPairTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString(ParamFromAddress,
			mcp.Required(),
			mcp.Description("Starting address, free text"),
		),
		mcp.WithString(ParamToAddress,
			mcp.Required(),
			mcp.Description("Destination address, free text"),
		),
		mcp.WithString(ParamSessionID,
			mcp.Description("Existing session to update. Omit to start a new session"),
		),
	)
}

// CreateSessionTool creates a tool that reads or updates one session
func (f *ToolFactory) CreateSessionTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString(ParamSessionID,
			mcp.Required(),
			mcp.Description("Session ID returned by estimate_routes"),
		),
	)
}

// CreateRouteDetailsTool creates a tool that selects a route of a session
// and renders its map preview
func (f *ToolFactory) CreateRouteDetailsTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString(ParamSessionID,
			mcp.Required(),
			mcp.Description("Session ID returned by estimate_routes"),
		),
		mcp.WithNumber(ParamIndex,
			mcp.Required(),
			mcp.Description("Zero-based position of the route in the session's ranked list"),
		),
		mcp.WithNumber(ParamZoom,
			mcp.Description(fmt.Sprintf("Map zoom level (%d-%d)", preview.MinZoom, preview.MaxZoom)),
			mcp.DefaultNumber(preview.DefaultZoom),
		),
		mcp.WithString(ParamMapType,
			mcp.Description("Base layer: standard or satellite"),
			mcp.DefaultString(string(preview.MapStandard)),
		),
	)
}
