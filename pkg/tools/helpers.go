package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/core"
)

// InputParser is a generic function to parse request arguments into a
// strongly typed struct. The error result carries a usage example for
// toolName.
func InputParser[T any](toolName string, req mcp.CallToolRequest) (T, *mcp.CallToolResult, error) {
	var input T

	inputJSON, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return input, parseError(toolName, fmt.Sprintf("Invalid input format: %v", err)), err
	}

	if err := json.Unmarshal(inputJSON, &input); err != nil {
		return input, parseError(toolName, fmt.Sprintf("Failed to parse input: %v", err)), err
	}

	return input, nil, nil
}

func parseError(toolName, message string) *mcp.CallToolResult {
	return core.NewValidationError(core.ErrInvalidParameter, message).
		WithSuggestions("Example arguments: " + GetToolUsageExample(toolName)).
		ToMCPResult()
}

// WithParsedInput is a higher-order function that handles request parsing and error handling
func WithParsedInput[T any](
	handlerName string,
	handler func(ctx context.Context, input T, logger *slog.Logger) (interface{}, error),
) HandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", handlerName)

		input, errResult, err := InputParser[T](handlerName, req)
		if err != nil {
			logger.Error("failed to parse input", "error", err)
			return errResult, nil
		}

		result, err := handler(ctx, input, logger)
		if err != nil {
			logger.Error("handler error", "error", err)
			var mcpErr *core.MCPError
			if errors.As(err, &mcpErr) {
				return mcpErr.ToMCPResult(), nil
			}
			return core.NewValidationError(core.ErrInvalidParameter, err.Error()).ToMCPResult(), nil
		}

		return jsonResult(logger, result)
	}
}
