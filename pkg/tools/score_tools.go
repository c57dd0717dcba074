package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/estimator"
)

// ScoreRouteInput is the argument object of score_route.
type ScoreRouteInput struct {
	Mode    string `json:"mode"`
	TimeMin int    `json:"time_min"`
	CO2g    int    `json:"co2_g"`
}

// ScoreRouteOutput is the result of score_route.
type ScoreRouteOutput struct {
	Mode    estimator.Mode `json:"mode"`
	TimeMin int            `json:"time_min"`
	CO2g    int            `json:"co2_g"`
	Score   int            `json:"score"`
	Formula string         `json:"formula"`
}

// ScoreRouteTool returns a tool definition for scoring an arbitrary trip
func ScoreRouteTool() mcp.Tool {
	return mcp.NewTool(ToolScoreRoute,
		mcp.WithDescription("Compute the eco-score of a trip from its travel time and CO2 emissions. Lower is better."),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Travel mode: driving, bicycling, transit or walking"),
		),
		mcp.WithNumber("time_min",
			mcp.Required(),
			mcp.Description("Travel time in whole minutes"),
		),
		mcp.WithNumber("co2_g",
			mcp.Required(),
			mcp.Description("CO2 emissions in whole grams"),
		),
	)
}

// HandleScoreRoute implements the score_route tool.
var HandleScoreRoute = WithParsedInput(ToolScoreRoute, scoreRoute)

func scoreRoute(ctx context.Context, input ScoreRouteInput, logger *slog.Logger) (interface{}, error) {
	mode, err := estimator.ParseMode(input.Mode)
	if err != nil {
		return nil, err
	}
	if input.TimeMin < 0 {
		return nil, fmt.Errorf("time_min must not be negative, got %d", input.TimeMin)
	}
	if input.CO2g < 0 {
		return nil, fmt.Errorf("co2_g must not be negative, got %d", input.CO2g)
	}

	score := estimator.EcoScore(input.TimeMin, input.CO2g)
	logger.Debug("scored route", "mode", mode, "score", score)

	return ScoreRouteOutput{
		Mode:    mode,
		TimeMin: input.TimeMin,
		CO2g:    input.CO2g,
		Score:   score,
		Formula: "round(time_min*0.6 + (co2_g/10)*0.4)",
	}, nil
}
