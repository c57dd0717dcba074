package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/preview"
)

func request(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "test",
			Arguments: args,
		},
	}
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var mcpErr *MCPError
	if !errors.As(err, &mcpErr) {
		t.Fatalf("expected *MCPError, got %T: %v", err, err)
	}
	return mcpErr.Code
}

func TestParseAddressPair(t *testing.T) {
	from, to, err := ParseAddressPair(request(map[string]any{
		ParamFromAddress: " 123 Main St ",
		ParamToAddress:   "456 Oak Ave",
	}))
	if err != nil {
		t.Fatalf("ParseAddressPair() error = %v", err)
	}
	// Trimming is the estimator's job.
	if from != " 123 Main St " || to != "456 Oak Ave" {
		t.Errorf("unexpected addresses %q %q", from, to)
	}

	from, to, err = ParseAddressPair(request(map[string]any{}))
	if err != nil || from != "" || to != "" {
		t.Errorf("missing addresses should parse as empty, got %q %q %v", from, to, err)
	}

	_, _, err = ParseAddressPair(request(map[string]any{
		ParamFromAddress: strings.Repeat("x", MaxAddressLength+1),
		ParamToAddress:   "456 Oak Ave",
	}))
	if err == nil || codeOf(t, err) != string(ErrInvalidParameter) {
		t.Errorf("expected INVALID_PARAMETER for long address, got %v", err)
	}
}

func TestParseSessionID(t *testing.T) {
	valid := "0b7e9a52-2c4c-4a1e-9d61-8d3f6f0a4f11"

	id, err := ParseSessionID(request(map[string]any{ParamSessionID: valid}))
	if err != nil || id != valid {
		t.Errorf("ParseSessionID() = %q, %v", id, err)
	}

	_, err = ParseSessionID(request(map[string]any{}))
	if err == nil || codeOf(t, err) != string(ErrMissingParameter) {
		t.Errorf("expected MISSING_PARAMETER, got %v", err)
	}

	_, err = ParseSessionID(request(map[string]any{ParamSessionID: "not-a-uuid"}))
	if err == nil || codeOf(t, err) != string(ErrInvalidParameter) {
		t.Errorf("expected INVALID_PARAMETER, got %v", err)
	}

	id, err = ParseOptionalSessionID(request(map[string]any{}))
	if err != nil || id != "" {
		t.Errorf("ParseOptionalSessionID() on empty = %q, %v", id, err)
	}
	if _, err := ParseOptionalSessionID(request(map[string]any{ParamSessionID: "nope"})); err == nil {
		t.Error("expected error for invalid optional session id")
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		n       int
		want    int
		wantErr ErrorCode
	}{
		{"First", map[string]any{ParamIndex: 0}, 3, 0, ""},
		{"Last", map[string]any{ParamIndex: float64(2)}, 3, 2, ""},
		{"Out of range", map[string]any{ParamIndex: 3}, 3, 0, ErrInvalidParameter},
		{"Negative", map[string]any{ParamIndex: -1}, 3, 0, ErrInvalidParameter},
		{"Fractional", map[string]any{ParamIndex: 1.5}, 3, 0, ErrInvalidParameter},
		{"Missing", map[string]any{}, 3, 0, ErrInvalidParameter},
		{"No routes", map[string]any{ParamIndex: 0}, 0, 0, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndex(request(tt.args), "", tt.n)
			if tt.wantErr != "" {
				if err == nil || codeOf(t, err) != string(tt.wantErr) {
					t.Fatalf("expected %s, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseIndex() = %d, %v, want %d", got, err, tt.want)
			}
		})
	}
}

func TestParseZoomAndMapType(t *testing.T) {
	zoom, err := ParseZoom(request(map[string]any{}))
	if err != nil || zoom != preview.DefaultZoom {
		t.Errorf("default zoom = %d, %v", zoom, err)
	}

	for _, bad := range []any{0, 20, 12.5} {
		if _, err := ParseZoom(request(map[string]any{ParamZoom: bad})); err == nil {
			t.Errorf("expected error for zoom %v", bad)
		}
	}

	m, err := ParseMapType(request(map[string]any{ParamMapType: "satellite"}))
	if err != nil || m != preview.MapSatellite {
		t.Errorf("ParseMapType() = %s, %v", m, err)
	}

	_, err = ParseMapType(request(map[string]any{ParamMapType: "hybrid"}))
	var mcpErr *MCPError
	if !errors.As(err, &mcpErr) || len(mcpErr.Suggestions) != 2 {
		t.Errorf("expected suggestions for unknown map type, got %v", err)
	}
}
