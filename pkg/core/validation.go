package core

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/preview"
)

// MaxAddressLength bounds the size of an address argument in characters.
const MaxAddressLength = 500

// Parameter names shared by the tools.
const (
	ParamFromAddress = "from_address"
	ParamToAddress   = "to_address"
	ParamSessionID   = "session_id"
	ParamIndex       = "index"
	ParamZoom        = "zoom"
	ParamMapType     = "map_type"
)

// ParseAddressPair extracts the two addresses of a request. Blank and
// duplicate addresses are left for the estimator to reject so that every
// estimate goes through the same checks.
func ParseAddressPair(req mcp.CallToolRequest) (from, to string, err error) {
	from = mcp.ParseString(req, ParamFromAddress, "")
	to = mcp.ParseString(req, ParamToAddress, "")

	for name, v := range map[string]string{ParamFromAddress: from, ParamToAddress: to} {
		if n := utf8.RuneCountInString(v); n > MaxAddressLength {
			return "", "", NewValidationError(ErrInvalidParameter,
				fmt.Sprintf("%s must be at most %d characters, got %d", name, MaxAddressLength, n))
		}
	}

	return from, to, nil
}

// ValidateSessionID checks that id is a UUID.
func ValidateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError(ErrEmptyParameter, "session_id must not be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return NewValidationError(ErrInvalidParameter, fmt.Sprintf("session_id is not a valid UUID: %q", id))
	}
	return nil
}

// ParseSessionID reads and validates a required session ID.
func ParseSessionID(req mcp.CallToolRequest) (string, error) {
	id := mcp.ParseString(req, ParamSessionID, "")
	if id == "" {
		return "", NewValidationError(ErrMissingParameter, "session_id is required")
	}
	if err := ValidateSessionID(id); err != nil {
		return "", err
	}
	return id, nil
}

// ParseOptionalSessionID reads a session ID that may be absent. An empty
// result means a new session should be created.
func ParseOptionalSessionID(req mcp.CallToolRequest) (string, error) {
	id := strings.TrimSpace(mcp.ParseString(req, ParamSessionID, ""))
	if id == "" {
		return "", nil
	}
	if err := ValidateSessionID(id); err != nil {
		return "", err
	}
	return id, nil
}

// ParseIndex reads a zero-based index below n.
func ParseIndex(req mcp.CallToolRequest, key string, n int) (int, error) {
	if key == "" {
		key = ParamIndex
	}

	raw := mcp.ParseFloat64(req, key, -1)
	index := int(raw)
	if raw != float64(index) {
		return 0, NewValidationError(ErrInvalidParameter, fmt.Sprintf("%s must be an integer, got %v", key, raw))
	}
	if index < 0 || index >= n {
		if n == 0 {
			return 0, NewError(ErrNotFound, "No routes to select").
				WithGuidance("Call estimate_routes for this session first")
		}
		return 0, NewValidationError(ErrInvalidParameter,
			fmt.Sprintf("%s must be between 0 and %d, got %d", key, n-1, index))
	}

	return index, nil
}

// ParseZoom reads the preview zoom level, defaulting to preview.DefaultZoom.
func ParseZoom(req mcp.CallToolRequest) (int, error) {
	raw := mcp.ParseFloat64(req, ParamZoom, preview.DefaultZoom)
	zoom := int(raw)
	if raw != float64(zoom) {
		return 0, NewValidationError(ErrInvalidParameter, fmt.Sprintf("zoom must be an integer, got %v", raw))
	}
	if err := preview.ValidateZoom(zoom); err != nil {
		return 0, NewValidationError(ErrInvalidParameter, err.Error())
	}
	return zoom, nil
}

// ParseMapType reads the preview base layer, defaulting to standard.
func ParseMapType(req mcp.CallToolRequest) (preview.MapType, error) {
	m, err := preview.ParseMapType(mcp.ParseString(req, ParamMapType, ""))
	if err != nil {
		return "", NewValidationError(ErrInvalidParameter, err.Error()).
			WithSuggestions(string(preview.MapStandard), string(preview.MapSatellite))
	}
	return m, nil
}

// ParseSessionIDWithLog parses a session ID and logs any errors
func ParseSessionIDWithLog(req mcp.CallToolRequest, logger *slog.Logger) (string, error) {
	id, err := ParseSessionID(req)
	if err != nil {
		logger.Error("invalid session id", "error", err)
	}
	return id, err
}
