// Package core provides shared utilities for the ecoroute MCP tools.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecoroute/pkg/estimator"
)

// ErrorCode defines standard error codes for MCP tools
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrDuplicateAddress ErrorCode = "DUPLICATE_ADDRESS"
	ErrEmptyParameter   ErrorCode = "EMPTY_PARAMETER"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrRequestCanceled    ErrorCode = "REQUEST_CANCELED"

	// Data errors
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Messages shown to users for estimator failures.
const (
	MsgAddressesRequired  = "Both addresses are required"
	MsgDuplicateAddress   = "Starting and destination addresses cannot be the same"
	MsgServiceUnavailable = "Route service is temporarily unavailable, please try again"
	MsgRequestCanceled    = "Route estimate was canceled"
	MsgInternalError      = "Route estimate failed"
)

// MCPError represents a detailed error structure for MCP tool responses
type MCPError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Query       string   `json:"query,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
	Retryable   bool     `json:"retryable,omitempty"`
}

// Error implements the error interface
func (e MCPError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new MCPError with the given code and message
func NewError(code ErrorCode, message string) *MCPError {
	return &MCPError{
		Code:    string(code),
		Message: message,
	}
}

// WithQuery adds query information to the error
func (e *MCPError) WithQuery(query string) *MCPError {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *MCPError) WithGuidance(guidance string) *MCPError {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *MCPError) WithSuggestions(suggestions ...string) *MCPError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// ToMCPResult converts the error to an MCP tool result
func (e *MCPError) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}

	return mcp.NewToolResultError(string(errorJSON))
}

// FromEstimateError maps an estimator failure to the error shown to the
// caller. The message is meant to be surfaced verbatim. Only transient
// failures are marked retryable.
func FromEstimateError(err error) *MCPError {
	e := fromEstimateError(err)
	e.Retryable = estimator.IsRetryable(err)
	return e
}

func fromEstimateError(err error) *MCPError {
	switch {
	case errors.Is(err, estimator.ErrInvalidInput):
		return NewError(ErrInvalidInput, MsgAddressesRequired).
			WithGuidance("Provide both a starting address and a destination")
	case errors.Is(err, estimator.ErrDuplicateAddress):
		return NewError(ErrDuplicateAddress, MsgDuplicateAddress).
			WithGuidance("Choose a destination that differs from the starting address")
	case errors.Is(err, estimator.ErrTransientService):
		return NewError(ErrServiceUnavailable, MsgServiceUnavailable).
			WithGuidance("This failure is temporary. Retry the same request")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrRequestCanceled, MsgRequestCanceled)
	default:
		return NewError(ErrInternalError, MsgInternalError).
			WithGuidance("Check the route fixture configuration")
	}
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *MCPError {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}

// SessionNotFound is returned for unknown or expired session IDs.
func SessionNotFound(id string) *MCPError {
	return NewError(ErrNotFound, "Session not found").
		WithQuery(id).
		WithGuidance("Sessions expire after inactivity. Call estimate_routes without session_id to start a new one")
}
