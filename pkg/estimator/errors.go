package estimator

import (
	"context"
	"errors"
)

// Errors returned by Estimate.
var (
	// ErrInvalidInput means one or both addresses were blank.
	ErrInvalidInput = errors.New("both addresses are required")

	// ErrDuplicateAddress means both addresses name the same place,
	// compared case-insensitively after trimming.
	ErrDuplicateAddress = errors.New("starting and destination addresses cannot be the same")

	// ErrTransientService is the simulated upstream failure. Retrying the
	// same request may succeed.
	ErrTransientService = errors.New("route service temporarily unavailable")
)

// Estimate outcomes reported through Hooks.OnEstimate.
const (
	OutcomeSuccess          = "success"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeDuplicateAddress = "duplicate_address"
	OutcomeTransientFailure = "transient_failure"
	OutcomeCanceled         = "canceled"
	OutcomeProviderError    = "provider_error"
)

// Outcome classifies an Estimate error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, ErrDuplicateAddress):
		return OutcomeDuplicateAddress
	case errors.Is(err, ErrTransientService):
		return OutcomeTransientFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeProviderError
	}
}

// IsRetryable reports whether the caller may retry the identical request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientService)
}
