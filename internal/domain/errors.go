package domain

import "errors"

// Error kinds per the engine's error-handling design. Each is a sentinel
// wrapped with context at the boundary that raises it, so callers can
// errors.Is against the sentinel regardless of the wrapping message.
var (
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrDeterministicSafety   = errors.New("deterministic safety error")
	ErrRiskRejected          = errors.New("risk rejected")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrIdempotencyConflict   = errors.New("idempotency conflict")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrVendorUnavailable     = errors.New("vendor unavailable")
)
