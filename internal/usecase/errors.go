package usecase

import "errors"

// Error taxonomy shared by all use cases. HTTP adapters map these to
// status codes; everything else wraps with fmt.Errorf("...: %w", ...).
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrUnavailable        = errors.New("unavailable")

	// ErrDuplicateIntent is returned by order repos when the unique
	// constraint on the payment intent id fires. Callers treat it as a
	// benign duplicate, never as a failure.
	ErrDuplicateIntent = errors.New("duplicate payment intent")
)
