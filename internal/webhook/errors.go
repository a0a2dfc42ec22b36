package webhook

import "errors"

// Authentication failures. Callers only ever see a generic 401.
var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNoSecret         = errors.New("webhook client secret not configured")
)

// ErrShuttingDown is returned by Submit once the dispatcher is closing.
var ErrShuttingDown = errors.New("dispatcher is shutting down")
