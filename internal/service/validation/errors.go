package validation

import "errors"

// Sentinel errors for the validation service layer.
var (
	ErrEmailRequired = errors.New("email is required")
	ErrBatchEmpty    = errors.New("at least one email is required")
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)
