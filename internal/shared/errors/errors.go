package errors

import "errors"

// Domain errors
var (
	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")

	// Admission errors
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrUnknownOperation  = errors.New("unknown rate-limited operation")
	ErrUnsupportedMethod = errors.New("method not allowed")
)
