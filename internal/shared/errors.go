package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates input rejected by policy or storage constraints.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates a failed credential check.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers expired, malformed and mis-signed tokens alike.
	ErrInvalidToken = errors.New("invalid token")
)
