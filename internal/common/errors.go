// Package common defines shared sentinel errors used across the server
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrInternal   = errors.New("internal error")
	ErrValidation = errors.New("validation error")

	// Auth errors. ErrUnauthorized covers every authentication failure
	// (missing/invalid/expired session, bad credentials) so the boundary
	// never leaks which check failed. ErrForbidden is a role mismatch on
	// an authenticated identity and is reported separately.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Token errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
