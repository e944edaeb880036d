// Package common defines shared constants, sentinel errors and small helpers
// used across the workflow server layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Store availability. Returned by every data-dependent operation while
	// the bootstrapper could not reach the database.
	ErrorStoreUnavailable = errors.New("store unavailable")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Session token errors. Both surface to clients as ErrorUnauthorized.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Password reset token lifecycle.
	ErrInvalidResetToken = errors.New("invalid reset token")
	ErrResetTokenExpired = errors.New("reset token expired")
)

// IsAuthenticationError reports whether err belongs to the
// AuthenticationFailed kind (missing, invalid or expired credentials).
func IsAuthenticationError(err error) bool {
	return errors.Is(err, ErrorUnauthorized) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired)
}
