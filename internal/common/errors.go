// Package common defines shared constants and sentinel errors used across
// the Brainy API layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrorValidation = errors.New("validation error")

	// Credential errors. ErrInvalidCredentials is returned both for unknown
	// identifiers and for wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")

	// Refresh and reset token lifecycle errors.
	ErrInvalidOrExpired = errors.New("token invalid or expired")

	// Access token verification errors. The first four are diagnostic only;
	// anything outside the auth package sees ErrUnauthenticated.
	ErrMalformedToken       = errors.New("malformed token")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrInvalidSignature     = errors.New("invalid token signature")
	ErrTokenExpired         = errors.New("token expired")
	ErrUnauthenticated      = errors.New("unauthenticated")

	// Configuration errors.
	ErrMissingSecret = errors.New("signing secret is not configured")
)
