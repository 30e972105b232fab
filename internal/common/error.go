// Package common defines shared constants and sentinel errors used across
// the journalkeeper layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors. ErrorNotFound also covers rows that exist
	// but belong to another user; the two cases are indistinguishable to
	// the caller on purpose.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal        = errors.New("internal error")
	ErrorUnauthorized    = errors.New("unauthorized")
	ErrorUnauthenticated = errors.New("no authenticated user")

	// Validation errors (rejected before any I/O happens).
	ErrorValidation = errors.New("validation error")

	ErrorAlreadyExists = errors.New("already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
