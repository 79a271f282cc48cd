package service

import "errors"

var (
	// ErrRefreshTokenInvalid is returned when a refresh token is unknown or
	// has already been used.
	ErrRefreshTokenInvalid = errors.New("invalid_refresh_token")

	// ErrIncompleteIdentity rejects issuing tokens that validation would
	// never accept (blank client, user or subject).
	ErrIncompleteIdentity = errors.New("incomplete_identity")

	ErrMissingDependency = errors.New("service: missing dependency")
)
