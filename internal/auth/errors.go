package auth

import "errors"

var (
	// ErrAuthDisabled indicates no signing secret is configured.
	ErrAuthDisabled = errors.New("auth: disabled (no secret configured)")

	// ErrInvalidToken indicates a bearer token failed validation.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrMissingCredentials indicates a request carried no bearer token.
	ErrMissingCredentials = errors.New("auth: missing credentials")
)
