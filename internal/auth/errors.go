package auth

import "errors"

// Sentinel errors for context building.
var (
	// ErrNoAuthorizationHeader indicates that no Authorization header was present.
	ErrNoAuthorizationHeader = errors.New("no authorization header")

	// ErrMalformedAuthorizationHeader indicates a header that does not carry a bearer token.
	ErrMalformedAuthorizationHeader = errors.New("malformed authorization header")

	// ErrInvalidToken indicates that token verification failed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrKeyNotFound indicates that no published key matches the token's key ID.
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrJWKSUnavailable indicates that the issuer's key material could not be fetched.
	ErrJWKSUnavailable = errors.New("jwks unavailable")
)
