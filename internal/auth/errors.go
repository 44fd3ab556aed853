// Package auth implements password hashing, session token issuance and the
// refresh token lifecycle.
package auth

import "errors"

var (
	// ErrIdentityNotFound is returned when a token names a login that is no longer provisioned.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrInvalidCredentials is returned for an unknown login or a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed covers bad encoding, bad signature, wrong algorithm and missing claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenTypeMismatch is returned when an access token is used as refresh token or vice versa.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrRefreshTokenNotFound is returned when a refresh token is not stored (already used or revoked).
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)

// IsTokenError reports whether err is one of the token validation failures
// that must be answered with 401.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenTypeMismatch) ||
		errors.Is(err, ErrRefreshTokenNotFound) ||
		errors.Is(err, ErrIdentityNotFound) ||
		errors.Is(err, ErrInvalidCredentials)
}
