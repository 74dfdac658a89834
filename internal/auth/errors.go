package auth

import "errors"

var (
	// ErrInvalidCredentials is the single opaque failure returned for any
	// unauthenticatable login: unknown identifier, wrong password, locked,
	// deactivated, or soft-deleted account. Callers must not be able to
	// tell which.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenRejected is the single opaque failure for any token
	// verification problem: bad signature, expired, wrong type, revoked,
	// or unknown jti.
	ErrTokenRejected = errors.New("token rejected")

	// ErrAccountConflict indicates an account create collided on username
	// or email. Surfaced distinctly since it is caller input validation,
	// not security-sensitive.
	ErrAccountConflict = errors.New("username or email already registered")
)
