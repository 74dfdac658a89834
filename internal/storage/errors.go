package storage

import "errors"

// Common storage errors.
var (
	// ErrAccountNotFound indicates that no account matched the lookup.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateAccount indicates a username or email collision on create.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrTokenNotFound indicates that no refresh token row matched the jti.
	ErrTokenNotFound = errors.New("refresh token not found")
)
