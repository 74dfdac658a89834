package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input beyond 72 bytes; truncate up front so Hash and Verify
// agree on what was compared.
const maxPasswordBytes = 72

// PasswordHasher hashes and verifies passwords with bcrypt. The salt is
// embedded in the produced hash, so hashing the same password twice yields
// different strings that both verify.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a PasswordHasher with the given bcrypt cost.
// A cost outside bcrypt's valid range falls back to the library default.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return PasswordHasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(truncate(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches the stored hash. It returns false,
// never an error, on malformed hashes.
func (h PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(password)) == nil
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
