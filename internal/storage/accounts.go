package storage

import (
	"context"
	"time"

	"crmauth/internal/models"
)

// AccountStore defines persistence for user accounts.
type AccountStore interface {
	// Create inserts a new account.
	// Returns ErrDuplicateAccount if the username or email is taken.
	Create(ctx context.Context, user *models.User) error

	// GetByIdentifier retrieves an account whose username OR email equals
	// identifier (case-sensitive, as stored), with roles and their
	// permissions loaded. Returns ErrAccountNotFound if nothing matches.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)

	// GetByID retrieves an account by primary key with roles and their
	// permissions loaded. Returns ErrAccountNotFound if absent.
	GetByID(ctx context.Context, id uint) (*models.User, error)

	// RecordFailure atomically increments the failed-login counter and, once
	// it reaches threshold, stamps locked_until = now + lockFor. The row is
	// locked for the duration of the update so concurrent failures cannot
	// lose increments. Returns the new counter value and the lockout expiry,
	// if one was set.
	RecordFailure(ctx context.Context, id uint, threshold int, lockFor time.Duration, now time.Time) (int, *time.Time, error)

	// RecordLogin resets the failed-login counter and stamps last_login.
	RecordLogin(ctx context.Context, id uint, now time.Time) error

	// UpdatePassword replaces the stored hash and stamps password_changed_at.
	UpdatePassword(ctx context.Context, id uint, hashedPassword string, now time.Time) error
}
