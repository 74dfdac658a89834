package storage

import (
	"context"
	"time"

	"crmauth/internal/models"
)

// TokenStore defines persistence for refresh-token lifecycle records.
type TokenStore interface {
	// Save inserts the record for a freshly issued refresh token.
	Save(ctx context.Context, token *models.RefreshToken) error

	// GetByJTI retrieves a record by its unique token identifier.
	// Returns ErrTokenNotFound if absent.
	GetByJTI(ctx context.Context, jti string) (*models.RefreshToken, error)

	// MarkUsed stamps last_used_at on the record.
	MarkUsed(ctx context.Context, jti string, now time.Time) error

	// Revoke deactivates the record and stamps revoked_at/revoked_reason.
	// Revoking an already-inactive record is a no-op success; a missing
	// record returns ErrTokenNotFound.
	Revoke(ctx context.Context, jti, reason string, now time.Time) error

	// RevokeAllForUser deactivates every active record owned by the user in
	// one atomic update and returns the number of rows revoked.
	RevokeAllForUser(ctx context.Context, userID uint, reason string, now time.Time) (int64, error)

	// PurgeExpired deletes records whose expiry has passed and returns the
	// number of rows removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditStore records authentication and administrative events.
type AuditStore interface {
	Record(ctx context.Context, entry *models.AuditLog) error
}
