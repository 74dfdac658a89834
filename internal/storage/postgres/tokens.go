package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"crmauth/internal/models"
	"crmauth/internal/storage"
)

// Save inserts the lifecycle record for a freshly issued refresh token.
func (s *Storage) Save(ctx context.Context, token *models.RefreshToken) error {
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// GetByJTI retrieves a refresh-token record by its unique token identifier.
func (s *Storage) GetByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.db.WithContext(ctx).Where("jti = ?", jti).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &token, nil
}

// MarkUsed stamps last_used_at on the record.
func (s *Storage) MarkUsed(ctx context.Context, jti string, now time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("jti = ?", jti).
		Update("last_used_at", now).Error
	if err != nil {
		return fmt.Errorf("mark refresh token used: %w", err)
	}
	return nil
}

// Revoke deactivates the record. The conditional update only touches rows
// that are still active, which makes repeated revocations no-ops; a jti with
// no row at all reports ErrTokenNotFound.
func (s *Storage) Revoke(ctx context.Context, jti, reason string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("jti = ? AND is_active = ?", jti, true).
		Updates(map[string]any{
			"is_active":      false,
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("revoke refresh token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).
			Model(&models.RefreshToken{}).
			Where("jti = ?", jti).
			Count(&count).Error; err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		if count == 0 {
			return storage.ErrTokenNotFound
		}
	}
	return nil
}

// RevokeAllForUser deactivates every active record owned by the user in one
// atomic update.
func (s *Storage) RevokeAllForUser(ctx context.Context, userID uint, reason string, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]any{
			"is_active":      false,
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PurgeExpired removes records whose expiry has passed.
func (s *Storage) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
