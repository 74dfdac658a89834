package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crmauth/internal/models"
	"crmauth/internal/storage"
)

// Create inserts a new account, translating unique-constraint violations on
// username/email into storage.ErrDuplicateAccount.
func (s *Storage) Create(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return storage.ErrDuplicateAccount
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetByIdentifier looks up an account by username OR email, loading the
// role/permission graph needed for claim snapshots.
func (s *Storage) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Roles.Permissions").
		Where("username = ? OR email = ?", identifier, identifier).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by identifier: %w", err)
	}
	return &user, nil
}

// GetByID looks up an account by primary key with roles and permissions loaded.
func (s *Storage) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Roles.Permissions").
		First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return &user, nil
}

// RecordFailure increments the failed-login counter under a row lock so two
// concurrent failed attempts cannot both read the same stale count. The
// lockout stamp is written in the same transaction as the increment.
func (s *Storage) RecordFailure(ctx context.Context, id uint, threshold int, lockFor time.Duration, now time.Time) (int, *time.Time, error) {
	var (
		attempts    int
		lockedUntil *time.Time
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrAccountNotFound
			}
			return err
		}

		attempts = user.FailedLoginAttempts + 1
		updates := map[string]any{"failed_login_attempts": attempts}
		if attempts >= threshold {
			until := now.Add(lockFor)
			lockedUntil = &until
			updates["locked_until"] = until
		}

		return tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("record failed attempt: %w", err)
	}
	return attempts, lockedUntil, nil
}

// RecordLogin resets the failed-login counter and stamps last_login.
func (s *Storage) RecordLogin(ctx context.Context, id uint, now time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"last_login":            now,
		}).Error
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored hash and stamps password_changed_at.
func (s *Storage) UpdatePassword(ctx context.Context, id uint, hashedPassword string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"hashed_password":     hashedPassword,
			"password_changed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrAccountNotFound
	}
	return nil
}
