package models

import (
	"time"
)

// RefreshToken tracks the lifecycle of one issued refresh token. Rows are
// only ever flipped from active to revoked, never back.
type RefreshToken struct {
	ID            uint       `gorm:"primaryKey;autoIncrement"`
	Token         string     `gorm:"type:text;uniqueIndex;not null"`
	JTI           string     `gorm:"column:jti;type:varchar(36);uniqueIndex;not null"`
	UserID        uint       `gorm:"not null;index"`
	UserAgent     string     `gorm:"type:varchar(255)"`
	IPAddress     string     `gorm:"type:varchar(45)"`
	IsActive      bool       `gorm:"not null;default:true"`
	RevokedAt     *time.Time `gorm:"type:timestamptz"`
	RevokedReason string     `gorm:"type:varchar(255)"`
	CreatedAt     time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	ExpiresAt     time.Time  `gorm:"type:timestamptz;not null"`
	LastUsedAt    *time.Time `gorm:"type:timestamptz"`

	User User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
}

// Expired reports whether the token's own expiry has passed at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Usable reports whether the token may still be exchanged for access tokens:
// it must be active and not expired.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.IsActive && !t.Expired(now)
}
