package models

import (
	"time"
)

// UserRole ties a user to a role with assignment metadata.
type UserRole struct {
	UserID    uint      `gorm:"primaryKey"`
	RoleID    uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`

	User User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
	Role Role `gorm:"constraint:OnDelete:CASCADE;foreignKey:RoleID;references:ID"`
}

// RolePermission ties a role to a permission it grants.
type RolePermission struct {
	RoleID       uint      `gorm:"primaryKey"`
	PermissionID uint      `gorm:"primaryKey"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`

	Role       Role       `gorm:"constraint:OnDelete:CASCADE;foreignKey:RoleID;references:ID"`
	Permission Permission `gorm:"constraint:OnDelete:CASCADE;foreignKey:PermissionID;references:ID"`
}
