package models

import (
	"time"
)

// Permission is a single grantable capability identified by a globally
// unique "resource:action" code.
type Permission struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Code        string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	Name        string    `gorm:"type:varchar(100);not null"`
	Description string    `gorm:"type:text"`
	Resource    string    `gorm:"type:varchar(50);not null;index"`
	Action      string    `gorm:"type:varchar(50);not null"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`

	Roles []Role `gorm:"many2many:role_permissions"`
}

// PermissionCode builds the canonical "resource:action" code.
func PermissionCode(resource, action string) string {
	return resource + ":" + action
}
