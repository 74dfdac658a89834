package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog captures notable authentication and administrative events.
type AuditLog struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	ActorID    *uint          `gorm:"index"`
	Action     string         `gorm:"type:text;not null"`
	TargetType string         `gorm:"type:text;not null"`
	TargetID   *string        `gorm:"type:text"`
	Metadata   datatypes.JSON `gorm:"type:jsonb;default:'{}'::jsonb"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`

	Actor *User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;foreignKey:ActorID;references:ID"`
}
