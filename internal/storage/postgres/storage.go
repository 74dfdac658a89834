// Package postgres implements the storage interfaces on a GORM-backed
// PostgreSQL database.
package postgres

import (
	"gorm.io/gorm"
)

// Storage implements storage.AccountStore, storage.TokenStore, and
// storage.AuditStore on one GORM handle.
type Storage struct {
	db *gorm.DB
}

// New creates a Storage using the provided GORM handle.
func New(db *gorm.DB) *Storage {
	return &Storage{db: db}
}
