package postgres

import (
	"context"
	"fmt"

	"crmauth/internal/models"
)

// Record inserts an audit entry.
func (s *Storage) Record(ctx context.Context, entry *models.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}
