package models

import (
	"sort"
	"time"
)

// Role groups permissions so they can be assigned to users as a unit.
type Role struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	Description string    `gorm:"type:text"`
	IsActive    bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`

	Permissions []Permission `gorm:"many2many:role_permissions"`
}

// PermissionsFor flattens a role set into the sorted, de-duplicated list of
// permission codes it grants. Computed once per token issuance and embedded
// as a claim rather than re-derived per check.
func PermissionsFor(roles []Role) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	for _, role := range roles {
		for _, p := range role.Permissions {
			seen[p.Code] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
