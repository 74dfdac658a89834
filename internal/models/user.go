package models

import (
	"time"
)

// User is an account that can authenticate against the CRM.
type User struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement"`
	FirstName           string     `gorm:"type:varchar(50);not null"`
	LastName            string     `gorm:"type:varchar(50);not null"`
	Email               string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	Username            string     `gorm:"type:varchar(50);uniqueIndex;not null"`
	HashedPassword      string     `gorm:"type:varchar(255);not null"`
	IsActive            bool       `gorm:"not null;default:true"`
	IsVerified          bool       `gorm:"not null;default:false"`
	IsSuperuser         bool       `gorm:"not null;default:false"`
	LastLogin           *time.Time `gorm:"type:timestamptz"`
	PasswordChangedAt   *time.Time `gorm:"type:timestamptz"`
	FailedLoginAttempts int        `gorm:"not null;default:0"`
	LockedUntil         *time.Time `gorm:"type:timestamptz"`
	CreatedAt           time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	IsDeleted           bool       `gorm:"not null;default:false;index"`
	DeletedAt           *time.Time `gorm:"type:timestamptz;index"`

	Roles         []Role         `gorm:"many2many:user_roles"`
	RefreshTokens []RefreshToken `gorm:"constraint:OnDelete:CASCADE"`
}

// FullName joins the user's first and last name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Locked reports whether the account is inside a lockout window at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// Authenticatable reports whether the account may log in at all. Soft-deleted
// or deactivated accounts never authenticate regardless of other flags.
func (u *User) Authenticatable() bool {
	return u.IsActive && !u.IsDeleted
}

// RoleNames returns the names of the user's assigned roles.
func (u *User) RoleNames() []string {
	if len(u.Roles) == 0 {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}
