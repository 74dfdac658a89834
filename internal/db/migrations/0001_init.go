// Package migrations registers goose Go migrations for the auth schema.
// Each migration declares its own snapshot of the model structs so later
// model changes cannot silently rewrite history.
package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

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

	Roles []Role `gorm:"many2many:user_roles"`
}

type Role struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	Description string    `gorm:"type:text"`
	IsActive    bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`

	Permissions []Permission `gorm:"many2many:role_permissions"`
}

type Permission struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Code        string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	Name        string    `gorm:"type:varchar(100);not null"`
	Description string    `gorm:"type:text"`
	Resource    string    `gorm:"type:varchar(50);not null;index"`
	Action      string    `gorm:"type:varchar(50);not null"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type UserRole struct {
	UserID    uint      `gorm:"primaryKey"`
	RoleID    uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`

	User User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
	Role Role `gorm:"constraint:OnDelete:CASCADE;foreignKey:RoleID;references:ID"`
}

type RolePermission struct {
	RoleID       uint      `gorm:"primaryKey"`
	PermissionID uint      `gorm:"primaryKey"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`

	Role       Role       `gorm:"constraint:OnDelete:CASCADE;foreignKey:RoleID;references:ID"`
	Permission Permission `gorm:"constraint:OnDelete:CASCADE;foreignKey:PermissionID;references:ID"`
}

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

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.SetupJoinTable(&User{}, "Roles", &UserRole{}); err != nil {
		return err
	}
	if err := gormDB.SetupJoinTable(&Role{}, "Permissions", &RolePermission{}); err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&User{},
		&Role{},
		&Permission{},
		&UserRole{},
		&RolePermission{},
		&RefreshToken{},
		&AuditLog{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	if err := m.CreateConstraint(&RefreshToken{}, "User"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&AuditLog{}, "Actor"); err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&AuditLog{},
		&RefreshToken{},
		&RolePermission{},
		&UserRole{},
		&Permission{},
		&Role{},
		&User{},
	)
}
