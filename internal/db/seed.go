package db

import (
	"context"
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crmauth/internal/models"
)

//go:embed seed/catalog.yaml
var seedFS embed.FS

type seedPermission struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Resource    string `yaml:"resource"`
	Action      string `yaml:"action"`
	Description string `yaml:"description"`
}

type seedRole struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type seedCatalog struct {
	Permissions []seedPermission `yaml:"permissions"`
	Roles       []seedRole       `yaml:"roles"`
}

func loadSeedCatalog() (*seedCatalog, error) {
	raw, err := seedFS.ReadFile("seed/catalog.yaml")
	if err != nil {
		return nil, err
	}

	var catalog seedCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}
	return &catalog, nil
}

// Seed inserts the baseline permission and role catalog. Inserts are
// idempotent: existing rows and grants are left untouched, so the catalog
// can be re-applied on every startup.
func Seed(ctx context.Context, database *gorm.DB) error {
	catalog, err := loadSeedCatalog()
	if err != nil {
		return err
	}

	for _, p := range catalog.Permissions {
		perm := models.Permission{
			Code:        p.Code,
			Name:        p.Name,
			Resource:    p.Resource,
			Action:      p.Action,
			Description: p.Description,
		}
		if err := database.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&perm).Error; err != nil {
			return fmt.Errorf("seed permission %s: %w", p.Code, err)
		}
	}

	var allPerms []models.Permission
	if err := database.WithContext(ctx).Find(&allPerms).Error; err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	byCode := make(map[string]models.Permission, len(allPerms))
	for _, p := range allPerms {
		byCode[p.Code] = p
	}

	for _, r := range catalog.Roles {
		role := models.Role{Name: r.Name, Description: r.Description, IsActive: true}
		if err := database.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}
		if role.ID == 0 {
			if err := database.WithContext(ctx).
				Where("name = ?", r.Name).
				First(&role).Error; err != nil {
				return fmt.Errorf("load role %s: %w", r.Name, err)
			}
		}

		codes := r.Permissions
		if len(codes) == 1 && codes[0] == "*" {
			codes = make([]string, 0, len(byCode))
			for code := range byCode {
				codes = append(codes, code)
			}
		}

		for _, code := range codes {
			perm, ok := byCode[code]
			if !ok {
				return fmt.Errorf("role %s references unknown permission %s", r.Name, code)
			}
			grant := models.RolePermission{RoleID: role.ID, PermissionID: perm.ID}
			if err := database.WithContext(ctx).
				Clauses(clause.OnConflict{DoNothing: true}).
				Create(&grant).Error; err != nil {
				return fmt.Errorf("grant %s to %s: %w", code, r.Name, err)
			}
		}
	}

	return nil
}
