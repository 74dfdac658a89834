package models

import (
	"reflect"
	"testing"
	"time"
)

func TestPermissionsFor(t *testing.T) {
	tests := []struct {
		name  string
		roles []Role
		want  []string
	}{
		{
			name:  "no roles",
			roles: nil,
			want:  nil,
		},
		{
			name:  "role without permissions",
			roles: []Role{{Name: "Viewer"}},
			want:  nil,
		},
		{
			name: "single role sorted",
			roles: []Role{{
				Name: "Vendedor",
				Permissions: []Permission{
					{Code: "lead:view"},
					{Code: "lead:create"},
				},
			}},
			want: []string{"lead:create", "lead:view"},
		},
		{
			name: "overlapping roles deduplicated",
			roles: []Role{
				{
					Name: "Vendedor",
					Permissions: []Permission{
						{Code: "lead:view"},
						{Code: "lead:create"},
					},
				},
				{
					Name: "Manager",
					Permissions: []Permission{
						{Code: "lead:view"},
						{Code: "user:view"},
					},
				},
			},
			want: []string{"lead:create", "lead:view", "user:view"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PermissionsFor(tt.roles)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PermissionsFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermissionCode(t *testing.T) {
	if got := PermissionCode("lead", "convert"); got != "lead:convert" {
		t.Errorf("PermissionCode() = %q, want %q", got, "lead:convert")
	}
}

func TestUserLocked(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		user User
		want bool
	}{
		{name: "never locked", user: User{}, want: false},
		{name: "lock expired", user: User{LockedUntil: &past}, want: false},
		{name: "lock active", user: User{LockedUntil: &future}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.Locked(now); got != tt.want {
				t.Errorf("Locked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserAuthenticatable(t *testing.T) {
	tests := []struct {
		name string
		user User
		want bool
	}{
		{name: "active", user: User{IsActive: true}, want: true},
		{name: "deactivated", user: User{IsActive: false}, want: false},
		{name: "soft deleted", user: User{IsActive: true, IsDeleted: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.Authenticatable(); got != tt.want {
				t.Errorf("Authenticatable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefreshTokenUsable(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token RefreshToken
		want  bool
	}{
		{name: "active and unexpired", token: RefreshToken{IsActive: true, ExpiresAt: now.Add(time.Hour)}, want: true},
		{name: "revoked", token: RefreshToken{IsActive: false, ExpiresAt: now.Add(time.Hour)}, want: false},
		{name: "expired", token: RefreshToken{IsActive: true, ExpiresAt: now.Add(-time.Second)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Usable(now); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}
