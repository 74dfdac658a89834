package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost:5432/crm?sslmode=disable")
	t.Setenv("JWT_SIGNING_KEY", "test-secret")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 5, cfg.LockoutThreshold)
	assert.Equal(t, 30*time.Minute, cfg.LockoutDuration)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 10, cfg.LoginRatePerMinute)
	assert.Equal(t, time.Hour, cfg.TokenPurgeInterval)
	assert.True(t, cfg.SeedBaseline)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost:5432/crm?sslmode=disable")
	t.Setenv("JWT_SIGNING_KEY", "test-secret")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://crm.example.com,https://admin.example.com")
	t.Setenv("SEED_BASELINE", "false")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 3, cfg.LockoutThreshold)
	assert.Equal(t, []string{"https://crm.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.False(t, cfg.SeedBaseline)
}

func TestLoadRequiresSecrets(t *testing.T) {
	// t.Setenv registers restoration; Unsetenv makes the variable truly
	// absent rather than empty.
	for _, key := range []string{"DB_DSN", "JWT_SIGNING_KEY"} {
		t.Setenv(key, "placeholder")
		require.NoError(t, os.Unsetenv(key))
	}

	_, err := Load(context.Background())
	assert.Error(t, err)
}
