package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the auth service. It is constructed
// once at startup and passed down explicitly; nothing reads it ambiently.
type Config struct {
	Addr               string        `env:"ADDR,default=:8080"`
	DBDSN              string        `env:"DB_DSN,required"`
	JWTSigningKey      string        `env:"JWT_SIGNING_KEY,required"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL,default=30m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL,default=168h"`
	LockoutThreshold   int           `env:"LOCKOUT_THRESHOLD,default=5"`
	LockoutDuration    time.Duration `env:"LOCKOUT_DURATION,default=30m"`
	BcryptCost         int           `env:"BCRYPT_COST,default=10"`
	NATSURL            string        `env:"NATS_URL"`
	OTLPEndpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	LoginRatePerMinute int           `env:"LOGIN_RATE_PER_MINUTE,default=10"`
	TokenPurgeInterval time.Duration `env:"TOKEN_PURGE_INTERVAL,default=1h"`
	SeedBaseline       bool          `env:"SEED_BASELINE,default=true"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
