package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"crmauth/internal/auth"
	"crmauth/internal/config"
	"crmauth/internal/db"
	"crmauth/internal/events"
	"crmauth/internal/handlers"
	"crmauth/internal/storage/postgres"
	"crmauth/internal/telemetry"
	"crmauth/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	shutdownTracing, traceMiddleware, err := telemetry.Init(ctx, version.Name, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	if err := db.Migrate(ctx, cfg.DBDSN); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if cfg.SeedBaseline {
		if err := db.Seed(ctx, database); err != nil {
			log.Fatal().Err(err).Msg("seed baseline catalog")
		}
	}

	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewPublisher(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer publisher.Close()
	}

	store := postgres.New(database)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	issuer := auth.NewTokenIssuer(cfg.JWTSigningKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// A nil *events.Publisher inside a non-nil interface would dodge the
	// service's nil checks.
	var pub auth.Publisher
	if publisher != nil {
		pub = publisher
	}

	svc := auth.NewService(store, store, store, pub, hasher, issuer, auth.Config{
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutDuration:  cfg.LockoutDuration,
	}, log.Logger)

	go purgeExpiredTokens(ctx, svc, cfg.TokenPurgeInterval)

	router := handlers.Router(handlers.RouterOptions{
		Service:            svc,
		Accounts:           store,
		Logger:             log.Logger,
		AllowedOrigins:     cfg.AllowedOrigins,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		Ready: func(ctx context.Context) error {
			return ping(ctx, database)
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           traceMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("version", version.Version).Msg("starting crm-auth-api")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}

func purgeExpiredTokens(ctx context.Context, svc *auth.Service, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := svc.PurgeExpiredTokens(ctx)
			if err != nil {
				log.Error().Err(err).Msg("purge expired tokens")
				continue
			}
			if count > 0 {
				log.Info().Int64("purged", count).Msg("purged expired refresh tokens")
			}
		}
	}
}

func ping(ctx context.Context, database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
