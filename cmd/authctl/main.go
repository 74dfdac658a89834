// authctl is the operator CLI for the CRM auth service: it provisions
// accounts and performs bulk token revocations without going through the
// HTTP surface.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"crmauth/internal/auth"
	"crmauth/internal/config"
	"crmauth/internal/db"
	"crmauth/internal/storage/postgres"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Operator utility for the CRM auth service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newUsersCommand())
	cmd.AddCommand(newTokensCommand())
	return cmd
}

func newService(ctx context.Context) (*auth.Service, func(), error) {
	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close(database) }

	store := postgres.New(database)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	issuer := auth.NewTokenIssuer(cfg.JWTSigningKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	svc := auth.NewService(store, store, store, nil, hasher, issuer, auth.Config{
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutDuration:  cfg.LockoutDuration,
	}, zerolog.New(os.Stderr))

	return svc, cleanup, nil
}

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Account provisioning operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newUsersCreateCommand())
	return cmd
}

func newUsersCreateCommand() *cobra.Command {
	var (
		username  string
		email     string
		password  string
		firstName string
		lastName  string
		superuser bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			svc, cleanup, err := newService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			user, err := svc.CreateAccount(ctx, auth.CreateAccountParams{
				Username:    username,
				Email:       email,
				Password:    password,
				FirstName:   firstName,
				LastName:    lastName,
				IsActive:    true,
				IsVerified:  true,
				IsSuperuser: superuser,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created account %d (%s)\n", user.ID, user.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "unique username")
	cmd.Flags().StringVar(&email, "email", "", "unique email address")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "grant superuser privileges")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Refresh-token lifecycle operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newTokensRevokeAllCommand())
	return cmd
}

func newTokensRevokeAllCommand() *cobra.Command {
	var (
		userID uint
		reason string
	)

	cmd := &cobra.Command{
		Use:   "revoke-all",
		Short: "Revoke every active refresh token of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			svc, cleanup, err := newService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			count, err := svc.RevokeAll(ctx, userID, reason)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d token(s)\n", count)
			return nil
		},
	}

	cmd.Flags().UintVar(&userID, "user-id", 0, "account id")
	cmd.Flags().StringVar(&reason, "reason", "security reset", "revocation reason")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}
