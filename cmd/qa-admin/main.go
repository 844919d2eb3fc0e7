package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/qa-reports-api/internal/models"
	"github.com/noah-isme/qa-reports-api/internal/service"
	"github.com/noah-isme/qa-reports-api/pkg/config"
	"github.com/noah-isme/qa-reports-api/pkg/logger"
	"github.com/noah-isme/qa-reports-api/pkg/storage"
)

func main() {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "qa-admin",
		Short:         "Operator tooling for the QA reports API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			return nil
		},
	}

	rootCmd.AddCommand(tokenCommand(&cfg), cleanupCommand(&cfg))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func tokenCommand(cfg **config.Config) *cobra.Command {
	var (
		user models.User
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			user.Role = models.UserRole(strings.ToUpper(role))
			if !user.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			auth := service.NewAuthService(nil, service.AuthConfig{
				AccessTokenSecret: (*cfg).JWT.Secret,
				AccessTokenExpiry: ttl,
				Issuer:            (*cfg).JWT.Issuer,
				Audience:          (*cfg).JWT.Audience,
			})
			token, expires, err := auth.IssueToken(&user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&user.ID, "user", "", "User id (token subject)")
	cmd.Flags().StringVar(&user.Email, "email", "", "Email claim")
	cmd.Flags().StringVar(&user.FullName, "name", "", "Display name claim")
	cmd.Flags().StringVar(&role, "role", string(models.RoleQAOfficer), "SUPERADMIN, ADMIN, REGIONAL_DIRECTOR, QA_OFFICER or PROGRAM_MANAGER")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func cleanupCommand(cfg **config.Config) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove abandoned temporary uploads once",
		RunE: func(cmd *cobra.Command, args []string) error {
			logr, err := logger.New(*cfg)
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			temp, err := storage.NewLocalStorage((*cfg).Attachments.TempDir)
			if err != nil {
				return err
			}
			if maxAge <= 0 {
				maxAge = (*cfg).Cleanup.MaxAge
			}
			sweeper := service.NewCleanupService(nil, temp, logr, service.CleanupConfig{MaxAge: maxAge})
			removed, err := sweeper.RunOnce(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s)\n", len(removed))
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Remove files older than this (defaults to CLEANUP_MAX_AGE)")
	return cmd
}
