package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	token_adapter "property-import-service/internal/adapters/jwt"
	"property-import-service/internal/core/domain"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// newTokenCmd выпуск токена для локальной разработки; нужен только JWT_SECRET
func newTokenCmd() *cobra.Command {
	var (
		userID   string
		tenantID string
		email    string
		role     string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET environment variable is required")
			}

			svc, err := token_adapter.NewTokenService(secret)
			if err != nil {
				return err
			}
			token, err := svc.Issue(cmd.Context(), domain.Principal{
				UserID:   userID,
				TenantID: tenantID,
				Email:    email,
				Role:     role,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id (required)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&role, "role", domain.RoleAdmin, "User role")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
