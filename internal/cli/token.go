package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

func newTokenCommand() *cobra.Command {
	var (
		staffID string
		role    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a staff bearer token",
		Long:  `Sign a staff token with AUTH_JWT_SECRET. The role claim is informational; the API reloads the role from staff_members.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tokens.GenerateStaffToken(staffID, domain.StaffRole(role))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&staffID, "staff", "", "staff member id (uuid)")
	cmd.Flags().StringVar(&role, "role", string(domain.StaffRoleAgent), "role claim")
	_ = cmd.MarkFlagRequired("staff")
	return cmd
}
