package cli

import (
	"fmt"
	"robocomp/internal/common/security"
	"robocomp/internal/domain/model"
	"robocomp/internal/platform/config"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCmd(cfg func() *config.Config) *cobra.Command {
	var (
		email string
		role  string
		name  string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed identity token for local development",
		Long: `Token signs an HS256 token with JWT_SECRET carrying the same claims the
identity provider issues (email, name, role). The server provisions the user
on first use; an admin role claim is never honoured, use promote instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.IsValidRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			c := cfg()
			if ttl <= 0 {
				ttl = c.JWTExp
			}
			token, err := security.GenerateToken(security.NewTokenAuth(c.JWTKey), security.Claims{
				Email: strings.ToLower(strings.TrimSpace(email)),
				Name:  name,
				Role:  role,
			}, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address the token identifies (required)")
	cmd.Flags().StringVar(&role, "role", model.RoleParticipant, "Role claim")
	cmd.Flags().StringVar(&name, "name", "", "Display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_EXPIRATION_HOURS)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
