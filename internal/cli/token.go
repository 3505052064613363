package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		email string
		name  string
		admin bool
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token signed with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfigOnly()
			if err != nil {
				return err
			}
			if args[0] == "" {
				return errors.New("user id must not be empty")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			role := domain.RoleMember
			if admin {
				role = domain.RoleAdmin
			}
			now := time.Now()
			token, err := auth.NewAdapter(cfg.Auth.JWTSecret, cfg.Auth.Issuer).GenerateToken(&domain.TokenClaims{
				UserID:    args[0],
				Email:     email,
				Name:      name,
				Role:      role,
				IssuedAt:  now.Unix(),
				ExpiresAt: now.Add(ttl).Unix(),
			})
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().BoolVar(&admin, "admin", false, "issue an admin token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	return cmd
}
