package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/techview-systems/leadpixel-stack/cli/pkg/output"
	"github.com/techview-systems/leadpixel-stack/funnel/pkg/tokens"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Console token management",
}

var tokenMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Sign a console token with the service's JWT secret",
	Long: `Sign a console token with the service's JWT secret.

The secret is read from --secret or FUNNEL_SECURITY_JWT_SECRET. SELLER
tokens are scoped to --operator; ADMIN tokens may manage every operator.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		if secret == "" {
			secret = os.Getenv("FUNNEL_SECURITY_JWT_SECRET")
		}
		if secret == "" {
			return fmt.Errorf("jwt secret is required (--secret or FUNNEL_SECURITY_JWT_SECRET)")
		}
		role, _ := cmd.Flags().GetString("role")
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		op, _ := cmd.Flags().GetString("operator")
		save, _ := cmd.Flags().GetBool("save")

		token, err := tokens.NewTokenGenerator(secret, ttl).Generate(subject, role, op)
		if err != nil {
			return fmt.Errorf("failed to mint token: %w", err)
		}

		if save {
			name, _ := cmd.Flags().GetString("profile")
			if name == "" {
				name = cfg.CurrentProfile
			}
			p, err := cfg.GetProfile(name)
			if err != nil {
				return err
			}
			p.Token = token
			if op != "" {
				p.OperatorID = op
			}
			if err := cfg.SaveProfile(name, p); err != nil {
				output.Warn("Failed to save token to profile: %v", err)
			} else {
				output.Info("Token saved to profile '%s'", name)
			}
		}

		output.Success("%s token for %s (expires %s)", role, subject, time.Now().Add(ttl).Format(time.RFC3339))
		fmt.Fprintln(output.Stdout, token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenMintCmd)

	tokenMintCmd.Flags().String("secret", "", "JWT secret (default: $FUNNEL_SECURITY_JWT_SECRET)")
	tokenMintCmd.Flags().String("role", tokens.RoleSeller, "role: ADMIN or SELLER")
	tokenMintCmd.Flags().String("subject", "leadctl", "token subject")
	tokenMintCmd.Flags().Duration("ttl", tokens.DefaultTTL, "token lifetime")
	tokenMintCmd.Flags().Bool("save", false, "store the token in the current profile")
}
