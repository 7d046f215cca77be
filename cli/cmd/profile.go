package cmd

import (
	"github.com/spf13/cobra"

	"github.com/techview-systems/leadpixel-stack/cli/internal/config"
	"github.com/techview-systems/leadpixel-stack/cli/pkg/output"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage connection profiles",
}

var profileSetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Create or update a profile and make it current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		token, _ := cmd.Flags().GetString("token")
		op, _ := cmd.Flags().GetString("operator")

		p := &config.Profile{URL: url, Token: token, OperatorID: op}
		if existing, ok := cfg.Profiles[args[0]]; ok {
			if url == "" {
				p.URL = existing.URL
			}
			if token == "" {
				p.Token = existing.Token
			}
			if op == "" {
				p.OperatorID = existing.OperatorID
			}
		}
		if p.URL == "" {
			p.URL = config.DefaultURL
		}
		if err := cfg.SaveProfile(args[0], p); err != nil {
			return err
		}
		output.Success("Profile '%s' saved (%s)", args[0], p.URL)
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := output.NewTable([]string{"", "Name", "URL", "Operator", "Token"})
		for name, p := range cfg.Profiles {
			current, token := "", "-"
			if name == cfg.CurrentProfile {
				current = "*"
			}
			if p.Token != "" {
				token = "set"
			}
			table.AddRow([]string{current, name, p.URL, p.OperatorID, token})
		}
		table.Render()
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveProfile(args[0]); err != nil {
			return err
		}
		output.Success("Profile '%s' removed", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd, profileShowCmd, profileRemoveCmd)

	profileSetCmd.Flags().String("url", "", "funnel service URL")
	profileSetCmd.Flags().String("token", "", "console bearer token")
}
