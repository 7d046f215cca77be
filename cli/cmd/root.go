package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/techview-systems/leadpixel-stack/cli/internal/client"
	"github.com/techview-systems/leadpixel-stack/cli/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "leadctl",
	Short: "LeadPixel funnel CLI",
	Long: `leadctl is the operator console for the LeadPixel funnel service.

Configure an operator's pixel and Conversions API credentials, work the
captured leads, inspect undelivered server events, mint console tokens
and walk simulated visitors through a funnel.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.leadctl/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json")
	rootCmd.PersistentFlags().String("operator", "", "operator id (default: the profile's operator)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

func currentProfile(cmd *cobra.Command) (*config.Profile, error) {
	name, _ := cmd.Flags().GetString("profile")
	return cfg.GetProfile(name)
}

// apiClient builds a client for the selected profile.
func apiClient(cmd *cobra.Command) (*client.Client, *config.Profile, error) {
	p, err := currentProfile(cmd)
	if err != nil {
		return nil, nil, err
	}
	return client.New(p.URL, p.Token), p, nil
}

// operatorID resolves --operator, then the profile's operator.
func operatorID(cmd *cobra.Command, p *config.Profile) (string, error) {
	if op, _ := cmd.Flags().GetString("operator"); op != "" {
		return op, nil
	}
	if p != nil && p.OperatorID != "" {
		return p.OperatorID, nil
	}
	return "", fmt.Errorf("operator id is required (--operator or profile operator_id)")
}

func jsonOutput(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}
