package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/techview-systems/leadpixel-stack/cli/internal/client"
	"github.com/techview-systems/leadpixel-stack/cli/pkg/output"
)

var trackingCmd = &cobra.Command{
	Use:   "tracking",
	Short: "Operator pixel and Conversions API configuration",
}

var trackingGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show an operator's tracking configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := apiClient(cmd)
		if err != nil {
			return err
		}
		op, err := operatorID(cmd, p)
		if err != nil {
			return err
		}
		t, err := c.GetTracking(op)
		if err != nil {
			return fmt.Errorf("failed to get tracking configuration: %w", err)
		}
		if jsonOutput(cmd) {
			return output.JSON(t)
		}
		printTracking(t)
		return nil
	},
}

func printTracking(t *client.Tracking) {
	output.Info("Operator:     %s", t.OperatorID)
	output.Info("Display name: %s", t.DisplayName)
	output.Info("Pixel ID:     %s", t.PixelID)
	output.Info("Access token: %v", t.HasAccessToken)
	if t.Active {
		output.Success("Server events active")
	} else {
		output.Warn("Server events inactive: pixel id and access token are both required")
	}
	table := output.NewTable([]string{"Plan", "Name", "Price", "Screens"})
	for _, pl := range t.Plans {
		table.AddRow([]string{pl.ID, pl.Name, fmt.Sprintf("%.2f", pl.Price), fmt.Sprintf("%d", pl.Screens)})
	}
	table.Render()
}

var trackingSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or replace an operator's tracking configuration",
	Long: `Create or replace an operator's tracking configuration.

Leaving --access-token empty keeps the token already stored. Plans are read
from a YAML file holding a list of {id, name, price, screens}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := apiClient(cmd)
		if err != nil {
			return err
		}
		op, err := operatorID(cmd, p)
		if err != nil {
			return err
		}
		pixelID, _ := cmd.Flags().GetString("pixel-id")
		token, _ := cmd.Flags().GetString("access-token")
		name, _ := cmd.Flags().GetString("name")
		plansFile, _ := cmd.Flags().GetString("plans")

		update := client.TrackingUpdate{PixelID: pixelID, AccessToken: token, UserName: name}
		if plansFile != "" {
			plans, err := readPlans(plansFile)
			if err != nil {
				return err
			}
			update.Plans = plans
		}

		t, err := c.PutTracking(op, update)
		if err != nil {
			return fmt.Errorf("failed to save tracking configuration: %w", err)
		}
		if jsonOutput(cmd) {
			return output.JSON(t)
		}
		output.Success("Tracking configuration saved for %s", t.OperatorID)
		printTracking(t)
		return nil
	},
}

func readPlans(path string) ([]client.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}
	var plans []client.Plan
	if err := yaml.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("failed to parse plans file: %w", err)
	}
	return plans, nil
}

var trackingDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an operator's tracking configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := apiClient(cmd)
		if err != nil {
			return err
		}
		op, err := operatorID(cmd, p)
		if err != nil {
			return err
		}
		if err := c.DeleteTracking(op); err != nil {
			return fmt.Errorf("failed to delete tracking configuration: %w", err)
		}
		output.Success("Tracking configuration deleted for %s", op)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trackingCmd)
	trackingCmd.AddCommand(trackingGetCmd, trackingSetCmd, trackingDeleteCmd)

	trackingSetCmd.Flags().String("pixel-id", "", "Meta pixel id")
	trackingSetCmd.Flags().String("access-token", "", "Conversions API access token")
	trackingSetCmd.Flags().String("name", "", "display name shown on the funnel page")
	trackingSetCmd.Flags().String("plans", "", "YAML file with the plan catalogue")
	if err := trackingSetCmd.MarkFlagRequired("pixel-id"); err != nil {
		panic(fmt.Sprintf("failed to mark pixel-id as required: %v", err))
	}
}
