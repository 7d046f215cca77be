package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/techview-systems/leadpixel-stack/cli/pkg/output"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Undelivered server events (ADMIN)",
}

var dlqShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show queue stats and the oldest entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := apiClient(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		status, err := c.DLQ(limit)
		if err != nil {
			return fmt.Errorf("failed to read DLQ: %w", err)
		}
		if jsonOutput(cmd) {
			return output.JSON(status)
		}

		keys := make([]string, 0, len(status.Stats))
		for k := range status.Stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			output.Info("%-16s %v", k, status.Stats[k])
		}

		table := output.NewTable([]string{"Timestamp", "Operator", "Reason", "Attempts", "Error"})
		for _, e := range status.Entries {
			table.AddRow([]string{
				fmt.Sprint(e["timestamp"]),
				fmt.Sprint(e["operator_id"]),
				fmt.Sprint(e["reason"]),
				fmt.Sprint(e["attempts"]),
				fmt.Sprint(e["error"]),
			})
		}
		table.Render()
		return nil
	},
}

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-dispatch dead-lettered events with current credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := apiClient(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		report, err := c.ReplayDLQ(limit)
		if err != nil {
			return fmt.Errorf("failed to replay DLQ: %w", err)
		}
		if jsonOutput(cmd) {
			return output.JSON(report)
		}
		output.Success("Replayed %d of %d entries (%d skipped, %d failed)",
			report.Dispatched, report.Read, report.Skipped, report.Failed)
		return nil
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop every dead-lettered event",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to purge without --yes")
		}
		c, _, err := apiClient(cmd)
		if err != nil {
			return err
		}
		if err := c.PurgeDLQ(); err != nil {
			return fmt.Errorf("failed to purge DLQ: %w", err)
		}
		output.Success("DLQ purged")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqShowCmd, dlqReplayCmd, dlqPurgeCmd)

	dlqShowCmd.Flags().Int("limit", 20, "entries to show")
	dlqReplayCmd.Flags().Int("limit", 100, "entries to replay")
	dlqPurgeCmd.Flags().Bool("yes", false, "confirm the purge")
}
