package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/techview-systems/leadpixel-stack/cli/internal/simulate"
	"github.com/techview-systems/leadpixel-stack/cli/pkg/output"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Walk generated visitors through a funnel",
	Long: `Walk generated visitors through a funnel.

Each visitor starts a session and submits the identity, plan, source and
confirmation steps with realistic personal data, abandoning along the way
per --abandon-rate. Runs against the public funnel routes, so no token is
needed.

Examples:
  leadctl simulate --operator op-1 --count 50
  leadctl simulate --operator op-1 --count 200 --abandon-rate 0.3 --pixel-blocked 0.2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := apiClient(cmd)
		if err != nil {
			return err
		}
		op, err := operatorID(cmd, p)
		if err != nil {
			return err
		}
		count, _ := cmd.Flags().GetInt("count")
		abandon, _ := cmd.Flags().GetFloat64("abandon-rate")
		blocked, _ := cmd.Flags().GetFloat64("pixel-blocked")
		seed, _ := cmd.Flags().GetInt64("seed")
		source, _ := cmd.Flags().GetString("source-url")
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		report, err := simulate.NewRunner(c, simulate.Config{
			OperatorID:       op,
			Count:            count,
			AbandonRate:      abandon,
			PixelBlockedRate: blocked,
			Seed:             seed,
			SourceURL:        source,
		}).Run()
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return output.JSON(report)
		}

		output.Success("%d visitors: %d completed, %d abandoned, %d failed",
			report.Started, report.Completed, report.Abandoned, report.Failed)
		table := output.NewTable([]string{"Event", "Count"})
		for _, name := range []string{"Lead", "ViewContent", "AddToCart", "Purchase"} {
			table.AddRow([]string{name, fmt.Sprint(report.Events[name])})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntP("count", "n", 10, "number of visitors")
	simulateCmd.Flags().Float64("abandon-rate", 0, "chance to abandon before each step (0-1)")
	simulateCmd.Flags().Float64("pixel-blocked", 0, "chance the browser pixel is unavailable (0-1)")
	simulateCmd.Flags().Int64("seed", 0, "random seed (default: time based)")
	simulateCmd.Flags().String("source-url", "", "landing page URL reported by each session")
}
