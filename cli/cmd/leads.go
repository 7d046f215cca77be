package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/techview-systems/leadpixel-stack/cli/internal/client"
	"github.com/techview-systems/leadpixel-stack/cli/pkg/output"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Work captured leads",
}

func leadQuery(cmd *cobra.Command) client.LeadQuery {
	status, _ := cmd.Flags().GetString("status")
	search, _ := cmd.Flags().GetString("search")
	page, _ := cmd.Flags().GetInt("page")
	limit, _ := cmd.Flags().GetInt("limit")
	return client.LeadQuery{Status: status, Search: search, Page: page, Limit: limit}
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := apiClient(cmd)
		if err != nil {
			return err
		}
		op, err := operatorID(cmd, p)
		if err != nil {
			return err
		}
		page, err := c.ListLeads(op, leadQuery(cmd))
		if err != nil {
			return fmt.Errorf("failed to list leads: %w", err)
		}
		if jsonOutput(cmd) {
			return output.JSON(page)
		}

		table := output.NewTable([]string{"ID", "Created", "Name", "Phone", "Plan", "Value", "Source", "Status"})
		for _, l := range page.Data {
			table.AddRow([]string{
				l.ID,
				l.CreatedAt.Local().Format("2006-01-02 15:04"),
				l.Name,
				l.Phone,
				l.PlanName,
				fmt.Sprintf("%.2f", l.Value),
				l.Source,
				l.Status,
			})
		}
		table.Render()
		output.Info("Page %d, %d of %d leads", page.Pagination.Page, len(page.Data), page.Pagination.Total)
		return nil
	},
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := apiClient(cmd)
		if err != nil {
			return err
		}
		op, err := operatorID(cmd, p)
		if err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("file")
		w := output.Stdout
		if path != "" && path != "-" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		n, err := c.ExportLeads(op, leadQuery(cmd), w)
		if err != nil {
			return fmt.Errorf("failed to export leads: %w", err)
		}
		if path != "" && path != "-" {
			output.Success("Wrote %d bytes to %s", n, path)
		}
		return nil
	},
}

var leadsStatusCmd = &cobra.Command{
	Use:   "status [lead-id] [new|contacted|converted]",
	Short: "Move a lead through the sales follow-up",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := apiClient(cmd)
		if err != nil {
			return err
		}
		op, err := operatorID(cmd, p)
		if err != nil {
			return err
		}
		lead, err := c.UpdateLeadStatus(op, args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to update lead: %w", err)
		}
		output.Success("Lead %s is now %s", lead.ID, lead.Status)
		return nil
	},
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete [lead-id]",
	Short: "Delete a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, p, err := apiClient(cmd)
		if err != nil {
			return err
		}
		op, err := operatorID(cmd, p)
		if err != nil {
			return err
		}
		if err := c.DeleteLead(op, args[0]); err != nil {
			return fmt.Errorf("failed to delete lead: %w", err)
		}
		output.Success("Lead %s deleted", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(leadsCmd)
	leadsCmd.AddCommand(leadsListCmd, leadsExportCmd, leadsStatusCmd, leadsDeleteCmd)

	for _, c := range []*cobra.Command{leadsListCmd, leadsExportCmd} {
		c.Flags().String("status", "", "filter by status: new, contacted, converted")
		c.Flags().StringP("search", "q", "", "search name, email or phone")
	}
	leadsListCmd.Flags().Int("page", 1, "page number")
	leadsListCmd.Flags().Int("limit", 50, "leads per page")
	leadsExportCmd.Flags().StringP("file", "f", "", "write CSV to file instead of stdout")
}
