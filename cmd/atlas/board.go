package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/tools"
)

func newBoardCmd() *cobra.Command {
	var (
		configPath   string
		tenantID     string
		status       string
		driverName   string
		assignedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Print the dispatch board for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd, configPath, tenantID, status, driverName, assignedOnly)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "atlas.yaml", "path to Atlas config file")
	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "tenant id (required)")
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by load status")
	cmd.Flags().StringVarP(&driverName, "driver", "d", "", "filter by driver name")
	cmd.Flags().BoolVar(&assignedOnly, "assigned", false, "only show loads with a driver")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func runBoard(cmd *cobra.Command, configPath, tenantID, status, driverName string, assignedOnly bool) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	exec, err := tools.NewExecutor(tools.ExecutorOpts{
		DB:       gormDB,
		Identity: auth.Identity{TenantID: tenantID},
	})
	if err != nil {
		return err
	}
	snap, err := tools.Snapshot(exec, status, driverName, assignedOnly)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(snap.Rows) == 0 {
		fmt.Fprintln(out, "No loads on the board.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REFERENCE\tORIGIN\tDESTINATION\tRATE\tSTATUS\tPOD\tDRIVER")
	for _, row := range snap.Rows {
		driver := row.Driver
		if driver == "" {
			driver = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t$%.0f\t%s\t%s\t%s\n",
			row.Reference, row.Origin, row.Destination, row.Rate,
			row.Status, row.PODStatus, driver)
	}
	w.Flush()

	if len(snap.IntegrityIssues) > 0 {
		fmt.Fprintf(out, "\n%d integrity finding(s):\n", len(snap.IntegrityIssues))
		for _, issue := range snap.IntegrityIssues {
			fmt.Fprintf(out, "  %s\n", issue)
		}
	}
	return nil
}
