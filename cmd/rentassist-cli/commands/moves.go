package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rentassist-backend/lib/util/serviceutil"
)

func init() {
	rootCmd.AddCommand(movesCmd)
}

var movesCmd = &cobra.Command{
	Use:   "moves",
	Short: "Lists upcoming move-ins and move-outs, merged per tenant.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		moves, err := client.FetchTenancyMoveData(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch move data", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Tenant", "Property", "Unit", "Move In", "Move Out", "Type", "Overdue"})
		for _, move := range moves {
			t.AppendRow(table.Row{
				move.TenantName,
				move.PropertyName,
				move.Unit,
				move.MoveInDate,
				move.MoveOutDate,
				move.MoveOutType,
				move.IsOverdue,
			})
		}
		t.Render()
	},
}
