package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rentassist-backend/lib/util/serviceutil"
)

var workOrderStatus *string
var workOrderSince *string

func init() {
	workOrderStatus = workOrdersCmd.Flags().String("status", "", "Filter by work order status, e.g. 'New'.")
	workOrderSince = workOrdersCmd.Flags().String("since", "", "Only include work orders created on or after this date (YYYY-MM-DD).")
	workOrdersCmd.MarkFlagRequired("since")
	rootCmd.AddCommand(workOrdersCmd)
}

var workOrdersCmd = &cobra.Command{
	Use:   "workorders --since <YYYY-MM-DD> [--status <status>]",
	Short: "Lists work orders with their scraped detail pages.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		workOrders, err := client.FetchWorkOrders(cmd.Context(), *workOrderStatus, *workOrderSince)
		if err != nil {
			serviceutil.Fatal("failed to fetch work orders", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Number", "Status", "Priority", "Description", "Created"})
		for _, order := range workOrders {
			t.AppendRow(table.Row{
				order["display_number"],
				order["status"],
				order["priority"],
				order["description"],
				order["created_at"],
			})
		}
		t.Render()
	},
}
