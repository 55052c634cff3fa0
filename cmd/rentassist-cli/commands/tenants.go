package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rentassist-backend/lib/util/serviceutil"
)

var tenantsPage *int

func init() {
	tenantsPage = tenantsCmd.Flags().Int("page", 1, "The page of the occupancies table to list.")
	tenantsCmd.AddCommand(tenantEmailCmd)
	rootCmd.AddCommand(tenantsCmd)
}

var tenantsCmd = &cobra.Command{
	Use:   "tenants [--page <n>]",
	Short: "Lists tenants from the occupancies table.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		tenants, err := client.FetchAllTenants(cmd.Context(), *tenantsPage)
		if err != nil {
			serviceutil.Fatal("failed to fetch tenants", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Name", "Unit", "Occupancy ID", "Tenant ID"})
		for _, tenant := range tenants {
			t.AppendRow(table.Row{
				tenant["Name"],
				tenant["Unit Name"],
				tenant["Occupancy ID"],
				tenant["Selected Tenant ID"],
			})
		}
		t.Render()
	},
}

var tenantEmailCmd = &cobra.Command{
	Use:   "email <occupancy id> <tenant id>",
	Short: "Prints the email address of a tenant.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		email, err := client.FetchTenantEmail(cmd.Context(), args[0], args[1])
		if err != nil {
			serviceutil.Fatal("failed to fetch tenant email", err)
		}
		if email == "" {
			fmt.Println("no email on file")
			return
		}
		fmt.Println(email)
	},
}
