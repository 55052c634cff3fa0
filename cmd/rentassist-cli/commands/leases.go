package commands

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rentassist-backend/lib/util/serviceutil"
)

func init() {
	rootCmd.AddCommand(leasesCmd)
}

var leasesCmd = &cobra.Command{
	Use:   "leases",
	Short: "Lists lease documents and their signature status.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		documents, err := client.FetchLeaseDocuments(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch lease documents", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Document", "Tenants", "Unit", "Status", "Action"})
		for _, document := range documents {
			action := ""
			if document.Action != nil {
				action = document.Action.Text
			}
			t.AppendRow(table.Row{
				document.DocumentId,
				strings.Join(document.Tenants, ", "),
				document.Fields["Unit"],
				document.Fields["Status"],
				action,
			})
		}
		t.Render()
	},
}
