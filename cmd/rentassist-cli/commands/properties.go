package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rentassist-backend/lib/util/serviceutil"
)

var propertiesPage *int

func init() {
	propertiesPage = propertiesCmd.Flags().Int("page", 1, "The page of the properties index to list.")
	rootCmd.AddCommand(propertiesCmd)
}

var propertiesCmd = &cobra.Command{
	Use:   "properties [--page <n>]",
	Short: "Lists properties, hidden ones included.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		properties, err := client.FetchProperties(cmd.Context(), *propertiesPage)
		if err != nil {
			serviceutil.Fatal("failed to fetch properties", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Name", "Street", "City/State/Zip", "Type", "Units", "Vacant", "Owner"})
		for _, property := range properties {
			t.AppendRow(table.Row{
				property.Name,
				property.StreetAddress,
				property.CityStateZip,
				property.Type,
				property.Units,
				property.Vacant,
				property.Owner,
			})
		}
		t.Render()
	},
}
