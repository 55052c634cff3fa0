package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rentassist-backend/lib/util/serviceutil"
)

func init() {
	rootCmd.AddCommand(vacanciesCmd)
}

var vacanciesCmd = &cobra.Command{
	Use:   "vacancies",
	Short: "Lists current vacancies and their posting statuses.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		vacancies, err := client.FetchVacancies(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch vacancies", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Name", "Address", "Status", "Website", "Internet", "Premium", "Updated"})
		for _, vacancy := range vacancies {
			t.AppendRow(table.Row{
				vacancy["name"],
				vacancy["address"],
				vacancy["rent_status"],
				vacancy["website_status"],
				vacancy["internet_status"],
				vacancy["premium_status"],
				vacancy["last_updated"],
			})
		}
		t.Render()
	},
}
