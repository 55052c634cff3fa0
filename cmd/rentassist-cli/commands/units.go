package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rentassist-backend/lib/scrapers/appfolio"
	"rentassist-backend/lib/util/serviceutil"
)

func init() {
	rootCmd.AddCommand(unitsCmd)
}

// findProperty walks the properties index and returns the listing whose name
// or street address best matches the query.
func findProperty(ctx context.Context, client *appfolio.Client, query string) (appfolio.Property, error) {
	var best appfolio.Property
	bestScore := 0.0

	lastFirstUrl := ""
	for page := 1; ; page++ {
		properties, err := client.FetchProperties(ctx, page)
		if err != nil {
			return appfolio.Property{}, err
		}
		// the index repeats the final page past the end of the data
		if len(properties) == 0 || properties[0].Url == lastFirstUrl {
			break
		}
		lastFirstUrl = properties[0].Url

		for _, property := range properties {
			for _, candidate := range []string{property.Name, property.StreetAddress} {
				if candidate == "" {
					continue
				}
				score := matchr.JaroWinkler(
					strings.ToLower(query),
					strings.ToLower(candidate),
					false,
				)
				if score > bestScore {
					bestScore = score
					best = property
				}
			}
		}
	}

	if best.Url == "" {
		return appfolio.Property{}, fmt.Errorf("no property matches %q", query)
	}
	return best, nil
}

var unitsCmd = &cobra.Command{
	Use:   "units <property name>",
	Short: "Lists the units of the property best matching the given name.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()
		query := strings.Join(args, " ")

		property, err := findProperty(cmd.Context(), client, query)
		if err != nil {
			serviceutil.Fatal("failed to match property", err)
		}
		fmt.Printf("%s (%s)\n", property.StreetAddress, property.Url)

		units, err := client.FetchUnits(cmd.Context(), property.Url)
		if err != nil {
			serviceutil.Fatal("failed to fetch units", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Unit", "Unit ID", "Occupant ID", "Lease Start", "Lease End"})
		for _, unit := range units {
			t.AppendRow(table.Row{
				unit["Unit Name"],
				unit["Unit ID"],
				unit["Occupant ID"],
				unit["Lease Start"],
				unit["Lease End"],
			})
		}
		t.Render()
	},
}
