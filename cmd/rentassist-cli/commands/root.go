package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rentassist-backend/lib/configutil"
	"rentassist-backend/lib/scrapers/appfolio"
	"rentassist-backend/lib/util/serviceutil"
)

var rootCmd = &cobra.Command{
	Use:   "rentassist-cli",
	Short: "rentassist-cli scrapes an AppFolio deployment from the command line.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	// BaseUrl is the deployment, e.g. "https://acme.appfolio.com".
	BaseUrl string `json:"base_url"`
	// Cookie is the session cookie header captured from a logged-in browser.
	Cookie string `json:"cookie"`
}

func createClient() *appfolio.Client {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	client, err := appfolio.NewClient(appfolio.ClientOptions{
		BaseUrl:      cfg.BaseUrl,
		CookieString: cfg.Cookie,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize appfolio client", err)
	}
	return client
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
