package cmd

import (
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "newtab",
		Usage: "Backend for a browser new-tab dashboard",
		Description: `Serves the data behind a new-tab dashboard: the Bing image of
		the day, GitHub trending repositories, the Zhihu and V2EX hot lists and
		Open-Meteo weather, together with the user's settings and widget layout.

		Upstream responses are cached for 30 minutes in an SQLite database, or in
		Redis when a Redis address is given.

		Flags can generally be set via environment variables, e.g.:

		--database => NEWTAB_DATABASE=newtab.db
		--port => NEWTAB_PORT=8080
		`,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
			fetchCmd(),
			locationCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}
