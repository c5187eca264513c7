// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// migrateCommand handles the page migration and its journal.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"mig"},
		Usage:   "Migrate Flickr photos to Google Photos, one page at a time",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the migration, resuming any page left on disk",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "from",
						Usage: "Lowest page to migrate (default: first page)",
					},
					&cli.IntFlag{
						Name:  "to",
						Usage: "Highest page to migrate (default: last page)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Show what each page would do without downloading or uploading",
					},
					&cli.BoolFlag{
						Name:  "tui",
						Usage: "Show progress in the interactive terminal UI",
					},
				},
				Action: r.MigrateRun,
			},
			{
				Name:  "pages",
				Usage: "Show every page's stage state (no network writes)",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "from",
						Usage: "Lowest page to inspect",
					},
					&cli.IntFlag{
						Name:  "to",
						Usage: "Highest page to inspect",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.MigratePages,
			},
			{
				Name:  "history",
				Usage: "List recorded migration runs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, json, csv, markdown)",
						Value:   "text",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only list runs with this status (running, done, failed)",
					},
				},
				Action: r.MigrateHistory,
			},
			{
				Name:  "show",
				Usage: "Show a run and its page outcomes (default: latest run)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "run",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, json, csv, markdown)",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to a file instead of stdout",
					},
				},
				Action: r.MigrateShow,
			},
		},
	}
}

// albumsCommand handles destination album operations
func albumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "albums",
		Usage: "Google Photos album operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List albums created by pxm",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.AlbumsList,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the run journal and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write config.toml from the built-in example",
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "google",
				Usage: "Authorize Google Photos access with OAuth2 and cache the token",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: authTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the consent URL instead of opening a browser",
					},
				},
				Action: r.AuthGoogle,
			},
			{
				Name:   "status",
				Usage:  "Show the cached Google token and Flickr credentials",
				Action: r.AuthStatus,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for an interactive migration.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for the migration",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "from",
				Usage: "Lowest page to migrate",
			},
			&cli.IntFlag{
				Name:  "to",
				Usage: "Highest page to migrate",
			},
		},
		Action: r.TUI,
	}
}
