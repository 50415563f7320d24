// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and the shared store",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, then initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand manages the bearer token shared by every jam process
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the shared session credential",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Store an OAuth2 token JSON file (access_token, refresh_token, expiry)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.AuthImport,
			},
			{
				Name:  "login",
				Usage: "Authorize with Spotify in the browser and store the token",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: loginTimeout,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh the token while holding the refresh lock",
				Action: r.AuthRefresh,
			},
			{
				Name:   "status",
				Usage:  "Show the stored token and refresh lock",
				Flags:  outputFlags(),
				Action: r.AuthStatus,
			},
		},
	}
}

func lockCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lock",
		Usage: "Inspect and operate the refresh lock",
		Commands: []*cli.Command{
			{
				Name:   "acquire",
				Usage:  "Try to take the refresh lease",
				Action: r.LockAcquire,
			},
			{
				Name:   "release",
				Usage:  "Drop the refresh lease",
				Action: r.LockRelease,
			},
			{
				Name:   "status",
				Usage:  "Show the current lease",
				Flags:  outputFlags(),
				Action: r.LockStatus,
			},
		},
	}
}

// sessionCommand handles joining and mutating sessions
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"s"},
		Usage:   "Collaborative session operations",
		Commands: []*cli.Command{
			{
				Name:  "join",
				Usage: "Join a session and print its events until interrupted",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "recommend",
						Usage: "Feed Spotify recommendations into the session view",
					},
				},
				Action: r.SessionJoin,
			},
			{
				Name:  "watch",
				Usage: "Open the interactive session viewer",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "recommend",
						Usage: "Feed Spotify recommendations into the viewer",
					},
				},
				Action: r.SessionWatch,
			},
			{
				Name:  "add",
				Usage: "Add a track to the shared playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
					&cli.StringArg{Name: "track"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "title",
						Usage: "Track title (looked up on Spotify when omitted)",
					},
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Track artist",
					},
					&cli.IntFlag{
						Name:  "duration",
						Usage: "Track length in seconds",
					},
				},
				Action: r.SessionAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove a track from the shared playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
					&cli.StringArg{Name: "track"},
				},
				Action: r.SessionRemove,
			},
			{
				Name:  "export",
				Usage: "Export a session's playlist from the relay",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: csv, markdown, txt or json",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
				},
				Action: r.SessionExport,
			},
			{
				Name:   "health",
				Usage:  "Check the relay's health endpoint",
				Flags:  outputFlags(),
				Action: r.SessionHealth,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the session relay server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides server.port)",
			},
			&cli.StringSliceFlag{
				Name:  "token",
				Usage: "Accepted bearer token, repeatable (overrides server.tokens)",
			},
		},
		Action: r.Serve,
	}
}
