package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/jam/internal/services"
	"github.com/desertthunder/jam/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	app := &cli.Command{
		Name:    "jam",
		Usage:   "Join and run collaborative listening sessions",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Before:   runner.Load,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}

// Load reads the config file named by --config when it exists and builds the Spotify service when credentials are set.
// A missing file keeps the embedded defaults so `jam setup database` can create it.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	creds := r.config.Credentials.Spotify
	if creds.ClientID != "" && creds.ClientSecret != "" {
		svc, err := services.NewSpotifyService(creds.Map())
		if err != nil {
			return ctx, err
		}
		r.spotify = svc
	}
	return ctx, nil
}
