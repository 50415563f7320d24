package main

import (
	"context"
	"os"

	"github.com/desertthunder/jam/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the config file when it is missing, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configName()

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			r.config = config
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	store, err := r.openStore()
	if err != nil {
		return err
	}

	keys := 0
	if lister, ok := store.(interface{ Keys() ([]string, error) }); ok {
		names, err := lister.Keys()
		if err != nil {
			return err
		}
		keys = len(names)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s (%d stored keys)\n", r.config.Database.Path, keys)
}
