package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/pxm/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) configFile(cmd *cli.Command) string {
	if path := cmd.String("config"); path != "" {
		return path
	}
	if r.configPath != "" {
		return r.configPath
	}
	return "config.toml"
}

// SetupDatabase initializes the run journal and runs migrations, creating config.toml first when it is missing.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configFile(cmd)

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		config = shared.DefaultConfig()
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(ctx, config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Journal ready at %s\n", config.Database.Path)
}

// SetupConfig writes config.toml from the embedded example. An existing file is left untouched.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configFile(cmd)

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)

	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.flickr api_key, api_secret and username\n")
	r.writePlain("2. Download a Google OAuth client secret to credentials.google.client_secret_file\n")
	r.writePlain("3. Run 'pxm auth google', then 'pxm migrate pages' to check the plan\n")
	return nil
}
