package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/ttrack/internal/repositories"
	"github.com/desertthunder/ttrack/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the template when missing, then initializes the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	config := r.config
	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}
	r.config = config

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		r.writePlain("✓ Rolled back the latest migration\n")
		return nil
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)

	if cmd.Bool("reset") {
		kv := repositories.NewKeyValueRepository(db, credentialNamespace)
		keys, err := kv.Keys()
		if err != nil {
			return err
		}
		if err := kv.Clear(); err != nil {
			return err
		}
		r.logger.Info("cleared stored credential", "keys", len(keys))
		r.writePlain("✓ Removed stored sign-in (%d key(s))\n", len(keys))
	}

	r.writePlain("✓ Setup complete\n\nNext steps:\n")
	if err := config.Validate(); err != nil {
		r.writePlain("1. Fill in [google] client_id and client_secret in %s\n", configPath)
		r.writePlain("2. Run 'ttrack auth login'\n")
		return nil
	}
	r.writePlain("1. Run 'ttrack auth login'\n")
	return nil
}
