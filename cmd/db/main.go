package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robalyx/bailiff/cmd/db/commands"
	"github.com/robalyx/bailiff/internal/database/migrations"
	"github.com/robalyx/bailiff/internal/guildconfig"
	"github.com/robalyx/bailiff/internal/setup"
	"github.com/robalyx/bailiff/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
)

// DBLogDir specifies where database tool log files are stored.
const DBLogDir = "logs/db_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Setup dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ServiceDB, DBLogDir, setup.WithoutMigrations())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	deps := &commands.CLIDependencies{
		Config: guildconfig.NewProvider(app.Documents, app.Locker),
		Logger: app.Logger,
	}
	if app.DB != nil {
		deps.Migrator = migrate.NewMigrator(app.DB.DB(), migrations.Migrations)
	}

	cmd := &cli.Command{
		Name:  "db",
		Usage: "Storage management tool",
		Commands: []*cli.Command{
			{
				Name:     "migrate",
				Usage:    "Manage the PostgreSQL schema",
				Commands: commands.MigrationCommands(deps),
			},
			{
				Name:     "config",
				Usage:    "Read and change per-guild settings",
				Commands: commands.ConfigCommands(deps),
			},
		},
	}

	return cmd.Run(ctx, os.Args)
}
