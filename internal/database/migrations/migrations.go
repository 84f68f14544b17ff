// Package migrations holds the schema history applied by bun/migrate.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry of all schema migrations.
var Migrations = migrate.NewMigrations()
