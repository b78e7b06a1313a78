// Package db holds the collector's schema.
package db

import "embed"

// MigrationFS embeds the SQL migrations applied by db/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
