// Package migrations embeds the goose SQL migration files applied by internal/postgres.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
