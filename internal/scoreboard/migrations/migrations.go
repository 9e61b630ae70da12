// Package migrations holds the scoreboard schema. Every migration supports the Postgres and
// SQLite dialects.
package migrations

import (
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()
