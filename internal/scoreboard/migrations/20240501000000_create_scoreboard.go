package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

var createScoreboard = map[dialect.Name][]string{
	dialect.PG: {
		`CREATE TABLE IF NOT EXISTS scoreboard (
	id                 BIGSERIAL PRIMARY KEY,
	username           TEXT NOT NULL,
	challenge_id       TEXT NOT NULL,
	score              INTEGER NOT NULL,
	time_taken_seconds BIGINT NOT NULL,
	recorded_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS scoreboard_ranking_idx ON scoreboard (challenge_id, score DESC, time_taken_seconds ASC)`,
	},
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS scoreboard (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	username           TEXT NOT NULL,
	challenge_id       TEXT NOT NULL,
	score              INTEGER NOT NULL,
	time_taken_seconds INTEGER NOT NULL,
	recorded_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS scoreboard_ranking_idx ON scoreboard (challenge_id, score DESC, time_taken_seconds ASC)`,
	},
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			stmts, ok := createScoreboard[db.Dialect().Name()]
			if !ok {
				return fmt.Errorf("unsupported dialect %s", db.Dialect().Name())
			}

			for _, stmt := range stmts {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS scoreboard`)
			return err
		},
	)
}
