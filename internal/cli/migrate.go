package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/victornm/quizjudge/internal/server"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply scoreboard database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	c, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := server.MigrateScoreboard(ctx, c.Scoreboard.Driver, c.Scoreboard.DSN); err != nil {
		return err
	}

	slog.InfoContext(ctx, "scoreboard: migrations applied", "driver", c.Scoreboard.Driver)
	return nil
}
