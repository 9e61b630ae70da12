package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/victornm/quizjudge/internal/server"
	"github.com/victornm/quizjudge/internal/telemetry"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath)
		},
	}
}

func runServer(ctx context.Context, configPath string) error {
	c, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := telemetry.NewLogger(c.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	s, err := server.Init(c)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	failed := make(chan error, 1)
	go func() {
		failed <- s.Start()
	}()

	for {
		select {
		case <-reload:
			if err := s.ReloadCatalog(ctx); err != nil {
				slog.ErrorContext(ctx, "server: reload catalog failed", "error", err)
			} else {
				slog.InfoContext(ctx, "server: catalog reloaded")
			}

		case err := <-failed:
			s.Shutdown()
			return err

		case <-shutdown:
			s.Shutdown()
			return nil
		}
	}
}
