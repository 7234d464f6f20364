package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/upkeep"
	"github.com/loykin/upkeep/internal/schedule"
)

// createServeCommand creates the serve subcommand
func createServeCommand(upkeepCommand command, serveFlags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with an in-process scheduler",
		Long: `Serve exposes the run, history and schedule operations over HTTP
and drives the recurring schedule in-process instead of launchd.

Examples:
  upkeep serve
  upkeep serve --listen=127.0.0.1:8611 --base-path=/api`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upkeepCommand.Serve(*serveFlags)
		},
	}
	cmd.Flags().StringVar(&serveFlags.Listen, "listen", "", "listen address (default from config)")
	cmd.Flags().StringVar(&serveFlags.BasePath, "base-path", "", "base path for all endpoints")
	return cmd
}

func (c command) Serve(f ServeFlags) error {
	app, cfg, err := c.loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := upkeep.RegisterMetricsDefault(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	path, err := policyPath()
	if err != nil {
		return err
	}
	loop := schedule.NewLoop(func() {
		if _, err := app.RunScheduled(context.Background()); err != nil {
			slog.Error("scheduled run failed", "error", err)
		}
	})
	defer loop.Stop()

	eng := schedule.NewEngine(path, loop)
	if err := eng.Load(); err != nil {
		return err
	}
	app.AttachSchedule(eng)
	if err := eng.Reconcile(); err != nil {
		return err
	}

	addr := f.Listen
	if addr == "" {
		addr = cfg.Server.Listen
	}
	srv := app.NewHTTPServer(addr, f.BasePath)
	slog.Info("serving", "addr", addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down")
	app.CancelAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
