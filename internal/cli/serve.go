package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"paper-arena/internal/api"
	"paper-arena/internal/scheduler"
)

// newServeCmd runs the long-lived arena: cron scheduler plus HTTP API.
func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the arena scheduler and HTTP API",
		Long: `Starts the full arena: the cron scheduler fires trading rounds,
eliminations, and daily summaries on their configured schedules, and the
HTTP API serves leaderboard and agent state. Stops cleanly on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := app.buildArena(ctx, configDirFlag(cmd)); err != nil {
				return err
			}
			defer app.Close()

			sched := scheduler.New(app.Controller, app.Logger.With().Str("component", "scheduler").Logger())
			if err := sched.Register(ctx, app.Config.Schedule); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			server := api.New(
				app.Config.API.ListenAddr,
				app.Config.API.AdminSecret,
				app.Controller,
				app.Logger.With().Str("component", "api").Logger(),
			)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				app.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	return cmd
}
