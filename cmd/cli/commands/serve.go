package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/scheduler"
	"github.com/jakechorley/unter/pkg/webhook"
)

// ServeCmd creates the serve command, which runs the response webhook and the scheduled jobs
func ServeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve response links and run scheduled checks until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Cfg.Server.Addr
			}
			noSchedule, _ := cmd.Flags().GetBool("no-schedule")

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !noSchedule {
				sched, err := scheduler.New(app.Cfg, app.Store, app.Notifier, app.Clock, app.Logger)
				if err != nil {
					return fmt.Errorf("failed to create scheduler: %w", err)
				}
				app.Logger.Info("Scheduler starting", zap.Strings("jobs", sched.Jobs()))
				go sched.Run(ctx)
			}

			server := webhook.NewServer(app.Store, app.Notifier, app.Clock, app.AlertSettings(), app.Logger)
			fmt.Printf("\n✓ Listening on %s (Ctrl-C to stop)\n\n", addr)
			if err := server.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address (defaults to server.addr from config)")
	cmd.Flags().Bool("no-schedule", false, "Serve response links without running scheduled jobs")

	return cmd
}
