package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/cmd/cli/commands"
	"github.com/jakechorley/unter/internal/config"
	"github.com/jakechorley/unter/pkg/core/services"
	"github.com/jakechorley/unter/pkg/db"
	"github.com/jakechorley/unter/pkg/notify"
	"github.com/jakechorley/unter/pkg/postgres"
	"github.com/jakechorley/unter/pkg/utils/logging"
)

var (
	env     string
	logsDir string
	verbose bool
	app     = &commands.AppContext{}
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "unter",
		Short: "Unter - match volunteers to needs and alert them",
		Long:  `A CLI and webhook server for recording needs, alerting available volunteers and tracking who has committed.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if pg := app.Postgres(); pg != nil {
				pg.Close()
			}
			if app.Logger != nil {
				app.Logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().StringVar(&logsDir, "logs-dir", logging.DefaultDir, "Directory for log files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs on the console")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.RegisterVolunteerCmd(app))
	rootCmd.AddCommand(commands.ListVolunteersCmd(app))
	rootCmd.AddCommand(commands.AddAvailabilityCmd(app))
	rootCmd.AddCommand(commands.RemoveAvailabilityCmd(app))
	rootCmd.AddCommand(commands.GrantCmd(app))
	rootCmd.AddCommand(commands.RevokeCmd(app))
	rootCmd.AddCommand(commands.CreateEventTypeCmd(app))
	rootCmd.AddCommand(commands.ListEventTypesCmd(app))
	rootCmd.AddCommand(commands.CreateEventCmd(app))
	rootCmd.AddCommand(commands.ListEventsCmd(app))
	rootCmd.AddCommand(commands.CancelEventCmd(app))
	rootCmd.AddCommand(commands.CompleteEventCmd(app))
	rootCmd.AddCommand(commands.CheckEventCmd(app))
	rootCmd.AddCommand(commands.CheckAllCmd(app))
	rootCmd.AddCommand(commands.SendRemindersCmd(app))
	rootCmd.AddCommand(commands.ScheduleRecurringCmd(app))
	rootCmd.AddCommand(commands.CommitCmd(app))
	rootCmd.AddCommand(commands.DecommitCmd(app))
	rootCmd.AddCommand(commands.RespondCmd(app))
	rootCmd.AddCommand(commands.AvailableEventsCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, store and notifier
func initApp() error {
	var err error
	app.Ctx = context.Background()
	app.Clock = services.SystemClock{}

	// Initialize logger
	app.Logger, err = logging.InitLogger(env, logging.Options{Dir: logsDir, Verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.Logger.Info("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully", zap.String("time_zone", app.Cfg.TimeZone))

	// Initialize store
	app.Logger.Info("Connecting to store", zap.String("driver", app.Cfg.Database.Driver))
	switch app.Cfg.Database.Driver {
	case "postgres":
		pg, err := postgres.NewDB(app.Ctx, app.Cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.Store = pg
	default:
		app.Logger.Warn("Using in-memory store, nothing will be persisted")
		app.Store = db.NewMemoryDB()
	}
	app.Logger.Debug("Store initialized successfully")

	// Initialize notification channels
	app.Logger.Info("Initializing notifier",
		zap.String("sms_provider", app.Cfg.SMS.Provider),
		zap.String("email_provider", app.Cfg.Email.Provider))
	app.Notifier, err = notify.NewDispatcherFromConfig(app.Ctx, app.Cfg, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	app.Logger.Info("Application initialized successfully")

	return nil
}
