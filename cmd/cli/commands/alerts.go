package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/unter/pkg/core/services"
	"github.com/jakechorley/unter/pkg/notify"
)

// CheckEventCmd creates the checkEvent command
func CheckEventCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkEvent <event_id>",
		Short: "Alert eligible volunteers about one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			result, err := services.CheckOneEvent(app.Ctx, app.Store, app.Notifier, app.Clock, app.AlertSettings(), app.Logger, args[0], !force)
			if err != nil {
				return err
			}
			printCheckResult(result)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Alert even if the event was alerted recently")

	return cmd
}

// CheckAllCmd creates the checkAll command
func CheckAllCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "checkAll",
		Short: "Close out past events and alert on every open event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.CheckAllEvents(app.Ctx, app.Store, app.Notifier, app.Clock, app.AlertSettings(), app.Logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Checked %d open events\n", len(result.Checks))
			if len(result.MarkedComplete) > 0 {
				fmt.Printf("Marked %d past events complete\n", len(result.MarkedComplete))
			}
			for i := range result.Checks {
				fmt.Printf("\n%s:", result.Checks[i].EventID)
				printCheckResult(&result.Checks[i])
			}
			return nil
		},
	}
}

// SendRemindersCmd creates the sendReminders command
func SendRemindersCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sendReminders",
		Short: "Remind committed volunteers of events starting soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sent, failed, err := services.SendCommitmentReminders(
				app.Ctx,
				app.Store,
				app.Notifier,
				app.Clock,
				app.Cfg.Location(),
				app.Cfg.Alerts.ReminderLead,
				app.Logger,
			)
			if err != nil {
				return err
			}

			if len(sent) == 0 {
				fmt.Println("\nNo reminders due.")
			} else {
				fmt.Printf("\n✓ Sent %d reminders:\n", len(sent))
				for _, r := range sent {
					fmt.Printf("  ✓ %s (event %s)\n", r.VolunteerName, r.EventID)
				}
			}
			printFailedAlerts(failed)
			fmt.Println()
			return nil
		},
	}
}

// ScheduleRecurringCmd creates the scheduleRecurring command
func ScheduleRecurringCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduleRecurring",
		Short: "Create need events for configured recurring needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.ScheduleRecurringNeeds(app.Ctx, app.Store, app.Clock, app.Cfg, app.Logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Created %d events (%d already scheduled)\n\n", len(result.Created), result.Existing)
			for _, ev := range result.Created {
				printEvent(ev)
			}
			return nil
		},
	}
}

func printCheckResult(result *services.CheckResult) {
	switch {
	case !result.Attempted:
		fmt.Println("\nNot alerted: event was alerted recently (use --force to override)")
	case result.Skipped != services.SkipNone:
		fmt.Printf("\nNothing to alert: %s\n", result.Skipped)
	case len(result.Alerted) == 0:
		fmt.Println("\nNo eligible volunteers to alert")
	default:
		fmt.Printf("\n✓ Alerted %d volunteers:\n", len(result.Alerted))
		for _, a := range result.Alerted {
			fmt.Printf("  ✓ %s\n", a.VolunteerName)
		}
	}
	printFailedAlerts(result.FailedAlerts)
	fmt.Println()
}

func printFailedAlerts(failed []notify.FailedAlert) {
	if len(failed) == 0 {
		return
	}
	fmt.Printf("⚠️  Failed to deliver %d messages:\n", len(failed))
	for _, f := range failed {
		fmt.Printf("  ✗ %s via %s (%s): %s\n", f.VolunteerName, f.Channel, f.Destination, f.Error)
	}
}
