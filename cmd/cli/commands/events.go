package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/core/services"
)

// CreateEventTypeCmd creates the createEventType command
func CreateEventTypeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "createEventType <name> [description]",
		Short: "Add a kind of need (airport, bus, interpreter...)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var description string
			if len(args) > 1 {
				description = args[1]
			}
			et, err := services.CreateEventType(app.Ctx, app.Store, app.Logger, args[0], description)
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Event type created: %s (%s)\n\n", et.Name, et.ID)
			return nil
		},
	}
}

// ListEventTypesCmd creates the listEventTypes command
func ListEventTypesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listEventTypes",
		Short: "List the kinds of need",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := services.ListEventTypes(app.Ctx, app.Store)
			if err != nil {
				return err
			}
			fmt.Printf("\nFound %d event types:\n\n", len(types))
			for _, et := range types {
				fmt.Printf("- %s (%s) %s\n", et.Name, et.ID, et.Description)
			}
			fmt.Println()
			return nil
		},
	}
}

// CreateEventCmd creates the createEvent command
func CreateEventCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createEvent <event_type> <date> <time>",
		Short: "Create a need event (date YYYY-MM-DD, time HH:MM)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			duration, _ := cmd.Flags().GetInt("duration")
			count, _ := cmd.Flags().GetInt("volunteers")
			affected, _ := cmd.Flags().GetInt("affected")
			location, _ := cmd.Flags().GetString("location")
			notes, _ := cmd.Flags().GetString("notes")
			coordinator, _ := cmd.Flags().GetString("coordinator")
			alert, _ := cmd.Flags().GetBool("alert")

			ev, err := services.CreateNeedEvent(app.Ctx, app.Store, app.Cfg.Location(), app.Logger, services.CreateNeedEventInput{
				EventType:       args[0],
				Date:            args[1],
				TimeOfNeed:      args[2],
				Duration:        duration,
				VolunteerCount:  count,
				AffectedPersons: affected,
				Location:        location,
				Notes:           notes,
				CreatedBy:       coordinator,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Need event created!\n\n")
			printEvent(*ev)
			fmt.Println()

			if !alert {
				return nil
			}
			result, err := services.CheckOneEvent(app.Ctx, app.Store, app.Notifier, app.Clock, app.AlertSettings(), app.Logger, ev.ID, false)
			if err != nil {
				return err
			}
			printCheckResult(result)
			return nil
		},
	}

	cmd.Flags().Int("duration", 60, "Duration in minutes")
	cmd.Flags().Int("volunteers", 1, "Number of volunteers needed")
	cmd.Flags().Int("affected", 0, "Number of people being helped")
	cmd.Flags().String("location", "", "Where volunteers should go")
	cmd.Flags().String("notes", "", "Notes for volunteers")
	cmd.Flags().String("coordinator", "", "Volunteer ID of the coordinator to notify of withdrawals")
	cmd.Flags().Bool("alert", false, "Alert eligible volunteers immediately")

	return cmd
}

// ListEventsCmd creates the listEvents command
func ListEventsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listEvents",
		Short: "List open need events with their commitments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := services.ListOpenNeedEvents(app.Ctx, app.Store)
			if err != nil {
				return err
			}

			fmt.Printf("\nFound %d open events:\n\n", len(events))
			for _, ev := range events {
				committed, err := services.CommittedVolunteers(app.Ctx, app.Store, ev.ID)
				if err != nil {
					return err
				}
				printEvent(ev)
				fmt.Printf("  Committed: %d of %d\n", len(committed), ev.VolunteerCount)
				for _, vol := range committed {
					fmt.Printf("    ✓ %s (%s)\n", vol.Name(), vol.Phone)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

// CancelEventCmd creates the cancelEvent command
func CancelEventCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancelEvent <event_id>",
		Short: "Cancel a need event and notify committed volunteers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.CancelEvent(app.Ctx, app.Store, app.Notifier, app.Logger, args[0])
			if err != nil {
				return err
			}
			if result.AlreadyCancelled {
				fmt.Printf("\nEvent was already cancelled.\n\n")
				return nil
			}

			fmt.Printf("\n✓ Event cancelled, %d committed volunteers notified\n", len(result.Notified))
			for _, n := range result.Notified {
				fmt.Printf("  ✓ %s\n", n.VolunteerName)
			}
			printFailedAlerts(result.FailedAlerts)
			fmt.Println()
			return nil
		},
	}
}

// CompleteEventCmd creates the completeEvent command
func CompleteEventCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "completeEvent <event_id>",
		Short: "Mark a need event as complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("completeEvent command", zap.String("event_id", args[0]))
			if _, err := services.CompleteEvent(app.Ctx, app.Store, app.Logger, args[0]); err != nil {
				return err
			}
			fmt.Printf("\n✓ Event marked complete\n\n")
			return nil
		},
	}
}

func printEvent(ev model.NeedEvent) {
	fmt.Printf("%s  %s at %s for %d min  (%s)\n",
		ev.ID, ev.Date.Format("Mon Jan 2 2006"), model.FormatMinutes(ev.TimeOfNeed), ev.Duration, ev.Location)
	fmt.Printf("  Volunteers needed: %d\n", ev.VolunteerCount)
	if ev.Notes != "" {
		fmt.Printf("  Notes: %s\n", ev.Notes)
	}
}
