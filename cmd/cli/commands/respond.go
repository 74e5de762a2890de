package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/unter/pkg/core/services"
)

// CommitCmd creates the commit command
func CommitCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "commit <volunteer_id> <event_id>",
		Short: "Commit a volunteer to a need event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.RespondByUserAction(app.Ctx, app.Store, app.Notifier, app.Clock, app.Logger, args[0], args[1])
			if err != nil {
				return err
			}

			switch result.Outcome {
			case services.CommitCreated:
				fmt.Printf("\n✓ Commitment recorded\n")
			case services.CommitAlreadyExisted:
				fmt.Printf("\nVolunteer was already committed\n")
			case services.CommitRejectedFullyServed:
				fmt.Printf("\nEvent already has enough volunteers\n")
			case services.CommitRejectedClosed:
				fmt.Printf("\nEvent is cancelled or complete\n")
			}
			printFailedAlerts(result.FailedAlerts)
			fmt.Println()
			return nil
		},
	}
}

// DecommitCmd creates the decommit command
func DecommitCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "decommit <volunteer_id> <event_id>",
		Short: "Record that a volunteer cannot serve a need event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.Decommit(app.Ctx, app.Store, app.Notifier, app.Clock, app.Logger, args[0], args[1])
			if err != nil {
				return err
			}

			if result.HadCommitment {
				fmt.Printf("\n✓ Commitment withdrawn")
				if result.CoordinatorNotified {
					fmt.Printf(", coordinator notified")
				}
				fmt.Println()
			} else {
				fmt.Printf("\n✓ Decline recorded\n")
			}
			printFailedAlerts(result.FailedAlerts)
			fmt.Println()
			return nil
		},
	}
}

// RespondCmd creates the respond command, which applies a response link by hand
func RespondCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "respond <token> <accept|refuse>",
		Short: "Apply a response link's token and action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := services.HandleResponse(app.Ctx, app.Store, app.Notifier, app.Clock, app.Logger, args[0], args[1])
			if err != nil {
				return err
			}
			if !outcome.Resolved {
				fmt.Printf("\nToken did not match any alert\n\n")
				return nil
			}
			fmt.Printf("\n%s\n\n", services.GenericResponseMessage)
			return nil
		},
	}
}

// AvailableEventsCmd creates the availableEvents command
func AvailableEventsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "availableEvents <volunteer_id>",
		Short: "List the open events a volunteer could commit to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := services.AvailableEventsFor(app.Ctx, app.Store, app.Logger, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("\nFound %d available events:\n\n", len(events))
			for _, ev := range events {
				printEvent(ev)
			}
			fmt.Println()
			return nil
		},
	}
}
