package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/core/services"
)

// RegisterVolunteerCmd creates the registerVolunteer command
func RegisterVolunteerCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registerVolunteer <user_name> <email>",
		Short: "Register a new volunteer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			phone, _ := cmd.Flags().GetString("phone")
			texts, _ := cmd.Flags().GetBool("texts")
			zipcode, _ := cmd.Flags().GetString("zipcode")
			coordinator, _ := cmd.Flags().GetBool("coordinator")

			perms := []model.Permission{model.PermissionRespondToNeed}
			if coordinator {
				perms = append(perms, model.PermissionCoordinate)
			}

			vol, err := services.RegisterVolunteer(app.Ctx, app.Store, app.Logger, services.RegisterVolunteerInput{
				UserName:     args[0],
				DisplayName:  name,
				Email:        args[1],
				Phone:        phone,
				TextAlertsOK: texts,
				Zipcode:      zipcode,
				Permissions:  perms,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Volunteer registered!\n\n")
			fmt.Printf("ID:        %s\n", vol.ID)
			fmt.Printf("User name: %s\n", vol.UserName)
			fmt.Printf("Email:     %s\n\n", vol.Email)
			return nil
		},
	}

	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().Bool("texts", false, "Volunteer agrees to receive text alerts")
	cmd.Flags().String("zipcode", "", "Five digit zipcode")
	cmd.Flags().Bool("coordinator", false, "Also grant the coordinate permission")

	return cmd
}

// ListVolunteersCmd creates the listVolunteers command
func ListVolunteersCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listVolunteers",
		Short: "List all volunteers and their availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteers, err := services.ListVolunteers(app.Ctx, app.Store)
			if err != nil {
				return err
			}

			fmt.Printf("\nFound %d volunteers:\n\n", len(volunteers))
			for _, v := range volunteers {
				perms := make([]string, 0, len(v.Permissions))
				for _, p := range v.Permissions {
					perms = append(perms, string(p))
				}
				fmt.Printf("- %s (%s) - %s - [%s]\n", v.Name(), v.ID, v.Email, strings.Join(perms, ", "))
				for _, slot := range v.Availability {
					fmt.Printf("    %s %s-%s (%s)\n",
						formatDays(slot), model.FormatMinutes(slot.StartTime), model.FormatMinutes(slot.EndTime), slot.ID)
				}
			}
			fmt.Println()
			return nil
		},
	}
}

// AddAvailabilityCmd creates the addAvailability command
func AddAvailabilityCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "addAvailability <volunteer_id> <days> <start> <end>",
		Short: "Add a weekly availability slot (days like mon,wed,fri; times HH:MM)",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			days := strings.Split(strings.ToLower(args[1]), ",")
			slot, err := services.AddAvailability(app.Ctx, app.Store, app.Logger, args[0], services.AvailabilityInput{
				Days:  days,
				Start: args[2],
				End:   args[3],
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Availability added: %s %s-%s (%s)\n\n",
				formatDays(*slot), model.FormatMinutes(slot.StartTime), model.FormatMinutes(slot.EndTime), slot.ID)
			return nil
		},
	}
}

// RemoveAvailabilityCmd creates the removeAvailability command
func RemoveAvailabilityCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "removeAvailability <volunteer_id> <slot_id>",
		Short: "Remove a weekly availability slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.RemoveAvailability(app.Ctx, app.Store, app.Logger, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("\n✓ Availability removed\n\n")
			return nil
		},
	}
}

// GrantCmd creates the grant command
func GrantCmd(app *AppContext) *cobra.Command {
	return permissionCmd(app, "grant", "Grant a permission (respond_to_need, coordinate, manage)", true)
}

// RevokeCmd creates the revoke command
func RevokeCmd(app *AppContext) *cobra.Command {
	return permissionCmd(app, "revoke", "Revoke a permission; revoking respond_to_need deactivates a volunteer", false)
}

func permissionCmd(app *AppContext, use, short string, granted bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <volunteer_id> <permission>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug(use+" command", zap.String("volunteer_id", args[0]), zap.String("permission", args[1]))

			vol, err := services.SetPermission(app.Ctx, app.Store, app.Logger, args[0], model.Permission(args[1]), granted)
			if err != nil {
				return err
			}

			perms := make([]string, 0, len(vol.Permissions))
			for _, p := range vol.Permissions {
				perms = append(perms, string(p))
			}
			fmt.Printf("\n✓ %s now has: %s\n\n", vol.Name(), strings.Join(perms, ", "))
			return nil
		},
	}
}

func formatDays(slot model.AvailabilitySlot) string {
	flags := []struct {
		set  bool
		name string
	}{
		{slot.Sunday, "Sun"},
		{slot.Monday, "Mon"},
		{slot.Tuesday, "Tue"},
		{slot.Wednesday, "Wed"},
		{slot.Thursday, "Thu"},
		{slot.Friday, "Fri"},
		{slot.Saturday, "Sat"},
	}
	var days []string
	for _, f := range flags {
		if f.set {
			days = append(days, f.name)
		}
	}
	return strings.Join(days, ",")
}
