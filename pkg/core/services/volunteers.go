package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
)

var validate = validator.New()

// RegisterVolunteerInput holds the fields collected at registration
type RegisterVolunteerInput struct {
	UserName     string `validate:"required,alphanum,min=3,max=32"`
	DisplayName  string `validate:"max=100"`
	Email        string `validate:"required,email"`
	Phone        string `validate:"omitempty,min=7,max=20"`
	TextAlertsOK bool
	Description  string `validate:"max=500"`
	Zipcode      string `validate:"omitempty,numeric,len=5"`
	// Permissions defaults to respond_to_need when empty
	Permissions []model.Permission
}

// AvailabilityInput describes one weekly slot; times are HH:MM
type AvailabilityInput struct {
	Days  []string `validate:"required,min=1,dive,oneof=sun mon tue wed thu fri sat"`
	Start string   `validate:"required"`
	End   string   `validate:"required"`
}

// RegisterVolunteer creates a volunteer
func RegisterVolunteer(ctx context.Context, store db.Store, logger *zap.Logger, input RegisterVolunteerInput) (*model.Volunteer, error) {
	logger.Debug("Registering volunteer", zap.String("user_name", input.UserName))

	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid volunteer: %w", err)
	}

	perms := input.Permissions
	if len(perms) == 0 {
		perms = []model.Permission{model.PermissionRespondToNeed}
	}
	for _, p := range perms {
		if !p.IsValid() {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
	}

	vol := &model.Volunteer{
		ID:           uuid.New().String(),
		UserName:     input.UserName,
		DisplayName:  input.DisplayName,
		Email:        strings.ToLower(input.Email),
		Phone:        input.Phone,
		TextAlertsOK: input.TextAlertsOK,
		Description:  input.Description,
		Zipcode:      input.Zipcode,
		Permissions:  perms,
	}

	err := store.WithTx(ctx, func(tx db.Tx) error {
		return tx.InsertVolunteer(ctx, vol)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register volunteer: %w", err)
	}

	logger.Info("Volunteer registered", zap.String("volunteer_id", vol.ID), zap.String("user_name", vol.UserName))
	return vol, nil
}

// AddAvailability adds a weekly availability slot to a volunteer
func AddAvailability(ctx context.Context, store db.Store, logger *zap.Logger, volunteerID string, input AvailabilityInput) (*model.AvailabilitySlot, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid availability: %w", err)
	}

	slot, err := slotFromInput(input)
	if err != nil {
		return nil, err
	}
	slot.ID = uuid.New().String()
	slot.VolunteerID = volunteerID

	err = store.WithTx(ctx, func(tx db.Tx) error {
		return tx.InsertAvailabilitySlot(ctx, slot)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add availability: %w", err)
	}

	logger.Info("Availability added",
		zap.String("volunteer_id", volunteerID),
		zap.String("slot_id", slot.ID),
		zap.Strings("days", input.Days),
		zap.String("start", input.Start),
		zap.String("end", input.End))
	return slot, nil
}

// RemoveAvailability deletes one of a volunteer's availability slots
func RemoveAvailability(ctx context.Context, store db.Store, logger *zap.Logger, volunteerID, slotID string) error {
	err := store.WithTx(ctx, func(tx db.Tx) error {
		return tx.DeleteAvailabilitySlot(ctx, volunteerID, slotID)
	})
	if err != nil {
		return fmt.Errorf("failed to remove availability: %w", err)
	}
	logger.Info("Availability removed", zap.String("volunteer_id", volunteerID), zap.String("slot_id", slotID))
	return nil
}

// SetPermission grants or revokes a permission. Revoking respond_to_need is how a
// volunteer is deactivated.
func SetPermission(ctx context.Context, store db.Store, logger *zap.Logger, volunteerID string, perm model.Permission, granted bool) (*model.Volunteer, error) {
	if !perm.IsValid() {
		return nil, fmt.Errorf("unknown permission %q", perm)
	}

	var vol *model.Volunteer
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		vol, err = tx.GetVolunteer(ctx, volunteerID)
		if err != nil {
			return err
		}

		perms := slices.DeleteFunc(slices.Clone(vol.Permissions), func(p model.Permission) bool { return p == perm })
		if granted {
			perms = append(perms, perm)
		}
		vol.Permissions = perms
		return tx.SetPermissions(ctx, volunteerID, perms)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set permission: %w", err)
	}

	logger.Info("Permission updated",
		zap.String("volunteer_id", volunteerID),
		zap.String("permission", string(perm)),
		zap.Bool("granted", granted))
	return vol, nil
}

// ListVolunteers returns every volunteer with their availability
func ListVolunteers(ctx context.Context, store db.Store) ([]model.Volunteer, error) {
	var volunteers []model.Volunteer
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		volunteers, err = tx.ListVolunteers(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}
	return volunteers, nil
}

func slotFromInput(input AvailabilityInput) (*model.AvailabilitySlot, error) {
	start, err := model.ParseMinutes(input.Start)
	if err != nil {
		return nil, err
	}
	end, err := model.ParseMinutes(input.End)
	if err != nil {
		return nil, err
	}

	slot := &model.AvailabilitySlot{StartTime: start, EndTime: end}
	for _, day := range input.Days {
		switch day {
		case "sun":
			slot.Sunday = true
		case "mon":
			slot.Monday = true
		case "tue":
			slot.Tuesday = true
		case "wed":
			slot.Wednesday = true
		case "thu":
			slot.Thursday = true
		case "fri":
			slot.Friday = true
		case "sat":
			slot.Saturday = true
		}
	}

	if err := slot.Validate(); err != nil {
		return nil, err
	}
	return slot, nil
}
