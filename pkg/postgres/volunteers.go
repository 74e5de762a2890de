package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
)

const volunteerColumns = `id, user_name, display_name, email, phone, text_alerts_ok, description, zipcode, permissions`

const slotColumns = `id, volunteer_id, sunday, monday, tuesday, wednesday, thursday, friday, saturday, start_time, end_time`

func scanVolunteer(row pgx.Row) (model.Volunteer, error) {
	var v model.Volunteer
	var perms []string
	err := row.Scan(&v.ID, &v.UserName, &v.DisplayName, &v.Email, &v.Phone, &v.TextAlertsOK, &v.Description, &v.Zipcode, &perms)
	if err != nil {
		return v, err
	}
	for _, p := range perms {
		v.Permissions = append(v.Permissions, model.Permission(p))
	}
	return v, nil
}

func scanSlot(row pgx.Row) (model.AvailabilitySlot, error) {
	var s model.AvailabilitySlot
	err := row.Scan(&s.ID, &s.VolunteerID, &s.Sunday, &s.Monday, &s.Tuesday, &s.Wednesday, &s.Thursday, &s.Friday, &s.Saturday, &s.StartTime, &s.EndTime)
	return s, err
}

// notFound maps pgx.ErrNoRows and foreign-key violations onto db.ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, db.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%s: %w", what, db.ErrNotFound)
	}
	return nil
}

// GetVolunteer retrieves a volunteer with its availability slots
func (t *pgTx) GetVolunteer(ctx context.Context, id string) (*model.Volunteer, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+volunteerColumns+` FROM volunteer WHERE id = $1`, id)
	v, err := scanVolunteer(row)
	if err != nil {
		if nf := notFound(err, "volunteer "+id); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get volunteer: %w", err)
	}

	slots, err := t.querySlots(ctx, `SELECT `+slotColumns+` FROM availability_slot WHERE volunteer_id = $1 ORDER BY start_time, id`, id)
	if err != nil {
		return nil, err
	}
	v.Availability = slots
	return &v, nil
}

// ListVolunteers retrieves all volunteers with their availability slots
func (t *pgTx) ListVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+volunteerColumns+` FROM volunteer ORDER BY user_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query volunteers: %w", err)
	}
	defer rows.Close()

	var volunteers []model.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan volunteer: %w", err)
		}
		volunteers = append(volunteers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating volunteers: %w", err)
	}

	slots, err := t.querySlots(ctx, `SELECT `+slotColumns+` FROM availability_slot ORDER BY start_time, id`)
	if err != nil {
		return nil, err
	}
	byVolunteer := make(map[string][]model.AvailabilitySlot)
	for _, s := range slots {
		byVolunteer[s.VolunteerID] = append(byVolunteer[s.VolunteerID], s)
	}
	for i := range volunteers {
		volunteers[i].Availability = byVolunteer[volunteers[i].ID]
	}

	return volunteers, nil
}

func (t *pgTx) querySlots(ctx context.Context, sql string, args ...any) ([]model.AvailabilitySlot, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability slots: %w", err)
	}
	defer rows.Close()

	var slots []model.AvailabilitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan availability slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating availability slots: %w", err)
	}
	return slots, nil
}

// InsertVolunteer inserts a volunteer and any availability slots it carries
func (t *pgTx) InsertVolunteer(ctx context.Context, vol *model.Volunteer) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO volunteer (`+volunteerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, vol.ID, vol.UserName, vol.DisplayName, vol.Email, vol.Phone, vol.TextAlertsOK, vol.Description, vol.Zipcode, permissionStrings(vol.Permissions))
	if err != nil {
		return fmt.Errorf("failed to insert volunteer: %w", err)
	}

	for i := range vol.Availability {
		slot := vol.Availability[i]
		slot.VolunteerID = vol.ID
		if err := t.InsertAvailabilitySlot(ctx, &slot); err != nil {
			return err
		}
	}
	return nil
}

// SetPermissions replaces a volunteer's permission set
func (t *pgTx) SetPermissions(ctx context.Context, volunteerID string, perms []model.Permission) error {
	tag, err := t.tx.Exec(ctx, `UPDATE volunteer SET permissions = $2 WHERE id = $1`, volunteerID, permissionStrings(perms))
	if err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("volunteer %s: %w", volunteerID, db.ErrNotFound)
	}
	return nil
}

// InsertAvailabilitySlot inserts one weekly availability slot
func (t *pgTx) InsertAvailabilitySlot(ctx context.Context, s *model.AvailabilitySlot) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO availability_slot (`+slotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.ID, s.VolunteerID, s.Sunday, s.Monday, s.Tuesday, s.Wednesday, s.Thursday, s.Friday, s.Saturday, s.StartTime, s.EndTime)
	if err != nil {
		if nf := notFound(err, "volunteer "+s.VolunteerID); nf != nil {
			return nf
		}
		return fmt.Errorf("failed to insert availability slot: %w", err)
	}
	return nil
}

// DeleteAvailabilitySlot removes a slot owned by the given volunteer
func (t *pgTx) DeleteAvailabilitySlot(ctx context.Context, volunteerID, slotID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM availability_slot WHERE id = $1 AND volunteer_id = $2`, slotID, volunteerID)
	if err != nil {
		return fmt.Errorf("failed to delete availability slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("availability slot %s: %w", slotID, db.ErrNotFound)
	}
	return nil
}

func permissionStrings(perms []model.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}
