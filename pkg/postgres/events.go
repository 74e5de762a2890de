package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
)

// eventColumns lists the need_event columns in scanEvent order, qualified by alias when set
func eventColumns(alias string) string {
	p := ""
	if alias != "" {
		p = alias + "."
	}
	return fmt.Sprintf(`%[1]sid, %[1]sevent_type_id, %[1]sdate, %[1]stime_of_need, %[1]sduration, %[1]svolunteer_count,
		%[1]saffected_persons, %[1]slocation, %[1]snotes, COALESCE(%[1]screated_by, ''), %[1]scomplete, %[1]scancelled,
		%[1]slast_alert_time, COALESCE(%[1]srecurrence_id, '')`, p)
}

func scanEvent(row pgx.Row) (model.NeedEvent, error) {
	var ev model.NeedEvent
	err := row.Scan(&ev.ID, &ev.EventTypeID, &ev.Date, &ev.TimeOfNeed, &ev.Duration, &ev.VolunteerCount, &ev.AffectedPersons,
		&ev.Location, &ev.Notes, &ev.CreatedBy, &ev.Complete, &ev.Cancelled, &ev.LastAlertTime, &ev.RecurrenceID)
	return ev, err
}

func (t *pgTx) getEvent(ctx context.Context, sql, id string) (*model.NeedEvent, error) {
	ev, err := scanEvent(t.tx.QueryRow(ctx, sql, id))
	if err != nil {
		if nf := notFound(err, "need event "+id); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get need event: %w", err)
	}
	return &ev, nil
}

// GetNeedEvent retrieves a need event by ID
func (t *pgTx) GetNeedEvent(ctx context.Context, id string) (*model.NeedEvent, error) {
	return t.getEvent(ctx, `SELECT `+eventColumns("")+` FROM need_event WHERE id = $1`, id)
}

// LockNeedEvent retrieves a need event and locks its row until the transaction ends,
// serialising concurrent commits to the same event
func (t *pgTx) LockNeedEvent(ctx context.Context, id string) (*model.NeedEvent, error) {
	return t.getEvent(ctx, `SELECT `+eventColumns("")+` FROM need_event WHERE id = $1 FOR UPDATE`, id)
}

// ListOpenNeedEvents retrieves events that are neither complete nor cancelled
func (t *pgTx) ListOpenNeedEvents(ctx context.Context) ([]model.NeedEvent, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+eventColumns("")+`
		FROM need_event
		WHERE NOT complete AND NOT cancelled
		ORDER BY date, time_of_need, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query need events: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]model.NeedEvent, error) {
	defer rows.Close()

	events := []model.NeedEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan need event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating need events: %w", err)
	}
	return events, nil
}

// InsertNeedEvent inserts a new need event
func (t *pgTx) InsertNeedEvent(ctx context.Context, ev *model.NeedEvent) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO need_event (id, event_type_id, date, time_of_need, duration, volunteer_count, affected_persons,
			location, notes, created_by, complete, cancelled, last_alert_time, recurrence_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13, NULLIF($14, ''))
	`, ev.ID, ev.EventTypeID, dateOnly(ev.Date), ev.TimeOfNeed, ev.Duration, ev.VolunteerCount, ev.AffectedPersons,
		ev.Location, ev.Notes, ev.CreatedBy, ev.Complete, ev.Cancelled, ev.LastAlertTime, ev.RecurrenceID)
	if err != nil {
		if nf := notFound(err, "event type "+ev.EventTypeID); nf != nil {
			return nf
		}
		return fmt.Errorf("failed to insert need event: %w", err)
	}
	return nil
}

// UpdateNeedEvent writes back the mutable fields of a need event
func (t *pgTx) UpdateNeedEvent(ctx context.Context, ev *model.NeedEvent) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE need_event
		SET location = $2, notes = $3, volunteer_count = $4, complete = $5, cancelled = $6, last_alert_time = $7
		WHERE id = $1
	`, ev.ID, ev.Location, ev.Notes, ev.VolunteerCount, ev.Complete, ev.Cancelled, ev.LastAlertTime)
	if err != nil {
		return fmt.Errorf("failed to update need event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("need event %s: %w", ev.ID, db.ErrNotFound)
	}
	return nil
}

// RecurrenceExists reports whether a recurring need has already been expanded on date
func (t *pgTx) RecurrenceExists(ctx context.Context, recurrenceID string, date time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM need_event WHERE recurrence_id = $1 AND date = $2)
	`, recurrenceID, dateOnly(date)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check recurrence: %w", err)
	}
	return exists, nil
}

// GetEventType retrieves an event type by ID
func (t *pgTx) GetEventType(ctx context.Context, id string) (*model.EventType, error) {
	var et model.EventType
	err := t.tx.QueryRow(ctx, `SELECT id, name, description FROM event_type WHERE id = $1`, id).
		Scan(&et.ID, &et.Name, &et.Description)
	if err != nil {
		if nf := notFound(err, "event type "+id); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get event type: %w", err)
	}
	return &et, nil
}

// ListEventTypes retrieves all event types ordered by name
func (t *pgTx) ListEventTypes(ctx context.Context) ([]model.EventType, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, name, description FROM event_type ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query event types: %w", err)
	}
	defer rows.Close()

	var types []model.EventType
	for rows.Next() {
		var et model.EventType
		if err := rows.Scan(&et.ID, &et.Name, &et.Description); err != nil {
			return nil, fmt.Errorf("failed to scan event type: %w", err)
		}
		types = append(types, et)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event types: %w", err)
	}
	return types, nil
}

// InsertEventType inserts a new event type
func (t *pgTx) InsertEventType(ctx context.Context, et *model.EventType) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO event_type (id, name, description) VALUES ($1, $2, $3)
	`, et.ID, et.Name, et.Description)
	if err != nil {
		return fmt.Errorf("failed to insert event type: %w", err)
	}
	return nil
}

// dateOnly strips the clock so DATE columns receive the calendar day as written
func dateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}
