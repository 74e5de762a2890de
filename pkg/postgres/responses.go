package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
)

// GetResponse retrieves the ledger row for a (volunteer, event) pair
func (t *pgTx) GetResponse(ctx context.Context, volunteerID, eventID string) (*model.Response, error) {
	var r model.Response
	var state string
	err := t.tx.QueryRow(ctx, `
		SELECT volunteer_id, event_id, state, updated_at, reminded_at
		FROM response
		WHERE volunteer_id = $1 AND event_id = $2
	`, volunteerID, eventID).Scan(&r.VolunteerID, &r.EventID, &state, &r.UpdatedAt, &r.RemindedAt)
	if err != nil {
		if nf := notFound(err, fmt.Sprintf("response for volunteer %s and event %s", volunteerID, eventID)); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	r.State = model.ResponseState(state)
	return &r, nil
}

// PutResponse inserts or replaces the ledger row for a pair
func (t *pgTx) PutResponse(ctx context.Context, r *model.Response) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO response (volunteer_id, event_id, state, updated_at, reminded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (volunteer_id, event_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at, reminded_at = EXCLUDED.reminded_at
	`, r.VolunteerID, r.EventID, string(r.State), r.UpdatedAt.UTC(), r.RemindedAt)
	if err != nil {
		if nf := notFound(err, fmt.Sprintf("volunteer %s or event %s", r.VolunteerID, r.EventID)); nf != nil {
			return nf
		}
		return fmt.Errorf("failed to put response: %w", err)
	}
	return nil
}

// DeleteResponse removes the ledger row for a pair, if any
func (t *pgTx) DeleteResponse(ctx context.Context, volunteerID, eventID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM response WHERE volunteer_id = $1 AND event_id = $2`, volunteerID, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete response: %w", err)
	}
	return nil
}

// ListResponsesForEvent retrieves every ledger row for an event
func (t *pgTx) ListResponsesForEvent(ctx context.Context, eventID string) ([]model.Response, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT volunteer_id, event_id, state, updated_at, reminded_at
		FROM response
		WHERE event_id = $1
		ORDER BY updated_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	responses := []model.Response{}
	for rows.Next() {
		var r model.Response
		var state string
		if err := rows.Scan(&r.VolunteerID, &r.EventID, &state, &r.UpdatedAt, &r.RemindedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		r.State = model.ResponseState(state)
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating responses: %w", err)
	}
	return responses, nil
}

// ListCommittedEvents retrieves the events a volunteer is committed to
func (t *pgTx) ListCommittedEvents(ctx context.Context, volunteerID string) ([]model.NeedEvent, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+eventColumns("e")+`
		FROM need_event e
		JOIN response r ON r.event_id = e.id
		WHERE r.volunteer_id = $1 AND r.state = 'committed'
		ORDER BY e.date, e.time_of_need, e.id
	`, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query committed events: %w", err)
	}
	return collectEvents(rows)
}

// MarkReminded records when the commitment reminder went out
func (t *pgTx) MarkReminded(ctx context.Context, volunteerID, eventID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE response SET reminded_at = $3 WHERE volunteer_id = $1 AND event_id = $2
	`, volunteerID, eventID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to mark reminded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("response for volunteer %s and event %s: %w", volunteerID, eventID, db.ErrNotFound)
	}
	return nil
}
