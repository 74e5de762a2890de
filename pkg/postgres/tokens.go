package postgres

import (
	"context"
	"fmt"

	"github.com/jakechorley/unter/pkg/core/model"
)

// GetResponseToken retrieves the token minted for a (volunteer, event) pair
func (t *pgTx) GetResponseToken(ctx context.Context, volunteerID, eventID string) (*model.ResponseToken, error) {
	var tok model.ResponseToken
	err := t.tx.QueryRow(ctx, `
		SELECT token, volunteer_id, event_id, created_at
		FROM response_token
		WHERE volunteer_id = $1 AND event_id = $2
	`, volunteerID, eventID).Scan(&tok.Token, &tok.VolunteerID, &tok.EventID, &tok.CreatedAt)
	if err != nil {
		if nf := notFound(err, fmt.Sprintf("token for volunteer %s and event %s", volunteerID, eventID)); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get response token: %w", err)
	}
	return &tok, nil
}

// GetResponseTokenByValue resolves a token string to its pair
func (t *pgTx) GetResponseTokenByValue(ctx context.Context, token string) (*model.ResponseToken, error) {
	var tok model.ResponseToken
	err := t.tx.QueryRow(ctx, `
		SELECT token, volunteer_id, event_id, created_at
		FROM response_token
		WHERE token = $1
	`, token).Scan(&tok.Token, &tok.VolunteerID, &tok.EventID, &tok.CreatedAt)
	if err != nil {
		if nf := notFound(err, "token"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to resolve response token: %w", err)
	}
	return &tok, nil
}

// InsertResponseToken stores a newly minted token
func (t *pgTx) InsertResponseToken(ctx context.Context, tok *model.ResponseToken) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO response_token (token, volunteer_id, event_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, tok.Token, tok.VolunteerID, tok.EventID, tok.CreatedAt.UTC())
	if err != nil {
		if nf := notFound(err, fmt.Sprintf("volunteer %s or event %s", tok.VolunteerID, tok.EventID)); nf != nil {
			return nf
		}
		return fmt.Errorf("failed to insert response token: %w", err)
	}
	return nil
}
