package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
	"github.com/jakechorley/unter/pkg/notify"
)

// GenericResponseMessage is shown for every token response so that the reply
// never reveals whether a token was valid
const GenericResponseMessage = "Thank you for responding."

// ResponseOutcome summarises a token response for logs and callers
type ResponseOutcome struct {
	Resolved bool
	Action   string
	Commit   *CommitResult
	Decommit *DecommitResult
}

// ResolveToken maps a response token to its volunteer and event.
// It returns nil values when the token or either entity is unknown; the token is never modified.
func ResolveToken(ctx context.Context, store db.Store, token string) (*model.Volunteer, *model.NeedEvent, error) {
	var vol *model.Volunteer
	var ev *model.NeedEvent

	err := store.WithTx(ctx, func(tx db.Tx) error {
		tok, err := tx.GetResponseTokenByValue(ctx, token)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to resolve token: %w", err)
		}

		v, e, err := resolvePair(ctx, tx, tok.VolunteerID, tok.EventID, false)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return err
		}
		vol, ev = v, e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return vol, ev, nil
}

// HandleResponse applies a link click: accept commits, refuse declines.
// Unknown tokens and actions are logged and otherwise ignored.
func HandleResponse(
	ctx context.Context,
	store db.Store,
	notifier Notifier,
	clock Clock,
	logger *zap.Logger,
	token string,
	action string,
) (*ResponseOutcome, error) {
	outcome := &ResponseOutcome{Action: action}

	vol, ev, err := ResolveToken(ctx, store, token)
	if err != nil {
		return nil, err
	}
	if vol == nil || ev == nil {
		logger.Info("Response with unknown token", zap.String("action", action))
		return outcome, nil
	}
	outcome.Resolved = true

	switch action {
	case notify.ActionAccept:
		outcome.Commit, err = Commit(ctx, store, notifier, clock, logger, vol.ID, ev.ID)
	case notify.ActionRefuse:
		outcome.Decommit, err = Decommit(ctx, store, notifier, clock, logger, vol.ID, ev.ID)
	default:
		logger.Info("Response with unknown action",
			zap.String("action", action),
			zap.String("volunteer_id", vol.ID),
			zap.String("event_id", ev.ID))
		return outcome, nil
	}
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// RespondByUserAction commits a signed-in volunteer to an event
func RespondByUserAction(
	ctx context.Context,
	store db.Store,
	notifier Notifier,
	clock Clock,
	logger *zap.Logger,
	volunteerID string,
	eventID string,
) (*CommitResult, error) {
	logger.Debug("Response by user action", zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))
	return Commit(ctx, store, notifier, clock, logger, volunteerID, eventID)
}
