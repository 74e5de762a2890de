package db

import (
	"context"
	"errors"
	"time"

	"github.com/jakechorley/unter/pkg/core/model"
)

// ErrNotFound is returned (wrapped) when a lookup by key matches no row
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store runs units of work transactionally.
// Both the Postgres-backed postgres.DB and the in-memory db.MemoryDB implement this interface.
type Store interface {
	// WithTx runs fn inside a single transaction. The transaction commits if fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx defines every operation available inside a transaction
type Tx interface {
	VolunteerStore
	EventStore
	ResponseStore
	TokenStore
}

// VolunteerStore defines volunteer and availability operations
type VolunteerStore interface {
	GetVolunteer(ctx context.Context, id string) (*model.Volunteer, error)
	ListVolunteers(ctx context.Context) ([]model.Volunteer, error)
	InsertVolunteer(ctx context.Context, vol *model.Volunteer) error
	SetPermissions(ctx context.Context, volunteerID string, perms []model.Permission) error
	InsertAvailabilitySlot(ctx context.Context, slot *model.AvailabilitySlot) error
	DeleteAvailabilitySlot(ctx context.Context, volunteerID, slotID string) error
}

// EventStore defines need event and event type operations
type EventStore interface {
	GetNeedEvent(ctx context.Context, id string) (*model.NeedEvent, error)
	// LockNeedEvent reads the event and holds a write lock on it until the transaction ends
	LockNeedEvent(ctx context.Context, id string) (*model.NeedEvent, error)
	ListOpenNeedEvents(ctx context.Context) ([]model.NeedEvent, error)
	InsertNeedEvent(ctx context.Context, ev *model.NeedEvent) error
	UpdateNeedEvent(ctx context.Context, ev *model.NeedEvent) error
	RecurrenceExists(ctx context.Context, recurrenceID string, date time.Time) (bool, error)
	GetEventType(ctx context.Context, id string) (*model.EventType, error)
	ListEventTypes(ctx context.Context) ([]model.EventType, error)
	InsertEventType(ctx context.Context, et *model.EventType) error
}

// ResponseStore defines the commitment ledger operations.
// There is at most one response row per (volunteer, event) pair.
type ResponseStore interface {
	GetResponse(ctx context.Context, volunteerID, eventID string) (*model.Response, error)
	// PutResponse inserts or replaces the row for the pair
	PutResponse(ctx context.Context, resp *model.Response) error
	DeleteResponse(ctx context.Context, volunteerID, eventID string) error
	ListResponsesForEvent(ctx context.Context, eventID string) ([]model.Response, error)
	// ListCommittedEvents returns the events the volunteer holds a live commitment to
	ListCommittedEvents(ctx context.Context, volunteerID string) ([]model.NeedEvent, error)
	MarkReminded(ctx context.Context, volunteerID, eventID string, at time.Time) error
}

// TokenStore defines response token operations. Tokens are never deleted here.
type TokenStore interface {
	GetResponseToken(ctx context.Context, volunteerID, eventID string) (*model.ResponseToken, error)
	GetResponseTokenByValue(ctx context.Context, token string) (*model.ResponseToken, error)
	InsertResponseToken(ctx context.Context, tok *model.ResponseToken) error
}
