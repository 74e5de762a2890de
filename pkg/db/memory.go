package db

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jakechorley/unter/pkg/core/model"
)

type pairKey struct {
	volunteerID string
	eventID     string
}

type memState struct {
	volunteers map[string]model.Volunteer
	slots      map[string]model.AvailabilitySlot
	eventTypes map[string]model.EventType
	events     map[string]model.NeedEvent
	responses  map[pairKey]model.Response
	tokens     map[pairKey]model.ResponseToken
	tokenIndex map[string]pairKey
}

func newMemState() *memState {
	return &memState{
		volunteers: make(map[string]model.Volunteer),
		slots:      make(map[string]model.AvailabilitySlot),
		eventTypes: make(map[string]model.EventType),
		events:     make(map[string]model.NeedEvent),
		responses:  make(map[pairKey]model.Response),
		tokens:     make(map[pairKey]model.ResponseToken),
		tokenIndex: make(map[string]pairKey),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.volunteers {
		v.Permissions = slices.Clone(v.Permissions)
		c.volunteers[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.eventTypes {
		c.eventTypes[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.responses {
		if v.RemindedAt != nil {
			at := *v.RemindedAt
			v.RemindedAt = &at
		}
		c.responses[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.tokenIndex {
		c.tokenIndex[k] = v
	}
	return c
}

// MemoryDB is an in-process Store used by tests and dry runs.
// Transactions are serialised by a single mutex and work on a copy of the
// state that replaces the live state only when the transaction succeeds.
type MemoryDB struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryDB creates an empty in-memory store
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{state: newMemState()}
}

// WithTx runs fn against a snapshot of the store and keeps its changes only if fn returns nil
func (m *MemoryDB) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

type memTx struct {
	state *memState
}

func (t *memTx) volunteerWithSlots(v model.Volunteer) model.Volunteer {
	v.Permissions = slices.Clone(v.Permissions)
	v.Availability = nil
	for _, slot := range t.state.slots {
		if slot.VolunteerID == v.ID {
			v.Availability = append(v.Availability, slot)
		}
	}
	sort.Slice(v.Availability, func(i, j int) bool {
		if v.Availability[i].StartTime != v.Availability[j].StartTime {
			return v.Availability[i].StartTime < v.Availability[j].StartTime
		}
		return v.Availability[i].ID < v.Availability[j].ID
	})
	return v
}

func (t *memTx) GetVolunteer(ctx context.Context, id string) (*model.Volunteer, error) {
	v, ok := t.state.volunteers[id]
	if !ok {
		return nil, fmt.Errorf("volunteer %s: %w", id, ErrNotFound)
	}
	v = t.volunteerWithSlots(v)
	return &v, nil
}

func (t *memTx) ListVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	result := make([]model.Volunteer, 0, len(t.state.volunteers))
	for _, v := range t.state.volunteers {
		result = append(result, t.volunteerWithSlots(v))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserName < result[j].UserName
	})
	return result, nil
}

func (t *memTx) InsertVolunteer(ctx context.Context, vol *model.Volunteer) error {
	if _, exists := t.state.volunteers[vol.ID]; exists {
		return fmt.Errorf("volunteer %s already exists", vol.ID)
	}
	for _, existing := range t.state.volunteers {
		if existing.UserName == vol.UserName {
			return fmt.Errorf("user name %q is already taken", vol.UserName)
		}
	}
	v := *vol
	v.Permissions = slices.Clone(vol.Permissions)
	v.Availability = nil
	t.state.volunteers[v.ID] = v
	for _, slot := range vol.Availability {
		slot.VolunteerID = v.ID
		t.state.slots[slot.ID] = slot
	}
	return nil
}

func (t *memTx) SetPermissions(ctx context.Context, volunteerID string, perms []model.Permission) error {
	v, ok := t.state.volunteers[volunteerID]
	if !ok {
		return fmt.Errorf("volunteer %s: %w", volunteerID, ErrNotFound)
	}
	v.Permissions = slices.Clone(perms)
	t.state.volunteers[volunteerID] = v
	return nil
}

func (t *memTx) InsertAvailabilitySlot(ctx context.Context, slot *model.AvailabilitySlot) error {
	if _, ok := t.state.volunteers[slot.VolunteerID]; !ok {
		return fmt.Errorf("volunteer %s: %w", slot.VolunteerID, ErrNotFound)
	}
	t.state.slots[slot.ID] = *slot
	return nil
}

func (t *memTx) DeleteAvailabilitySlot(ctx context.Context, volunteerID, slotID string) error {
	slot, ok := t.state.slots[slotID]
	if !ok || slot.VolunteerID != volunteerID {
		return fmt.Errorf("availability slot %s: %w", slotID, ErrNotFound)
	}
	delete(t.state.slots, slotID)
	return nil
}

func (t *memTx) GetNeedEvent(ctx context.Context, id string) (*model.NeedEvent, error) {
	ev, ok := t.state.events[id]
	if !ok {
		return nil, fmt.Errorf("need event %s: %w", id, ErrNotFound)
	}
	return &ev, nil
}

// LockNeedEvent is a plain read; the store mutex already serialises transactions
func (t *memTx) LockNeedEvent(ctx context.Context, id string) (*model.NeedEvent, error) {
	return t.GetNeedEvent(ctx, id)
}

func (t *memTx) ListOpenNeedEvents(ctx context.Context) ([]model.NeedEvent, error) {
	result := []model.NeedEvent{}
	for _, ev := range t.state.events {
		if ev.IsOpen() {
			result = append(result, ev)
		}
	}
	sortEvents(result)
	return result, nil
}

func (t *memTx) InsertNeedEvent(ctx context.Context, ev *model.NeedEvent) error {
	if _, exists := t.state.events[ev.ID]; exists {
		return fmt.Errorf("need event %s already exists", ev.ID)
	}
	if _, ok := t.state.eventTypes[ev.EventTypeID]; !ok {
		return fmt.Errorf("event type %s: %w", ev.EventTypeID, ErrNotFound)
	}
	t.state.events[ev.ID] = *ev
	return nil
}

func (t *memTx) UpdateNeedEvent(ctx context.Context, ev *model.NeedEvent) error {
	if _, ok := t.state.events[ev.ID]; !ok {
		return fmt.Errorf("need event %s: %w", ev.ID, ErrNotFound)
	}
	t.state.events[ev.ID] = *ev
	return nil
}

func (t *memTx) RecurrenceExists(ctx context.Context, recurrenceID string, date time.Time) (bool, error) {
	y, m, d := date.Date()
	for _, ev := range t.state.events {
		if ev.RecurrenceID != recurrenceID {
			continue
		}
		ey, em, ed := ev.Date.Date()
		if ey == y && em == m && ed == d {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) GetEventType(ctx context.Context, id string) (*model.EventType, error) {
	et, ok := t.state.eventTypes[id]
	if !ok {
		return nil, fmt.Errorf("event type %s: %w", id, ErrNotFound)
	}
	return &et, nil
}

func (t *memTx) ListEventTypes(ctx context.Context) ([]model.EventType, error) {
	result := make([]model.EventType, 0, len(t.state.eventTypes))
	for _, et := range t.state.eventTypes {
		result = append(result, et)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (t *memTx) InsertEventType(ctx context.Context, et *model.EventType) error {
	for _, existing := range t.state.eventTypes {
		if existing.Name == et.Name {
			return fmt.Errorf("event type %q already exists", et.Name)
		}
	}
	t.state.eventTypes[et.ID] = *et
	return nil
}

func (t *memTx) GetResponse(ctx context.Context, volunteerID, eventID string) (*model.Response, error) {
	r, ok := t.state.responses[pairKey{volunteerID, eventID}]
	if !ok {
		return nil, fmt.Errorf("response for volunteer %s and event %s: %w", volunteerID, eventID, ErrNotFound)
	}
	return &r, nil
}

func (t *memTx) PutResponse(ctx context.Context, resp *model.Response) error {
	if _, ok := t.state.volunteers[resp.VolunteerID]; !ok {
		return fmt.Errorf("volunteer %s: %w", resp.VolunteerID, ErrNotFound)
	}
	if _, ok := t.state.events[resp.EventID]; !ok {
		return fmt.Errorf("need event %s: %w", resp.EventID, ErrNotFound)
	}
	t.state.responses[pairKey{resp.VolunteerID, resp.EventID}] = *resp
	return nil
}

func (t *memTx) DeleteResponse(ctx context.Context, volunteerID, eventID string) error {
	delete(t.state.responses, pairKey{volunteerID, eventID})
	return nil
}

func (t *memTx) ListResponsesForEvent(ctx context.Context, eventID string) ([]model.Response, error) {
	result := []model.Response{}
	for key, r := range t.state.responses {
		if key.eventID == eventID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	return result, nil
}

func (t *memTx) ListCommittedEvents(ctx context.Context, volunteerID string) ([]model.NeedEvent, error) {
	result := []model.NeedEvent{}
	for key, r := range t.state.responses {
		if key.volunteerID != volunteerID || r.State != model.ResponseCommitted {
			continue
		}
		if ev, ok := t.state.events[key.eventID]; ok {
			result = append(result, ev)
		}
	}
	sortEvents(result)
	return result, nil
}

func (t *memTx) MarkReminded(ctx context.Context, volunteerID, eventID string, at time.Time) error {
	key := pairKey{volunteerID, eventID}
	r, ok := t.state.responses[key]
	if !ok {
		return fmt.Errorf("response for volunteer %s and event %s: %w", volunteerID, eventID, ErrNotFound)
	}
	r.RemindedAt = &at
	t.state.responses[key] = r
	return nil
}

func (t *memTx) GetResponseToken(ctx context.Context, volunteerID, eventID string) (*model.ResponseToken, error) {
	tok, ok := t.state.tokens[pairKey{volunteerID, eventID}]
	if !ok {
		return nil, fmt.Errorf("token for volunteer %s and event %s: %w", volunteerID, eventID, ErrNotFound)
	}
	return &tok, nil
}

func (t *memTx) GetResponseTokenByValue(ctx context.Context, token string) (*model.ResponseToken, error) {
	key, ok := t.state.tokenIndex[token]
	if !ok {
		return nil, fmt.Errorf("token: %w", ErrNotFound)
	}
	tok := t.state.tokens[key]
	return &tok, nil
}

func (t *memTx) InsertResponseToken(ctx context.Context, tok *model.ResponseToken) error {
	key := pairKey{tok.VolunteerID, tok.EventID}
	if _, exists := t.state.tokens[key]; exists {
		return fmt.Errorf("token already exists for volunteer %s and event %s", tok.VolunteerID, tok.EventID)
	}
	if _, exists := t.state.tokenIndex[tok.Token]; exists {
		return fmt.Errorf("token value collision")
	}
	t.state.tokens[key] = *tok
	t.state.tokenIndex[tok.Token] = key
	return nil
}

func sortEvents(events []model.NeedEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		if events[i].TimeOfNeed != events[j].TimeOfNeed {
			return events[i].TimeOfNeed < events[j].TimeOfNeed
		}
		return events[i].ID < events[j].ID
	})
}
