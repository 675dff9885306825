package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/publication"
)

const backendMemory = "memory"

// MemoryStore keeps everything in process memory behind one RWMutex.
// Publish holds the write lock for its whole duration, so readers never see
// a published event without its log rows.
type MemoryStore struct {
	mu         sync.RWMutex
	members    map[string]map[string]model.Member // society -> member ID -> member
	events     map[string]model.Event
	raws       map[string][]model.RawResult
	resolved   map[string][]model.ResolvedResult
	maxMembers int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		members:  make(map[string]map[string]model.Member),
		events:   make(map[string]model.Event),
		raws:     make(map[string][]model.RawResult),
		resolved: make(map[string][]model.ResolvedResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertMember creates or replaces a member.
func (s *MemoryStore) UpsertMember(_ context.Context, m model.Member) error {
	defer observe(backendMemory, "upsert_member", time.Now())
	if err := validateMember(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	roster := s.members[m.SocietyID]
	if roster == nil {
		roster = make(map[string]model.Member)
		s.members[m.SocietyID] = roster
	}
	if _, exists := roster[m.ID]; !exists && s.maxMembers > 0 && len(roster) >= s.maxMembers {
		return fmt.Errorf("%w: %s has %d", ErrSocietyFull, m.SocietyID, len(roster))
	}
	roster[m.ID] = m
	return nil
}

// Members returns a society's roster ordered by member ID.
func (s *MemoryStore) Members(_ context.Context, societyID string) ([]model.Member, error) {
	defer observe(backendMemory, "members", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Member, 0, len(s.members[societyID]))
	for _, m := range s.members[societyID] {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b model.Member) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateEvent stores a new event.
func (s *MemoryStore) CreateEvent(_ context.Context, e model.Event) error {
	defer observe(backendMemory, "create_event", time.Now())
	e, err := normalizeEvent(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[e.ID]; exists {
		return fmt.Errorf("%w: event %s", ErrDuplicate, e.ID)
	}
	s.events[e.ID] = e
	return nil
}

// Event returns one event.
func (s *MemoryStore) Event(_ context.Context, eventID string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[eventID]
	if !ok {
		return model.Event{}, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	return cloneEvent(e), nil
}

// Events returns every event of a society.
func (s *MemoryStore) Events(_ context.Context, societyID string) ([]model.Event, error) {
	defer observe(backendMemory, "events", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, e := range s.events {
		if e.SocietyID == societyID {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}

// SaveDraft replaces the event's raw scores and moves it to draft.
func (s *MemoryStore) SaveDraft(_ context.Context, eventID string, raws []model.RawResult) (model.Event, error) {
	defer observe(backendMemory, "save_draft", time.Now())
	rows, err := normalizeRaws(eventID, raws)
	if err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return model.Event{}, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	next, err := publication.Transition(e.ResultsStatus, publication.ActionSaveDraft)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s: %w", eventID, err)
	}
	e.ResultsStatus = next
	s.events[eventID] = e
	s.raws[eventID] = rows
	return cloneEvent(e), nil
}

// ImportEvent stores an event and its inline scores without log rows.
func (s *MemoryStore) ImportEvent(_ context.Context, e model.Event, raws []model.RawResult) error {
	defer observe(backendMemory, "import_event", time.Now())
	e, err := normalizeEvent(e)
	if err != nil {
		return err
	}
	rows, err := normalizeRaws(e.ID, raws)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[e.ID]; exists {
		return fmt.Errorf("%w: event %s", ErrDuplicate, e.ID)
	}
	s.events[e.ID] = e
	s.raws[e.ID] = rows
	return nil
}

// Publish validates, resolves and commits an event's results under the
// write lock.
func (s *MemoryStore) Publish(_ context.Context, eventID string, fn PublishFunc) (model.Event, []model.ResolvedResult, error) {
	defer observe(backendMemory, "publish", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return model.Event{}, nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	next, err := publication.Transition(e.ResultsStatus, publication.ActionPublish)
	if err != nil {
		return model.Event{}, nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	rows, err := fn(cloneEvent(e), slices.Clone(s.raws[eventID]))
	if err != nil {
		return model.Event{}, nil, err
	}

	e.ResultsStatus = next
	s.events[eventID] = e
	s.resolved[eventID] = slices.Clone(rows)
	return cloneEvent(e), rows, nil
}

// RawResults returns the inline scores of the given events.
func (s *MemoryStore) RawResults(_ context.Context, eventIDs []string) (map[string][]model.RawResult, error) {
	defer observe(backendMemory, "raw_results", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]model.RawResult, len(eventIDs))
	for _, id := range eventIDs {
		if rows, ok := s.raws[id]; ok {
			out[id] = slices.Clone(rows)
		}
	}
	return out, nil
}

// ResolvedResults returns the log rows of the given events.
func (s *MemoryStore) ResolvedResults(_ context.Context, eventIDs []string) (map[string][]model.ResolvedResult, error) {
	defer observe(backendMemory, "resolved_results", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]model.ResolvedResult, len(eventIDs))
	for _, id := range eventIDs {
		if rows, ok := s.resolved[id]; ok {
			out[id] = slices.Clone(rows)
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func cloneEvent(e model.Event) model.Event {
	e.Entrants = slices.Clone(e.Entrants)
	return e
}
