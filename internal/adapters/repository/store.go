// Package repository persists members, events and both result
// representations, and performs the atomic publish transition.
package repository

import (
	"context"

	"github.com/okian/oom/internal/domain/model"
)

// PublishFunc turns a draft's raw scores into the rows written to the results
// log. It runs inside the store's publish critical section, after the status
// transition has been checked and before anything is written; an error aborts
// the publish with nothing changed.
type PublishFunc func(event model.Event, raws []model.RawResult) ([]model.ResolvedResult, error)

// Store provides read/write access to society data.
type Store interface {
	// UpsertMember creates or replaces a member.
	UpsertMember(ctx context.Context, m model.Member) error
	// Members returns a society's roster ordered by member ID.
	Members(ctx context.Context, societyID string) ([]model.Member, error)

	// CreateEvent stores a new event. Returns ErrDuplicate if the ID exists.
	CreateEvent(ctx context.Context, e model.Event) error
	// Event returns one event. Returns ErrNotFound if unknown.
	Event(ctx context.Context, eventID string) (model.Event, error)
	// Events returns every event of a society, in no particular order.
	Events(ctx context.Context, societyID string) ([]model.Event, error)

	// SaveDraft replaces the event's raw scores and moves it to draft.
	// Returns publication.ErrLocked once the event is published.
	SaveDraft(ctx context.Context, eventID string, raws []model.RawResult) (model.Event, error)
	// ImportEvent stores an event together with its inline scores as-is,
	// without writing log rows. Used for legacy data.
	ImportEvent(ctx context.Context, e model.Event, raws []model.RawResult) error

	// Publish atomically writes the rows produced by fn and marks the event
	// published. Readers observe either none or all of it.
	Publish(ctx context.Context, eventID string, fn PublishFunc) (model.Event, []model.ResolvedResult, error)

	// RawResults returns the inline scores of the given events.
	RawResults(ctx context.Context, eventIDs []string) (map[string][]model.RawResult, error)
	// ResolvedResults returns the log rows of the given events.
	ResolvedResults(ctx context.Context, eventIDs []string) (map[string][]model.ResolvedResult, error)

	// Close releases the store's resources.
	Close() error
}
