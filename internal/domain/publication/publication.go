// Package publication governs when an event's results are editable drafts
// and when they are locked and counted.
//
//	none --save draft--> draft --save draft--> draft --publish--> published
//
// published is terminal: there is no path back to draft.
package publication

import (
	"errors"
	"fmt"

	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/resolver"
)

// Sentinel errors for rejected transitions.
var (
	ErrLocked           = errors.New("results are published and locked")
	ErrAlreadyPublished = errors.New("results already published")
	ErrNoScores         = errors.New("no scores entered")
	ErrIncompleteScores = errors.New("scores missing for required members")
	ErrUnknownAction    = errors.New("unknown publication action")
)

// Action is an operation requested against an event's results.
type Action string

const (
	ActionSaveDraft Action = "save_draft"
	ActionPublish   Action = "publish"
)

// Transition returns the status that results from applying action to from.
func Transition(from model.ResultsStatus, action Action) (model.ResultsStatus, error) {
	switch action {
	case ActionSaveDraft:
		switch from {
		case model.StatusNone, model.StatusDraft, "":
			return model.StatusDraft, nil
		case model.StatusPublished:
			return from, ErrLocked
		}
	case ActionPublish:
		switch from {
		case model.StatusDraft:
			return model.StatusPublished, nil
		case model.StatusNone, "":
			return from, ErrNoScores
		case model.StatusPublished:
			return from, ErrAlreadyPublished
		}
	default:
		return from, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return from, fmt.Errorf("%w: %q", model.ErrUnknownStatus, from)
}

// Counts reports whether results in this status contribute to season totals.
func Counts(status model.ResultsStatus) bool {
	return status == model.StatusPublished
}

// Editable reports whether raw values may still change.
func Editable(status model.ResultsStatus) bool {
	_, err := Transition(status, ActionSaveDraft)
	return err == nil
}

// ValidatePublish checks that the draft is complete enough to publish: every
// listed entrant has a usable score, or, without an entrant list, at least
// one member does.
func ValidatePublish(event model.Event, raws []model.RawResult) error {
	usable := make(map[string]bool, len(raws))
	for _, r := range raws {
		if r.EventID != "" && r.EventID != event.ID {
			continue
		}
		usable[r.MemberID] = resolver.Usable(event.Format, r)
	}

	if len(event.Entrants) == 0 {
		for _, ok := range usable {
			if ok {
				return nil
			}
		}
		return ErrNoScores
	}

	var missing []string
	for _, id := range event.Entrants {
		if !usable[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &IncompleteError{EventID: event.ID, Missing: missing}
	}
	return nil
}

// IncompleteError names the entrants still lacking a score.
type IncompleteError struct {
	EventID string
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("event %s: %d entrant(s) without a score: %v", e.EventID, len(e.Missing), e.Missing)
}

// Unwrap lets callers match ErrIncompleteScores.
func (e *IncompleteError) Unwrap() error { return ErrIncompleteScores }
