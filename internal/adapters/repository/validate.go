package repository

import (
	"fmt"
	"slices"
	"time"

	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/pkg/metrics"
)

func validateMember(m model.Member) error {
	if m.ID == "" || m.SocietyID == "" {
		return fmt.Errorf("%w: member needs id and society", ErrInvalid)
	}
	return nil
}

// normalizeEvent checks an event and fills defaulted enum fields. The date is
// kept verbatim: an unparsable date is excluded at query time, not rejected.
func normalizeEvent(e model.Event) (model.Event, error) {
	if e.ID == "" || e.SocietyID == "" {
		return e, fmt.Errorf("%w: event needs id and society", ErrInvalid)
	}
	var err error
	if e.Format, err = model.ParseFormat(string(e.Format)); err != nil {
		return e, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if e.Classification, err = model.ParseClassification(string(e.Classification)); err != nil {
		return e, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if e.ResultsStatus, err = model.ParseResultsStatus(string(e.ResultsStatus)); err != nil {
		return e, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	e.Entrants = slices.Clone(e.Entrants)
	return e, nil
}

// normalizeRaws stamps rows with their event and rejects rows without a member.
func normalizeRaws(eventID string, raws []model.RawResult) ([]model.RawResult, error) {
	out := make([]model.RawResult, 0, len(raws))
	for _, r := range raws {
		if r.MemberID == "" {
			return nil, fmt.Errorf("%w: score without member", ErrInvalid)
		}
		if r.EventID != "" && r.EventID != eventID {
			return nil, fmt.Errorf("%w: score for event %s submitted to %s", ErrInvalid, r.EventID, eventID)
		}
		r.EventID = eventID
		out = append(out, r)
	}
	return out, nil
}

func observe(backend, op string, start time.Time) {
	metrics.RecordRepositoryOperation(backend, op, float64(time.Since(start).Microseconds())/1000)
}
