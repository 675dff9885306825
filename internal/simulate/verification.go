package simulate

import (
	"context"
	"fmt"

	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/publication"
	"github.com/okian/oom/internal/domain/reconcile"
	"github.com/okian/oom/internal/domain/season"
)

// Source is read access to one society's season data.
type Source interface {
	reconcile.ResultSource
	Members(ctx context.Context, societyID string) ([]model.Member, error)
	Events(ctx context.Context, societyID string) ([]model.Event, error)
}

// Difference is one member whose standing differs between the two sources.
type Difference struct {
	MemberID     string
	LogPoints    float64
	InlinePoints float64
	LogRank      int
	InlineRank   int
}

func (d Difference) String() string {
	return fmt.Sprintf("%s: log %.2f (#%d), inline %.2f (#%d)", d.MemberID, d.LogPoints, d.LogRank, d.InlinePoints, d.InlineRank)
}

// Verification is the outcome of VerifySourceEquivalence.
type Verification struct {
	// Compared is the number of published events that have log rows.
	Compared int
	// Skipped counts published events without log rows, which have only
	// one representation.
	Skipped     int
	Differences []Difference
}

// OK reports whether both sources produced identical standings.
func (v Verification) OK() bool { return len(v.Differences) == 0 }

// VerifySourceEquivalence computes the season from the log alone and from
// the inline scores alone, over the events that have both, and lists every
// member whose points or rank disagree.
func VerifySourceEquivalence(ctx context.Context, src Source, q season.Query) (Verification, error) {
	var v Verification

	members, err := src.Members(ctx, q.SocietyID)
	if err != nil {
		return v, fmt.Errorf("members: %w", err)
	}
	events, err := src.Events(ctx, q.SocietyID)
	if err != nil {
		return v, fmt.Errorf("events: %w", err)
	}

	var ids []string
	for _, e := range events {
		if publication.Counts(e.ResultsStatus) {
			ids = append(ids, e.ID)
		}
	}
	logged, err := src.ResolvedResults(ctx, ids)
	if err != nil {
		return v, fmt.Errorf("log rows: %w", err)
	}
	var both []model.Event
	for _, e := range events {
		if !publication.Counts(e.ResultsStatus) {
			continue
		}
		if len(logged[e.ID]) == 0 {
			v.Skipped++
			continue
		}
		both = append(both, e)
	}
	v.Compared = len(both)

	query := reconcile.Query{Query: q, Members: members, Events: both}
	fromLog, err := reconcile.New(reconcile.WithMode(reconcile.ModeLogOnly)).ComputeSeasonStandings(ctx, query, src)
	if err != nil {
		return v, err
	}
	inline, err := reconcile.New(reconcile.WithMode(reconcile.ModeFallbackOnly)).ComputeSeasonStandings(ctx, query, src)
	if err != nil {
		return v, err
	}
	v.Differences = diffStandings(fromLog.Standings, inline.Standings)
	return v, nil
}

func diffStandings(fromLog, inline []model.SeasonStanding) []Difference {
	byMember := make(map[string]*Difference)
	var order []string
	get := func(id string) *Difference {
		d, ok := byMember[id]
		if !ok {
			d = &Difference{MemberID: id}
			byMember[id] = d
			order = append(order, id)
		}
		return d
	}
	for _, s := range fromLog {
		d := get(s.MemberID)
		d.LogPoints, d.LogRank = s.TotalPoints, s.Rank
	}
	for _, s := range inline {
		d := get(s.MemberID)
		d.InlinePoints, d.InlineRank = s.TotalPoints, s.Rank
	}

	var out []Difference
	for _, id := range order {
		d := byMember[id]
		if d.LogPoints != d.InlinePoints || d.LogRank != d.InlineRank {
			out = append(out, *d)
		}
	}
	return out
}
