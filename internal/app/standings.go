package service

import (
	"context"
	"fmt"

	"github.com/okian/oom/internal/domain/reconcile"
	"github.com/okian/oom/internal/domain/season"
)

// StandingsQuery selects a society's season table.
type StandingsQuery struct {
	SocietyID string
	// Season defaults to the current calendar year when zero.
	Season  int
	OOMOnly bool
	// IncludeZero keeps members who placed but scored no points.
	IncludeZero bool
}

// SeasonStandings computes the standings of one society's season from the
// results log, falling back to inline scores per the reconcile mode.
func (s *Service) SeasonStandings(ctx context.Context, q StandingsQuery) (reconcile.Report, error) {
	_, _, reconciler, err := s.running()
	if err != nil {
		return reconcile.Report{}, err
	}
	if q.SocietyID == "" {
		return reconcile.Report{}, fmt.Errorf("%w: society is required", ErrInvalidInput)
	}
	if q.Season == 0 {
		q.Season = season.CurrentYear(s.now())
	}
	if q.Season < 1 {
		return reconcile.Report{}, fmt.Errorf("%w: season %d", ErrInvalidInput, q.Season)
	}

	members, err := s.store.Members(ctx, q.SocietyID)
	if err != nil {
		return reconcile.Report{}, s.wrap(err)
	}
	events, err := s.store.Events(ctx, q.SocietyID)
	if err != nil {
		return reconcile.Report{}, s.wrap(err)
	}

	report, err := reconciler.ComputeSeasonStandings(ctx, reconcile.Query{
		Query:   season.Query{SocietyID: q.SocietyID, SeasonYear: q.Season, OOMOnly: q.OOMOnly},
		Members: members,
		Events:  events,
	}, s.store)
	if err != nil {
		return reconcile.Report{}, err
	}
	if !q.IncludeZero {
		report.Standings = season.Visible(report.Standings)
	}
	return report, nil
}
