// Package season aggregates resolved event placings into Order of Merit
// standings.
package season

import (
	"cmp"
	"slices"
	"time"

	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/publication"
	"github.com/okian/oom/internal/domain/resolver"
)

// Query selects the events that count toward one set of standings.
type Query struct {
	SocietyID  string
	SeasonYear int
	OOMOnly    bool
}

// Reason explains why a candidate event does not count.
type Reason string

const (
	ReasonOtherSociety Reason = "other_society"
	ReasonNotPublished Reason = "not_published"
	ReasonBadDate      Reason = "bad_date"
	ReasonOtherSeason  Reason = "other_season"
	ReasonNotOOM       Reason = "not_oom"
)

// Exclusion records a candidate event dropped by Filter.
type Exclusion struct {
	EventID string
	Reason  Reason
	Err     error
}

// Contribution is one qualifying event with its placings.
type Contribution struct {
	Event    model.Event
	Placings []resolver.Placing
}

// Filter keeps the events that count for q, in canonical order (date, then
// ID). An event contributes iff it belongs to the society, is published, is
// dated in the season year and, under OOMOnly, is classified oom.
func Filter(events []model.Event, q Query) ([]model.Event, []Exclusion) {
	var (
		keep     []model.Event
		excluded []Exclusion
	)
	for _, e := range events {
		if q.SocietyID != "" && e.SocietyID != q.SocietyID {
			excluded = append(excluded, Exclusion{EventID: e.ID, Reason: ReasonOtherSociety})
			continue
		}
		if !publication.Counts(e.ResultsStatus) {
			excluded = append(excluded, Exclusion{EventID: e.ID, Reason: ReasonNotPublished})
			continue
		}
		year, err := e.SeasonYear()
		if err != nil {
			excluded = append(excluded, Exclusion{EventID: e.ID, Reason: ReasonBadDate, Err: err})
			continue
		}
		if year != q.SeasonYear {
			excluded = append(excluded, Exclusion{EventID: e.ID, Reason: ReasonOtherSeason})
			continue
		}
		if q.OOMOnly && e.Classification != model.ClassificationOOM {
			excluded = append(excluded, Exclusion{EventID: e.ID, Reason: ReasonNotOOM})
			continue
		}
		keep = append(keep, e)
	}
	SortEvents(keep)
	return keep, excluded
}

// SortEvents orders events by date, then ID.
func SortEvents(events []model.Event) {
	slices.SortFunc(events, compareEvents)
}

func compareEvents(a, b model.Event) int {
	ta, _ := model.ParseDate(a.Date)
	tb, _ := model.ParseDate(b.Date)
	if c := ta.Compare(tb); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

type tally struct {
	points float64
	wins   int
	played int
}

// Aggregate sums points, wins and events played per member and returns the
// ranked standings of every member with at least one placing. Contributions
// are summed in canonical event order so totals do not depend on the order
// sources return them in. A member placed twice in one event counts once.
func Aggregate(members []model.Member, contributions []Contribution) []model.SeasonStanding {
	ordered := slices.Clone(contributions)
	slices.SortFunc(ordered, func(a, b Contribution) int { return compareEvents(a.Event, b.Event) })

	tallies := make(map[string]*tally)
	for _, c := range ordered {
		seen := make(map[string]bool, len(c.Placings))
		for _, p := range c.Placings {
			if seen[p.MemberID] {
				continue
			}
			seen[p.MemberID] = true
			t := tallies[p.MemberID]
			if t == nil {
				t = &tally{}
				tallies[p.MemberID] = t
			}
			t.points += p.Points
			t.played++
			if p.Win() {
				t.wins++
			}
		}
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}

	out := make([]model.SeasonStanding, 0, len(tallies))
	for id, t := range tallies {
		out = append(out, model.SeasonStanding{
			MemberID:     id,
			DisplayName:  names[id],
			TotalPoints:  t.points,
			Wins:         t.wins,
			EventsPlayed: t.played,
		})
	}
	Rank(out)
	return out
}

// Rank sorts standings by total points, wins and events played (all
// descending), then member ID, and numbers them 1..N. Equal keys still get
// distinct ranks.
func Rank(standings []model.SeasonStanding) {
	slices.SortFunc(standings, func(a, b model.SeasonStanding) int {
		if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Wins, a.Wins); c != 0 {
			return c
		}
		if c := cmp.Compare(b.EventsPlayed, a.EventsPlayed); c != 0 {
			return c
		}
		return cmp.Compare(a.MemberID, b.MemberID)
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
}

// Visible drops members who have not scored a point, as the standings view
// does. Zero-point members sort last, so the remaining ranks stay 1..k.
func Visible(standings []model.SeasonStanding) []model.SeasonStanding {
	out := make([]model.SeasonStanding, 0, len(standings))
	for _, s := range standings {
		if s.TotalPoints > 0 {
			out = append(out, s)
		}
	}
	return out
}

// CurrentYear is the default season for callers that omit one.
func CurrentYear(now time.Time) int { return now.Year() }
