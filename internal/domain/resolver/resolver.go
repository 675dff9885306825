// Package resolver turns one event's raw scores into finishing positions and
// tie-split points.
package resolver

import (
	"cmp"
	"slices"

	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/points"
)

// Placing is one member's resolved outcome in an event.
type Placing struct {
	MemberID string       `json:"member_id"`
	Basis    RankingBasis `json:"-"`
	DayValue int          `json:"day_value"`
	Position int          `json:"position"`
	Points   float64      `json:"points"`
}

// Win reports whether the placing counts as an event win.
func (p Placing) Win() bool { return p.Position == 1 }

// Resolution is the outcome of resolving one event.
type Resolution struct {
	EventID  string    `json:"event_id"`
	Placings []Placing `json:"placings"`
	// Excluded lists members with no usable score, sorted.
	Excluded []string `json:"excluded,omitempty"`
	// MixedBasis is set when a "both" event ranked members on different metrics.
	MixedBasis bool `json:"mixed_basis,omitempty"`
}

// Winners returns the members placed first.
func (r Resolution) Winners() []string {
	var out []string
	for _, p := range r.Placings {
		if !p.Win() {
			break
		}
		out = append(out, p.MemberID)
	}
	return out
}

type candidate struct {
	memberID string
	basis    RankingBasis
	value    int
}

// compare orders candidates best first. Stableford-ranked members precede
// strokeplay-ranked ones; member ID breaks ties inside a group.
func compare(a, b candidate) int {
	if c := cmp.Compare(a.basis, b.basis); c != 0 {
		return c
	}
	if c := cmp.Compare(a.value, b.value); c != 0 {
		if a.basis.HigherIsBetter() {
			return -c
		}
		return c
	}
	return cmp.Compare(a.memberID, b.memberID)
}

func sameGroup(a, b candidate) bool {
	return a.basis == b.basis && a.value == b.value
}

// Resolve ranks the event's raw results with standard competition ranking and
// awards tie-split points. Rows for other events are ignored; when a member
// appears more than once the last row wins. Pure.
func Resolve(event model.Event, results []model.RawResult) Resolution {
	latest := make(map[string]model.RawResult, len(results))
	for _, r := range results {
		if r.EventID != "" && event.ID != "" && r.EventID != event.ID {
			continue
		}
		latest[r.MemberID] = r
	}

	res := Resolution{EventID: event.ID}
	cands := make([]candidate, 0, len(latest))
	for memberID, r := range latest {
		basis, value, ok := SelectBasis(event.Format, r)
		if !ok {
			res.Excluded = append(res.Excluded, memberID)
			continue
		}
		cands = append(cands, candidate{memberID: memberID, basis: basis, value: value})
	}
	slices.Sort(res.Excluded)
	slices.SortFunc(cands, compare)

	res.Placings = make([]Placing, 0, len(cands))
	for i := 0; i < len(cands); {
		j := i + 1
		for j < len(cands) && sameGroup(cands[i], cands[j]) {
			j++
		}
		rank := i + 1
		share := points.Split(rank, j-i)
		for _, c := range cands[i:j] {
			res.Placings = append(res.Placings, Placing{
				MemberID: c.memberID,
				Basis:    c.basis,
				DayValue: c.value,
				Position: rank,
				Points:   share,
			})
		}
		i = j
	}

	if len(cands) > 0 && cands[0].basis != cands[len(cands)-1].basis {
		res.MixedBasis = true
	}
	return res
}

// LogRows converts a resolution into normalized log rows.
func (r Resolution) LogRows() []model.ResolvedResult {
	rows := make([]model.ResolvedResult, 0, len(r.Placings))
	for _, p := range r.Placings {
		rows = append(rows, model.ResolvedResult{
			EventID:  r.EventID,
			MemberID: p.MemberID,
			DayValue: p.DayValue,
			Position: p.Position,
			Points:   p.Points,
		})
	}
	return rows
}

// FromLogRows rebuilds placings from normalized log rows, ordered by
// position then member ID. The basis is not stored in the log and is left
// unset.
func FromLogRows(rows []model.ResolvedResult) []Placing {
	out := make([]Placing, 0, len(rows))
	for _, row := range rows {
		out = append(out, Placing{
			MemberID: row.MemberID,
			DayValue: row.DayValue,
			Position: row.Position,
			Points:   row.Points,
		})
	}
	slices.SortFunc(out, func(a, b Placing) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.MemberID, b.MemberID)
	})
	return out
}
