package resolver

import "github.com/okian/oom/internal/domain/model"

// RankingBasis names the metric a member was ranked on.
type RankingBasis int

const (
	// BasisStableford ranks on stableford points, higher first.
	BasisStableford RankingBasis = iota + 1
	// BasisStrokeplay ranks on gross strokes, lower first.
	BasisStrokeplay
)

func (b RankingBasis) String() string {
	switch b {
	case BasisStableford:
		return "stableford"
	case BasisStrokeplay:
		return "strokeplay"
	default:
		return "unknown"
	}
}

// HigherIsBetter reports the sort direction of the basis.
func (b RankingBasis) HigherIsBetter() bool {
	return b == BasisStableford
}

// SelectBasis picks the value a member is ranked on for the event format.
//
// In a "both" event the choice is made per member: stableford when recorded,
// otherwise gross strokes. Two members of the same event may therefore be
// ranked on different metrics.
func SelectBasis(format model.Format, r model.RawResult) (RankingBasis, int, bool) {
	switch format {
	case model.FormatStableford:
		if r.Stableford != nil {
			return BasisStableford, *r.Stableford, true
		}
	case model.FormatStrokeplay:
		if r.StrokeplayGross != nil {
			return BasisStrokeplay, *r.StrokeplayGross, true
		}
	case model.FormatBoth:
		if r.Stableford != nil {
			return BasisStableford, *r.Stableford, true
		}
		if r.StrokeplayGross != nil {
			return BasisStrokeplay, *r.StrokeplayGross, true
		}
	}
	return 0, 0, false
}

// Usable reports whether the result can be ranked under the format.
func Usable(format model.Format, r model.RawResult) bool {
	_, _, ok := SelectBasis(format, r)
	return ok
}
