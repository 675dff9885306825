package simulate

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/oom/internal/domain/model"
)

// Score ranges for generated rounds.
const (
	stablefordMin = 20
	stablefordMax = 44
	grossMin      = 68
	grossMax      = 104
	minField      = 2
)

// GenerateOptions shapes a generated season.
type GenerateOptions struct {
	Society string
	Season  int
	Members int
	Events  int
	Seed    int64
	// LegacyRatio is the share of published events imported inline only.
	LegacyRatio float64
}

// Generate builds a random season. The same options always give the same
// fixture.
func Generate(opts GenerateOptions) *Fixture {
	if opts.Society == "" {
		opts.Society = "sim"
	}
	if opts.Season == 0 {
		opts.Season = time.Now().Year()
	}
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // deterministic fixtures

	f := &Fixture{Society: opts.Society, Season: opts.Season}
	for i := 0; i < opts.Members; i++ {
		f.Members = append(f.Members, model.Member{
			ID:          fmt.Sprintf("m%03d", i+1),
			SocietyID:   opts.Society,
			DisplayName: fmt.Sprintf("Member %d", i+1),
		})
	}

	start := time.Date(opts.Season, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < opts.Events; i++ {
		e := FixtureEvent{Event: model.Event{
			ID:             fmt.Sprintf("ev%03d", i+1),
			SocietyID:      opts.Society,
			Name:           fmt.Sprintf("Round %d", i+1),
			Date:           start.AddDate(0, 0, 7*i).Format(time.DateOnly),
			Classification: pickClassification(rng),
			Format:         pickFormat(rng),
			ResultsStatus:  pickStatus(rng),
		}}
		if e.ResultsStatus == model.StatusPublished && rng.Float64() < opts.LegacyRatio {
			e.Legacy = true
		}
		if e.ResultsStatus != model.StatusNone {
			e.Scores = generateScores(rng, e.Format, f.Members)
		}
		f.Events = append(f.Events, e)
	}
	return f
}

func pickClassification(rng *rand.Rand) model.Classification {
	switch n := rng.Intn(20); {
	case n < 10:
		return model.ClassificationOOM
	case n < 13:
		return model.ClassificationMajor
	default:
		return model.ClassificationGeneral
	}
}

func pickFormat(rng *rand.Rand) model.Format {
	return []model.Format{model.FormatStableford, model.FormatStrokeplay, model.FormatBoth}[rng.Intn(3)]
}

// Most events are published; a few are still drafts or have no results.
func pickStatus(rng *rand.Rand) model.ResultsStatus {
	switch n := rng.Intn(10); {
	case n < 8:
		return model.StatusPublished
	case n < 9:
		return model.StatusDraft
	default:
		return model.StatusNone
	}
}

// generateScores enters a usable score for a random field of members. In
// "both" events each player records one or both metrics.
func generateScores(rng *rand.Rand, format model.Format, members []model.Member) []model.RawResult {
	if len(members) == 0 {
		return nil
	}
	size := len(members)
	if size > minField {
		size = minField + rng.Intn(len(members)-minField+1)
	}
	var out []model.RawResult
	for _, idx := range rng.Perm(len(members))[:size] {
		r := model.RawResult{MemberID: members[idx].ID}
		stableford := model.IntPtr(stablefordMin + rng.Intn(stablefordMax-stablefordMin+1))
		gross := model.IntPtr(grossMin + rng.Intn(grossMax-grossMin+1))
		switch format {
		case model.FormatStableford:
			r.Stableford = stableford
		case model.FormatStrokeplay:
			r.StrokeplayGross = gross
		case model.FormatBoth:
			switch rng.Intn(3) {
			case 0:
				r.Stableford = stableford
			case 1:
				r.StrokeplayGross = gross
			default:
				r.Stableford, r.StrokeplayGross = stableford, gross
			}
		}
		out = append(out, r)
	}
	return out
}
