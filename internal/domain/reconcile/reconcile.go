// Package reconcile computes season standings from whichever store holds an
// event's results: the normalized results log written at publish time, or the
// legacy inline raw scores resolved on the fly.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/resolver"
	"github.com/okian/oom/internal/domain/season"
	"github.com/okian/oom/pkg/logger"
)

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("unknown reconcile mode")

// ResultSource reads both result representations for a set of events.
// Missing events are simply absent from the returned maps.
type ResultSource interface {
	ResolvedResults(ctx context.Context, eventIDs []string) (map[string][]model.ResolvedResult, error)
	RawResults(ctx context.Context, eventIDs []string) (map[string][]model.RawResult, error)
}

// Mode selects how the source of each event's results is chosen.
type Mode string

const (
	// ModePerEvent reads the log for events that have rows there and resolves
	// the inline scores of the rest.
	ModePerEvent Mode = "per_event"
	// ModePerQuery uses the log for every event when it holds any usable row
	// for the query, and inline scores for every event otherwise.
	ModePerQuery Mode = "per_query"
	// ModeLogOnly never resolves inline scores.
	ModeLogOnly Mode = "log_only"
	// ModeFallbackOnly never reads the log.
	ModeFallbackOnly Mode = "fallback_only"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePerEvent, ModePerQuery, ModeLogOnly, ModeFallbackOnly:
		return m, nil
	case "":
		return ModePerEvent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Source names where an event's placings were read from.
type Source string

const (
	SourceLog    Source = "log"
	SourceInline Source = "inline"
	SourceNone   Source = "none"
)

// Query is a full standings request.
type Query struct {
	season.Query
	Members []model.Member
	Events  []model.Event
}

// EventOutcome reports how one candidate event was treated.
type EventOutcome struct {
	EventID  string `json:"event_id"`
	Source   Source `json:"source,omitempty"`
	Placings int    `json:"placings"`
	Reason   string `json:"reason,omitempty"`
}

// Report is the result of a standings computation.
type Report struct {
	SocietyID  string                 `json:"society_id"`
	SeasonYear int                    `json:"season"`
	OOMOnly    bool                   `json:"oom_only"`
	Mode       Mode                   `json:"mode"`
	Standings  []model.SeasonStanding `json:"standings"`
	Events     []EventOutcome         `json:"events"`
	Excluded   []EventOutcome         `json:"excluded,omitempty"`
}

// Reconciler computes standings. It holds no per-query state and is safe for
// concurrent use.
type Reconciler struct {
	mode    Mode
	logger  logger.Logger
	metrics Recorder
}

// New creates a Reconciler. The default mode is ModePerEvent.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		mode:    ModePerEvent,
		logger:  logger.Nop(),
		metrics: globalRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mode returns the configured selection mode.
func (r *Reconciler) Mode() Mode { return r.mode }

// ComputeSeasonStandings filters the candidate events, reads each qualifying
// event's placings from the log or resolves them inline according to the
// mode, and aggregates the standings. Missing or malformed data is logged and
// contributes nothing; only context cancellation is returned as an error.
func (r *Reconciler) ComputeSeasonStandings(ctx context.Context, q Query, src ResultSource) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	start := time.Now()
	log := r.logger.With(
		logger.String("society", q.SocietyID),
		logger.Int("season", q.SeasonYear),
		logger.Bool("oom_only", q.OOMOnly),
	)

	report := Report{SocietyID: q.SocietyID, SeasonYear: q.SeasonYear, OOMOnly: q.OOMOnly, Mode: r.mode}

	qualifying, excluded := season.Filter(q.Events, q.Query)
	for _, x := range excluded {
		r.metrics.RecordEventExcluded(string(x.Reason))
		report.Excluded = append(report.Excluded, EventOutcome{EventID: x.EventID, Reason: string(x.Reason)})
		if x.Err != nil {
			log.Warn(ctx, "event excluded from season", logger.String("event_id", x.EventID),
				logger.String("reason", string(x.Reason)), logger.Error(x.Err))
		}
	}

	ids := make([]string, 0, len(qualifying))
	for _, e := range qualifying {
		ids = append(ids, e.ID)
	}

	logged, err := r.readLog(ctx, log, src, ids)
	if err != nil {
		return Report{}, err
	}
	useLog := r.selector(logged)

	var inlineIDs []string
	if r.mode != ModeLogOnly {
		for _, id := range ids {
			if !useLog(id) {
				inlineIDs = append(inlineIDs, id)
			}
		}
	}
	raws, err := r.readRaw(ctx, log, src, inlineIDs)
	if err != nil {
		return Report{}, err
	}

	contributions := make([]season.Contribution, 0, len(qualifying))
	for _, e := range qualifying {
		var (
			placings []resolver.Placing
			source   Source
		)
		switch {
		case useLog(e.ID):
			placings, source = logged[e.ID], SourceLog
		case r.mode != ModeLogOnly:
			res := resolver.Resolve(e, raws[e.ID])
			if res.MixedBasis {
				log.Warn(ctx, "event ranked on mixed metrics", logger.String("event_id", e.ID))
			}
			placings, source = res.Placings, SourceInline
		}
		if len(placings) == 0 {
			source = SourceNone
			log.Debug(ctx, "published event has no results", logger.String("event_id", e.ID))
		}
		r.metrics.RecordEventSource(string(source))
		report.Events = append(report.Events, EventOutcome{EventID: e.ID, Source: source, Placings: len(placings)})
		contributions = append(contributions, season.Contribution{Event: e, Placings: placings})
	}

	report.Standings = season.Aggregate(q.Members, contributions)
	r.metrics.RecordStandingsComputed(string(r.mode), float64(time.Since(start).Microseconds())/1000)
	return report, nil
}

// selector decides, per event, whether its placings come from the log.
func (r *Reconciler) selector(logged map[string][]resolver.Placing) func(string) bool {
	switch r.mode {
	case ModeLogOnly:
		return func(string) bool { return true }
	case ModeFallbackOnly:
		return func(string) bool { return false }
	case ModePerQuery:
		hasLog := len(logged) > 0
		return func(string) bool { return hasLog }
	default:
		return func(id string) bool { return len(logged[id]) > 0 }
	}
}

// readLog fetches and sanitizes log rows. Events without usable rows are
// absent from the result.
func (r *Reconciler) readLog(ctx context.Context, log logger.Logger, src ResultSource, ids []string) (map[string][]resolver.Placing, error) {
	out := make(map[string][]resolver.Placing)
	if r.mode == ModeFallbackOnly || len(ids) == 0 {
		return out, nil
	}
	rows, err := src.ResolvedResults(ctx, ids)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn(ctx, "results log unavailable; treating as empty", logger.Error(err))
		return out, nil
	}
	for _, id := range ids {
		var usable []model.ResolvedResult
		seen := make(map[string]bool)
		for _, row := range rows[id] {
			if row.EventID != id || row.MemberID == "" || row.Position < 1 || row.Points < 0 || seen[row.MemberID] {
				r.metrics.RecordMalformedRow()
				log.Warn(ctx, "skipping malformed log row",
					logger.String("event_id", id),
					logger.String("member_id", row.MemberID),
					logger.Int("position", row.Position))
				continue
			}
			seen[row.MemberID] = true
			usable = append(usable, row)
		}
		if len(usable) > 0 {
			out[id] = resolver.FromLogRows(usable)
		}
	}
	return out, nil
}

func (r *Reconciler) readRaw(ctx context.Context, log logger.Logger, src ResultSource, ids []string) (map[string][]model.RawResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raws, err := src.RawResults(ctx, ids)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn(ctx, "inline results unavailable; events contribute nothing",
			logger.Strings("event_ids", ids), logger.Error(err))
		return nil, nil
	}
	return raws, nil
}
