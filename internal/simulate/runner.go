package simulate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	service "github.com/okian/oom/internal/app"
	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/pkg/logger"
)

const defaultConcurrency = 8

// Target is the part of the service a fixture is played against.
type Target interface {
	AddMember(ctx context.Context, m model.Member) (model.Member, error)
	CreateEvent(ctx context.Context, e model.Event) (model.Event, error)
	SaveDraft(ctx context.Context, eventID string, raws []model.RawResult) (model.Event, error)
	ImportEvent(ctx context.Context, e model.Event, raws []model.RawResult) error
	Publish(ctx context.Context, eventID, key string) (service.Receipt, error)
}

var _ Target = (*service.Service)(nil)

// Stats counts what a run did.
type Stats struct {
	Members   int
	Events    int
	Drafts    int
	Imported  int
	Published int64
	Duration  time.Duration
}

// RunOptions tunes Run.
type RunOptions struct {
	// Concurrency bounds in-flight publishes. Zero means a default of 8.
	Concurrency int
	Logger      logger.Logger
}

// Run loads f into target. Legacy events are imported inline; the rest are
// created and drafted in order, then every published event is published
// concurrently. The first failure cancels the remaining publishes.
func Run(ctx context.Context, target Target, f *Fixture, opts RunOptions) (Stats, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	start := time.Now()
	var stats Stats

	for _, m := range f.Members {
		if _, err := target.AddMember(ctx, m); err != nil {
			return stats, fmt.Errorf("member %s: %w", m.ID, err)
		}
		stats.Members++
	}

	var toPublish []string
	for _, e := range f.Events {
		stats.Events++
		if e.Legacy {
			if err := target.ImportEvent(ctx, e.Event, e.Scores); err != nil {
				return stats, fmt.Errorf("import %s: %w", e.ID, err)
			}
			stats.Imported++
			continue
		}
		if _, err := target.CreateEvent(ctx, e.Event); err != nil {
			return stats, fmt.Errorf("create %s: %w", e.ID, err)
		}
		if e.ResultsStatus == model.StatusNone || e.ResultsStatus == "" {
			continue
		}
		if _, err := target.SaveDraft(ctx, e.ID, e.Scores); err != nil {
			return stats, fmt.Errorf("draft %s: %w", e.ID, err)
		}
		stats.Drafts++
		if e.ResultsStatus == model.StatusPublished {
			toPublish = append(toPublish, e.ID)
		}
	}

	var published atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, id := range toPublish {
		id := id
		g.Go(func() error {
			if _, err := target.Publish(gctx, id, "simulate-"+id); err != nil {
				return fmt.Errorf("publish %s: %w", id, err)
			}
			published.Add(1)
			return nil
		})
	}
	err := g.Wait()
	stats.Published = published.Load()
	stats.Duration = time.Since(start)

	log.Info(ctx, "season loaded",
		logger.String("society", f.Society),
		logger.Int("members", stats.Members),
		logger.Int("events", stats.Events),
		logger.Int("drafts", stats.Drafts),
		logger.Int("imported", stats.Imported),
		logger.Int("published", int(stats.Published)),
		logger.Duration("duration", stats.Duration))
	return stats, err
}
