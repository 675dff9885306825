package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/oom/internal/adapters/mq/queue"
	"github.com/okian/oom/internal/adapters/repository"
	"github.com/okian/oom/internal/domain/dedupe"
	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/publication"
	"github.com/okian/oom/internal/domain/resolver"
	"github.com/okian/oom/pkg/logger"
	"github.com/okian/oom/pkg/metrics"
)

// Receipt confirms a committed publish.
type Receipt struct {
	ID          string                 `json:"id"`
	EventID     string                 `json:"event_id"`
	Rows        []model.ResolvedResult `json:"rows"`
	PublishedAt time.Time              `json:"published_at"`
	// Replayed is set when the receipt answers a repeated idempotency key.
	Replayed bool `json:"replayed,omitempty"`
}

// Publish locks an event's results and writes its log rows. Publishes run on
// the worker shard owning the event, so concurrent publishes of one event are
// applied one at a time. A non-empty key makes retries return the original
// receipt instead of failing with publication.ErrAlreadyPublished.
func (s *Service) Publish(ctx context.Context, eventID, key string) (Receipt, error) {
	pool, deduper, _, err := s.running()
	if err != nil {
		return Receipt{}, err
	}
	if eventID == "" {
		return Receipt{}, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}

	if key != "" {
		claim, seen := deduper.Claim(ctx, idempotencyKey(eventID, key))
		if seen {
			r, err := claim.Wait(ctx)
			switch {
			case err == nil:
				metrics.RecordPublishDuplicate()
				r.Replayed = true
				return r, nil
			case errors.Is(err, dedupe.ErrAbandoned):
				// The first attempt failed; run this one without the key.
				key = ""
			default:
				return Receipt{}, err
			}
		}
	}

	job := queue.NewJob(eventID, key)
	if err := pool.Submit(ctx, job); err != nil {
		if key != "" {
			deduper.Unrecord(ctx, idempotencyKey(eventID, key))
		}
		metrics.RecordPublish(outcome(err), 0)
		return Receipt{}, s.wrap(err)
	}

	select {
	case res := <-job.Reply:
		if res.Err != nil {
			return Receipt{}, s.wrap(res.Err)
		}
		return Receipt{ID: res.ReceiptID, EventID: eventID, Rows: res.Rows, PublishedAt: res.PublishedAt}, nil
	case <-ctx.Done():
		// The job still runs; a retry with the same key will see its outcome.
		return Receipt{}, ctx.Err()
	}
}

// publishHandler returns the worker-side publish step. It captures its
// collaborators so it never takes the service lock, which Stop holds while
// the workers drain.
func (s *Service) publishHandler(deduper dedupe.Deduper[Receipt], log logger.Logger) func(context.Context, queue.Job) queue.Result {
	return func(ctx context.Context, job queue.Job) queue.Result {
		start := time.Now()
		e, rows, err := s.store.Publish(ctx, job.EventID, resolveForPublish)
		metrics.RecordPublish(outcome(err), float64(time.Since(start).Microseconds())/1000)

		key := idempotencyKey(job.EventID, job.IdempotencyKey)
		if err != nil {
			if job.IdempotencyKey != "" {
				deduper.Unrecord(ctx, key)
			}
			return queue.Result{Err: err}
		}

		receipt := Receipt{ID: uuid.NewString(), EventID: e.ID, Rows: rows, PublishedAt: s.now().UTC()}
		if job.IdempotencyKey != "" {
			deduper.Complete(ctx, key, receipt)
		}
		log.Info(ctx, "results published",
			logger.String("event_id", e.ID),
			logger.String("receipt_id", receipt.ID),
			logger.Int("rows", len(rows)),
			logger.Duration("queued_for", start.Sub(job.SubmittedAt)))
		return queue.Result{ReceiptID: receipt.ID, PublishedAt: receipt.PublishedAt, Event: e, Rows: rows}
	}
}

// resolveForPublish checks the draft is complete and resolves it into log rows.
func resolveForPublish(event model.Event, raws []model.RawResult) ([]model.ResolvedResult, error) {
	if err := publication.ValidatePublish(event, raws); err != nil {
		return nil, err
	}
	res := resolver.Resolve(event, raws)
	if len(res.Placings) == 0 {
		return nil, publication.ErrNoScores
	}
	return res.LogRows(), nil
}

func idempotencyKey(eventID, key string) string {
	return eventID + "\x00" + key
}

// outcome labels a publish attempt for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "published"
	case errors.Is(err, publication.ErrLocked), errors.Is(err, publication.ErrAlreadyPublished):
		return "already_published"
	case errors.Is(err, publication.ErrIncompleteScores):
		return "incomplete"
	case errors.Is(err, publication.ErrNoScores):
		return "no_scores"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, queue.ErrBackpressure):
		return "backpressure"
	case errors.Is(err, queue.ErrStopped):
		return "stopped"
	}
	return "error"
}
