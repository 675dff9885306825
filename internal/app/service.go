// Package service ties the ranking engine to storage and the publish
// pipeline and implements the operations the HTTP API and CLI need.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/oom/internal/adapters/mq/queue"
	"github.com/okian/oom/internal/adapters/mq/worker"
	"github.com/okian/oom/internal/adapters/repository"
	"github.com/okian/oom/internal/domain/dedupe"
	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/points"
	"github.com/okian/oom/internal/domain/publication"
	"github.com/okian/oom/internal/domain/reconcile"
	"github.com/okian/oom/internal/domain/resolver"
	"github.com/okian/oom/pkg/logger"
	"github.com/okian/oom/pkg/metrics"
)

const stopTimeout = 10 * time.Second

// Service implements the API dependencies for the Order of Merit system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper[Receipt]
	pool       *worker.Pool
	reconciler *reconcile.Reconciler

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	mode        reconcile.Mode
	report      func(error)
	now         func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  50000,
		mode:        reconcile.ModePerEvent,
		report:      func(error) {},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	return s
}

// Start initializes and starts the service components. Workers run until
// Stop, independently of ctx's cancellation.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger = s.logger.Named("service")

	if _, err := reconcile.ParseMode(string(s.mode)); err != nil {
		return err
	}
	s.logger.Info(ctx, "starting order of merit service...")

	s.reconciler = reconcile.New(
		reconcile.WithMode(s.mode),
		reconcile.WithLogger(s.logger.Named("reconcile")),
	)
	s.deduper = dedupe.NewInMemoryDeduper[Receipt](dedupe.WithMaxSize(s.dedupeSize))
	s.pool = worker.NewPool(s.workerCount, worker.HandlerFunc(s.publishHandler(s.deduper, s.logger)),
		worker.WithQueueCapacity(s.queueSize),
		worker.WithPoolLogger(s.logger),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "order of merit service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("reconcileMode", string(s.mode)),
	)
	return nil
}

// Stop drains the publish pipeline and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping order of merit service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "publish pipeline did not drain", logger.Error(err))
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "order of merit service stopped")
}

func (s *Service) running() (*worker.Pool, dedupe.Deduper[Receipt], *reconcile.Reconciler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, ErrNotStarted
	}
	return s.pool, s.deduper, s.reconciler, nil
}

// log returns the service logger, or a no-op logger before Start.
func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.Nop()
	}
	return s.logger
}

// AddMember creates or updates a society member.
func (s *Service) AddMember(ctx context.Context, m model.Member) (model.Member, error) {
	m.ID = strings.TrimSpace(m.ID)
	m.DisplayName = strings.TrimSpace(m.DisplayName)
	if m.ID == "" {
		return model.Member{}, fmt.Errorf("%w: member id is required", ErrInvalidInput)
	}
	if err := s.store.UpsertMember(ctx, m); err != nil {
		return model.Member{}, s.wrap(err)
	}
	return m, nil
}

// CreateEvent schedules an event with no results. An empty ID is generated.
func (s *Service) CreateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.ResultsStatus = model.StatusNone
	if _, err := model.ParseDate(e.Date); err != nil {
		return model.Event{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return model.Event{}, s.wrap(err)
	}
	return s.store.Event(ctx, e.ID)
}

// SaveDraft replaces an event's raw scores. The event must not be published.
func (s *Service) SaveDraft(ctx context.Context, eventID string, raws []model.RawResult) (model.Event, error) {
	e, err := s.store.SaveDraft(ctx, eventID, raws)
	if err != nil {
		return model.Event{}, s.wrap(err)
	}
	metrics.RecordDraftSaved()
	s.log().Debug(ctx, "draft saved", logger.String("event_id", eventID), logger.Int("scores", len(raws)))
	return e, nil
}

// ImportEvent stores a legacy event with its inline scores exactly as given,
// including its results status. No log rows are written; standings resolve
// such events from the inline scores.
func (s *Service) ImportEvent(ctx context.Context, e model.Event, raws []model.RawResult) error {
	if err := s.store.ImportEvent(ctx, e, raws); err != nil {
		return s.wrap(err)
	}
	return nil
}

// Preview is a provisional resolution of an event's current raw scores.
// It is never counted toward standings.
type Preview struct {
	Event       model.Event         `json:"event"`
	Provisional bool                `json:"provisional"`
	Leaders     []string            `json:"leaders"`
	Resolution  resolver.Resolution `json:"resolution"`
}

// PreviewEvent resolves the event's raw scores as they stand, draft or not.
func (s *Service) PreviewEvent(ctx context.Context, eventID string) (Preview, error) {
	e, err := s.store.Event(ctx, eventID)
	if err != nil {
		return Preview{}, s.wrap(err)
	}
	raws, err := s.store.RawResults(ctx, []string{eventID})
	if err != nil {
		return Preview{}, s.wrap(err)
	}
	res := resolver.Resolve(e, raws[eventID])
	return Preview{
		Event:       e,
		Provisional: e.ResultsStatus != model.StatusPublished,
		Leaders:     res.Winners(),
		Resolution:  res,
	}, nil
}

// PointsTable returns the position-to-points legend.
func (s *Service) PointsTable() []points.Entry {
	return points.Legend()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"reconcileMode": string(s.mode),
	}
	if s.started {
		stats["pendingPublishes"] = s.pool.Len()
		stats["idempotencyKeys"] = s.deduper.Size()
		metrics.UpdateQueueSize(s.pool.Len())
	}
	return stats
}

// wrap maps store validation failures onto ErrInvalidInput and reports
// anything unexpected.
func (s *Service) wrap(err error) error {
	switch {
	case errors.Is(err, repository.ErrInvalid):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case isExpected(err):
		return err
	}
	s.report(err)
	return err
}

func isExpected(err error) bool {
	for _, target := range expectedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

var expectedErrors = []error{
	repository.ErrNotFound,
	repository.ErrDuplicate,
	repository.ErrSocietyFull,
	repository.ErrInvalid,
	queue.ErrBackpressure,
	queue.ErrStopped,
	ErrNotStarted,
	ErrInvalidInput,
	publication.ErrLocked,
	publication.ErrAlreadyPublished,
	publication.ErrNoScores,
	publication.ErrIncompleteScores,
	dedupe.ErrAbandoned,
}
