package reconcile

import (
	"github.com/okian/oom/pkg/logger"
	"github.com/okian/oom/pkg/metrics"
)

// Recorder receives engine metrics. *metrics.Manager satisfies it.
type Recorder interface {
	RecordStandingsComputed(mode string, latencyMs float64)
	RecordEventSource(source string)
	RecordEventExcluded(reason string)
	RecordMalformedRow()
}

// globalRecorder forwards to the process-wide metrics manager.
type globalRecorder struct{}

func (globalRecorder) RecordStandingsComputed(mode string, latencyMs float64) {
	metrics.RecordStandingsComputed(mode, latencyMs)
}
func (globalRecorder) RecordEventSource(source string)   { metrics.RecordEventSource(source) }
func (globalRecorder) RecordEventExcluded(reason string) { metrics.RecordEventExcluded(reason) }
func (globalRecorder) RecordMalformedRow()               { metrics.RecordMalformedRow() }

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithMode sets how the results source is chosen.
func WithMode(mode Mode) Option {
	return func(r *Reconciler) {
		if mode != "" {
			r.mode = mode
		}
	}
}

// WithLogger sets the logger for diagnostics about skipped data.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) {
		if rec != nil {
			r.metrics = rec
		}
	}
}
