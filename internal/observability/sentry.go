// Package observability reports unexpected errors to Sentry.
package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/okian/oom/pkg/logger"
	"github.com/okian/oom/pkg/metrics"
)

const flushTimeout = 2 * time.Second

// InitSentry configures the global Sentry client. An empty DSN disables
// reporting. The returned func flushes buffered events.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	return initSentry(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	})
}

func initSentry(opts sentry.ClientOptions) (func(), error) {
	if err := sentry.Init(opts); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(flushTimeout) }, nil
}

// CaptureErr sends err to Sentry. Without a configured client it does nothing.
func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// Reporter returns an error sink for component: it logs, counts and
// captures every error it is given.
func Reporter(component string, log logger.Logger) func(error) {
	if log == nil {
		log = logger.Nop()
	}
	return func(err error) {
		if err == nil {
			return
		}
		log.Error(context.Background(), "unexpected error", logger.String("component", component), logger.Error(err))
		metrics.RecordErrorByComponent(component, "unexpected")
		CaptureErr(err)
	}
}
