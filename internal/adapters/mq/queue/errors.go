package queue

import "errors"

// Sentinel kinds for submission errors.
var (
	ErrStopped      = errors.New("publish pipeline stopped")
	ErrBackpressure = errors.New("publish queue full")
)
