package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("already exists")
	ErrSocietyFull = errors.New("society member limit reached")
	ErrInvalid     = errors.New("invalid record")
)
