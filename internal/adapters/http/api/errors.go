package api

import (
	"errors"
	"net/http"

	"github.com/okian/oom/internal/adapters/mq/queue"
	"github.com/okian/oom/internal/adapters/repository"
	service "github.com/okian/oom/internal/app"
	"github.com/okian/oom/internal/domain/publication"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// errorStatus pairs an error kind with its HTTP status and response code.
type errorStatus struct {
	target error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorStatuses = []errorStatus{
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{repository.ErrNotFound, http.StatusNotFound, "not_found"},
	{publication.ErrLocked, http.StatusConflict, "locked"},
	{publication.ErrAlreadyPublished, http.StatusConflict, "already_published"},
	{repository.ErrDuplicate, http.StatusConflict, "duplicate"},
	{repository.ErrSocietyFull, http.StatusConflict, "society_full"},
	{publication.ErrIncompleteScores, http.StatusUnprocessableEntity, "incomplete_scores"},
	{publication.ErrNoScores, http.StatusUnprocessableEntity, "no_scores"},
	{queue.ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
	{queue.ErrStopped, http.StatusServiceUnavailable, "unavailable"},
	{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
}

// writeServiceError maps a service error onto its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	for _, s := range errorStatuses {
		if errors.Is(err, s.target) {
			writeError(w, s.status, s.code, err)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal_error", nil)
}

func missingEntrants(err error) []string {
	var incomplete *publication.IncompleteError
	if errors.As(err, &incomplete) {
		return incomplete.Missing
	}
	return nil
}
