package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/oom/internal/app"
	"github.com/okian/oom/internal/domain/points"
	"github.com/okian/oom/internal/domain/reconcile"
)

// StandingsDependencies defines the interface for standings queries.
type StandingsDependencies interface {
	SeasonStandings(ctx context.Context, q service.StandingsQuery) (reconcile.Report, error)
	PointsTable() []points.Entry
}

// StandingsHandler handles season table requests.
type StandingsHandler struct {
	deps StandingsDependencies
}

// NewStandingsHandler creates a new standings handler.
func NewStandingsHandler(deps StandingsDependencies) *StandingsHandler {
	return &StandingsHandler{deps: deps}
}

// HandleGetStandings handles GET /societies/{society}/standings?season=&oom_only=&all=.
// season defaults to the current year; all=true keeps zero-point members.
func (h *StandingsHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	q := service.StandingsQuery{SocietyID: chi.URLParam(r, "society")}
	values := r.URL.Query()

	var err error
	if s := values.Get("season"); s != "" {
		if q.Season, err = strconv.Atoi(s); err != nil || q.Season < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: season %q", ErrBadRequest, s))
			return
		}
	}
	if q.OOMOnly, err = boolParam(values.Get("oom_only")); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if q.IncludeZero, err = boolParam(values.Get("all")); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	report, err := h.deps.SeasonStandings(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandlePointsTable handles GET /points-table.
func (h *StandingsHandler) HandlePointsTable(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.PointsTable())
}

var errBadBool = errors.New("expected true or false")

func boolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %w: %q", ErrBadRequest, errBadBool, s)
	}
	return b, nil
}
