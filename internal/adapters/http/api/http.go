// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/oom/internal/app"
	"github.com/okian/oom/internal/domain/model"
	"github.com/okian/oom/internal/domain/points"
	"github.com/okian/oom/internal/domain/reconcile"
	"github.com/okian/oom/pkg/logger"
)

// maxBodyBytes bounds request bodies. A full field of scores is a few KiB.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	AddMember(ctx context.Context, m model.Member) (model.Member, error)
	CreateEvent(ctx context.Context, e model.Event) (model.Event, error)
	SaveDraft(ctx context.Context, eventID string, raws []model.RawResult) (model.Event, error)
	PreviewEvent(ctx context.Context, eventID string) (service.Preview, error)
	Publish(ctx context.Context, eventID, key string) (service.Receipt, error)
	SeasonStandings(ctx context.Context, q service.StandingsQuery) (reconcile.Report, error)
	PointsTable() []points.Entry
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	membersHandler   *MembersHandler
	eventsHandler    *EventsHandler
	standingsHandler *StandingsHandler
	logger           logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		membersHandler:   NewMembersHandler(deps),
		eventsHandler:    NewEventsHandler(deps),
		standingsHandler: NewStandingsHandler(deps),
		logger:           log.Named("http"),
	}
}

// Handler returns a router with the middleware stack and every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Get("/points-table", s.standingsHandler.HandlePointsTable)

	r.Route("/societies/{society}", func(r chi.Router) {
		r.Post("/members", s.membersHandler.HandlePutMember)
		r.Post("/events", s.eventsHandler.HandleCreateEvent)
		r.Get("/standings", s.standingsHandler.HandleGetStandings)
	})

	r.Route("/events/{eventID}", func(r chi.Router) {
		r.Put("/draft", s.eventsHandler.HandleSaveDraft)
		r.Get("/preview", s.eventsHandler.HandlePreview)
		r.Post("/publish", s.eventsHandler.HandlePublish)
	})
}

type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Missing: missingEntrants(err)})
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
