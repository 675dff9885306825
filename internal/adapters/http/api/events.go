package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/oom/internal/app"
	"github.com/okian/oom/internal/domain/model"
)

// IdempotencyHeader carries the client's publish retry key.
const IdempotencyHeader = "Idempotency-Key"

// EventDependencies defines the interface for result entry operations.
type EventDependencies interface {
	CreateEvent(ctx context.Context, e model.Event) (model.Event, error)
	SaveDraft(ctx context.Context, eventID string, raws []model.RawResult) (model.Event, error)
	PreviewEvent(ctx context.Context, eventID string) (service.Preview, error)
	Publish(ctx context.Context, eventID, key string) (service.Receipt, error)
}

// EventsHandler handles event and result entry requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

type eventRequest struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Date           string   `json:"date"`
	Classification string   `json:"classification"`
	Format         string   `json:"format"`
	Entrants       []string `json:"entrants,omitempty"`
}

type draftRequest struct {
	Scores []model.RawResult `json:"scores"`
}

// HandleCreateEvent handles POST /societies/{society}/events.
func (h *EventsHandler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	e, err := h.deps.CreateEvent(r.Context(), model.Event{
		ID:             req.ID,
		SocietyID:      chi.URLParam(r, "society"),
		Name:           req.Name,
		Date:           req.Date,
		Classification: model.Classification(req.Classification),
		Format:         model.Format(req.Format),
		Entrants:       req.Entrants,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// HandleSaveDraft handles PUT /events/{eventID}/draft. The body replaces the
// event's scores in full.
func (h *EventsHandler) HandleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	e, err := h.deps.SaveDraft(r.Context(), chi.URLParam(r, "eventID"), req.Scores)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandlePreview handles GET /events/{eventID}/preview.
func (h *EventsHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.PreviewEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePublish handles POST /events/{eventID}/publish. A replayed
// idempotency key answers 200 with the original receipt.
func (h *EventsHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.deps.Publish(r.Context(), chi.URLParam(r, "eventID"), r.Header.Get(IdempotencyHeader))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, receipt)
}
