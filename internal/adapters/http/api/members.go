package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/oom/internal/domain/model"
)

// MemberDependencies defines the interface for roster operations.
type MemberDependencies interface {
	AddMember(ctx context.Context, m model.Member) (model.Member, error)
}

// MembersHandler handles roster requests.
type MembersHandler struct {
	deps MemberDependencies
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(deps MemberDependencies) *MembersHandler {
	return &MembersHandler{deps: deps}
}

type memberRequest struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Handicap    *float64 `json:"handicap,omitempty"`
}

// HandlePutMember handles POST /societies/{society}/members. An existing
// member with the same ID is replaced.
func (h *MembersHandler) HandlePutMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decode(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	m, err := h.deps.AddMember(r.Context(), model.Member{
		ID:          req.ID,
		SocietyID:   chi.URLParam(r, "society"),
		DisplayName: req.DisplayName,
		Handicap:    req.Handicap,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
