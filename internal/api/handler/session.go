package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/chessmatch-go/internal/api/request"
	"github.com/mcoot/chessmatch-go/internal/api/response"
	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/services/registry"
	"github.com/mcoot/chessmatch-go/internal/services/session"
)

// SessionHandler serves read-only session views
type SessionHandler struct {
	directory session.DirectoryInterface
	registry  registry.RegistryInterface
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(dir session.DirectoryInterface, reg registry.RegistryInterface) *SessionHandler {
	return &SessionHandler{
		directory: dir,
		registry:  reg,
	}
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := request.ParseSessionListQuery(r.URL.Query())
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	sessions := h.directory.List(r.Context(), query.Status)
	if len(sessions) > query.Limit {
		sessions = sessions[len(sessions)-query.Limit:]
	}

	names := h.names(r)
	out := make([]response.Session, len(sessions))
	for i, s := range sessions {
		out[i] = response.SessionFromModel(s, names)
	}
	response.JSON(w, http.StatusOK, response.SessionList{Sessions: out})
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])

	snapshot, ok := h.directory.Get(r.Context(), id)
	if !ok {
		WriteError(w, model.ErrSessionNotFound)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(snapshot, h.names(r)))
}

// LegalMoves handles GET /api/v1/sessions/{id}/legal-moves
func (h *SessionHandler) LegalMoves(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])

	position, moves, err := h.directory.LegalMoves(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	if moves == nil {
		moves = []string{}
	}

	response.JSON(w, http.StatusOK, response.LegalMoves{
		SessionID: string(id),
		Position:  position,
		Moves:     moves,
	})
}

func (h *SessionHandler) names(r *http.Request) func(model.ConnID) string {
	return func(conn model.ConnID) string {
		if identity, ok := h.registry.Lookup(r.Context(), conn); ok {
			return identity.DisplayName
		}
		return ""
	}
}
