package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mcoot/chessmatch-go/internal/api/response"
	"github.com/mcoot/chessmatch-go/internal/middleware"
	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/services/registry"
	"github.com/mcoot/chessmatch-go/internal/services/session"
	"github.com/mcoot/chessmatch-go/internal/web/sse"
)

// EventSnapshot is the first event on a session stream
const EventSnapshot = "session:snapshot"

// EventsHandler serves spectator SSE streams
type EventsHandler struct {
	hubManager *sse.HubManager
	registry   registry.RegistryInterface
	directory  session.DirectoryInterface
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hubManager *sse.HubManager, reg registry.RegistryInterface, dir session.DirectoryInterface) *EventsHandler {
	return &EventsHandler{
		hubManager: hubManager,
		registry:   reg,
		directory:  dir,
	}
}

// Roster handles GET /api/v1/events/roster. The current roster is sent
// first, then every change.
func (h *EventsHandler) Roster(w http.ResponseWriter, r *http.Request) {
	hub := h.hubManager.GetOrCreateHub(sse.RosterTopic)
	err := sse.ServeSSE(w, r, hub, subscriber(r), func() ([]byte, error) {
		players := h.registry.ListAll(r.Context())
		if players == nil {
			players = []model.RosterEntry{}
		}
		return encodeEvent(string(model.EventRosterChanged), response.Roster{Players: players})
	})
	if err != nil {
		WriteError(w, err)
	}
}

// Session handles GET /api/v1/sessions/{id}/events. A snapshot is sent
// first. The stream ends when the session does.
func (h *EventsHandler) Session(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])
	topic := sse.SessionTopic(id)

	hub := h.hubManager.GetOrCreateHub(topic)
	err := sse.ServeSSE(w, r, hub, subscriber(r), func() ([]byte, error) {
		snapshot, ok := h.directory.Get(r.Context(), id)
		if !ok {
			h.hubManager.FinishHub(topic)
			return nil, model.ErrSessionNotFound
		}
		if snapshot.Status == model.SessionStatusFinished {
			// Nothing more will be published; the stream ends after the snapshot
			h.hubManager.FinishHub(topic)
		}
		return encodeEvent(EventSnapshot, response.SessionFromModel(snapshot, func(conn model.ConnID) string {
			if identity, ok := h.registry.Lookup(r.Context(), conn); ok {
				return identity.DisplayName
			}
			return ""
		}))
	})
	if err != nil {
		WriteError(w, err)
	}
}

func encodeEvent(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return sse.Event(name, string(data)), nil
}

func subscriber(r *http.Request) string {
	if id := middleware.RequestIDFrom(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}
