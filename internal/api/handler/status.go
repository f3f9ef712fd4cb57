package handler

import (
	"net/http"

	"github.com/mcoot/chessmatch-go/internal/api/response"
	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/services/matchmaker"
	"github.com/mcoot/chessmatch-go/internal/services/registry"
	"github.com/mcoot/chessmatch-go/internal/services/session"
)

// ConnectionCounter reports the number of open participant connections
type ConnectionCounter interface {
	ConnectionCount() int
}

// StatusHandler serves health, stats and roster endpoints
type StatusHandler struct {
	registry    registry.RegistryInterface
	directory   session.DirectoryInterface
	matchmaker  matchmaker.MatchmakerInterface
	connections ConnectionCounter
}

// NewStatusHandler creates a new status handler. connections may be nil.
func NewStatusHandler(
	reg registry.RegistryInterface,
	dir session.DirectoryInterface,
	mm matchmaker.MatchmakerInterface,
	connections ConnectionCounter,
) *StatusHandler {
	return &StatusHandler{
		registry:    reg,
		directory:   dir,
		matchmaker:  mm,
		connections: connections,
	}
}

// Health handles GET /api/v1/health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

// Stats handles GET /api/v1/stats
func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	connections := 0
	if h.connections != nil {
		connections = h.connections.ConnectionCount()
	}

	response.JSON(w, http.StatusOK, response.StatsFromCounts(
		h.registry.Count(ctx),
		connections,
		h.matchmaker.Size(),
		h.directory.Counts(ctx),
	))
}

// Roster handles GET /api/v1/roster
func (h *StatusHandler) Roster(w http.ResponseWriter, r *http.Request) {
	players := h.registry.ListAll(r.Context())
	if players == nil {
		players = []model.RosterEntry{}
	}
	response.JSON(w, http.StatusOK, response.Roster{Players: players})
}
