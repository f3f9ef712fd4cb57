package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/chessmatch-go/internal/api/apierr"
	"github.com/mcoot/chessmatch-go/internal/api/handler"
	apimiddleware "github.com/mcoot/chessmatch-go/internal/api/middleware"
	"github.com/mcoot/chessmatch-go/internal/middleware"
	"github.com/mcoot/chessmatch-go/internal/services/matchmaker"
	"github.com/mcoot/chessmatch-go/internal/services/registry"
	"github.com/mcoot/chessmatch-go/internal/services/session"
	"github.com/mcoot/chessmatch-go/internal/web/sse"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Registry    registry.RegistryInterface
	Directory   session.DirectoryInterface
	Matchmaker  matchmaker.MatchmakerInterface
	Connections handler.ConnectionCounter
	HubManager  *sse.HubManager
	// WebSocket serves /ws, the participant endpoint
	WebSocket http.Handler
}

// NewRouter creates a new router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	statusHandler := handler.NewStatusHandler(cfg.Registry, cfg.Directory, cfg.Matchmaker, cfg.Connections)
	sessionHandler := handler.NewSessionHandler(cfg.Directory, cfg.Registry)
	eventsHandler := handler.NewEventsHandler(cfg.HubManager, cfg.Registry, cfg.Directory)

	r.Use(apimiddleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", statusHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/stats", statusHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/roster", statusHandler.Roster).Methods(http.MethodGet)

	api.HandleFunc("/sessions", sessionHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/legal-moves", sessionHandler.LegalMoves).Methods(http.MethodGet)

	// Spectator streams
	api.HandleFunc("/sessions/{id}/events", eventsHandler.Session).Methods(http.MethodGet)
	api.HandleFunc("/events/roster", eventsHandler.Roster).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError())
	})

	return r
}
