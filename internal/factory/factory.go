package factory

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/chessmatch-go/internal/api"
	"github.com/mcoot/chessmatch-go/internal/dependencies/clock"
	"github.com/mcoot/chessmatch-go/internal/dependencies/random"
	"github.com/mcoot/chessmatch-go/internal/relay"
	"github.com/mcoot/chessmatch-go/internal/services/matchmaker"
	"github.com/mcoot/chessmatch-go/internal/services/registry"
	"github.com/mcoot/chessmatch-go/internal/services/rules"
	"github.com/mcoot/chessmatch-go/internal/services/session"
	"github.com/mcoot/chessmatch-go/internal/storage"
	"github.com/mcoot/chessmatch-go/internal/storage/memory"
	"github.com/mcoot/chessmatch-go/internal/transport/ws"
	"github.com/mcoot/chessmatch-go/internal/web/sse"
)

// How often spectator hubs nobody is listening to are reaped
const hubCleanupInterval = time.Minute

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Registry   *registry.Registry
	Directory  *session.Directory
	Matchmaker *matchmaker.Matchmaker

	// Event plumbing
	HubManager *sse.HubManager
	Dispatcher *relay.Dispatcher
	Relay      *relay.Relay

	// Handler serves the REST API, spectator streams and /ws
	Handler http.Handler

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// Relay sizes the relay queues. Zero values use the relay defaults.
	Relay relay.Options
	// WebSocket tunes the socket transport. Zero values use ws.DefaultOptions.
	WebSocket ws.Options
}

// New creates a new application with all dependencies wired
func New(cfg Config) *App {
	return newWithDependencies(memory.New(), clock.New(), random.New(), cfg)
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	reg := registry.New(store, clk, logger)
	dir := session.NewDirectory(store, rules.NewChess(), clk, rnd, logger)
	mm := matchmaker.New(reg, dir, logger)

	hubManager := sse.NewHubManager(logger)
	dispatcher := relay.NewDispatcher(reg, dir, mm, sse.NewBroadcaster(hubManager, logger), logger)
	rel := relay.New(dispatcher, cfg.Relay, logger)

	handler := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Registry:    reg,
		Directory:   dir,
		Matchmaker:  mm,
		Connections: rel,
		HubManager:  hubManager,
		WebSocket:   ws.NewHandler(rel, cfg.WebSocket, logger),
	})

	return &App{
		Storage:    store,
		Clock:      clk,
		Random:     rnd,
		Registry:   reg,
		Directory:  dir,
		Matchmaker: mm,
		HubManager: hubManager,
		Dispatcher: dispatcher,
		Relay:      rel,
		Handler:    handler,
		logger:     logger,
	}
}

// Run drives the relay and reaps idle spectator hubs until ctx is cancelled.
// On return every participant and spectator stream has been closed.
func (a *App) Run(ctx context.Context) {
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		a.Relay.Run(ctx)
	}()

	ticker := time.NewTicker(hubCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.HubManager.CleanupEmptyHubs()
		case <-ctx.Done():
			<-relayDone
			a.HubManager.CloseAll()
			a.logger.Info("application stopped")
			return
		}
	}
}
