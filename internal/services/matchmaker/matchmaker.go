package matchmaker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/services/registry"
	"github.com/mcoot/chessmatch-go/internal/services/session"
)

// Match reports the result of an Enqueue call
type Match struct {
	Matched   bool
	SessionID model.SessionID
	// Opponent is the partner of the enqueuing connection
	Opponent model.ConnID
	// Seats holds the paired connections, oldest first
	Seats [2]model.ConnID
}

// MatchmakerInterface is the queue surface used by the relay
type MatchmakerInterface interface {
	Enqueue(ctx context.Context, conn model.ConnID) (Match, error)
	Dequeue(conn model.ConnID)
	Size() int
	Contains(conn model.ConnID) bool
}

var _ MatchmakerInterface = (*Matchmaker)(nil)

// Matchmaker pairs queued connections in FIFO order
type Matchmaker struct {
	mu        sync.Mutex
	queue     []model.ConnID
	registry  registry.RegistryInterface
	directory session.DirectoryInterface
	logger    *slog.Logger
}

// New creates a Matchmaker
func New(reg registry.RegistryInterface, dir session.DirectoryInterface, logger *slog.Logger) *Matchmaker {
	return &Matchmaker{
		registry:  reg,
		directory: dir,
		logger:    logger.With(slog.String("component", "matchmaker")),
	}
}

// Enqueue adds conn to the queue and pairs the two oldest entries once two
// are waiting. A connection that is already queued is left where it is.
func (m *Matchmaker) Enqueue(ctx context.Context, conn model.ConnID) (Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.queue, conn) {
		return Match{}, nil
	}
	m.queue = append(m.queue, conn)
	m.logger.Debug("connection queued",
		slog.String("conn_id", string(conn)),
		slog.Int("queue_size", len(m.queue)))

	if len(m.queue) < 2 {
		return Match{}, nil
	}

	a, b := m.queue[0], m.queue[1]
	m.queue = m.queue[2:]

	_, aOK := m.registry.Lookup(ctx, a)
	_, bOK := m.registry.Lookup(ctx, b)
	if !aOK || !bOK {
		// Keep whoever is still here at the front
		var survivors []model.ConnID
		if aOK {
			survivors = append(survivors, a)
		}
		if bOK {
			survivors = append(survivors, b)
		}
		m.queue = append(survivors, m.queue...)
		m.logger.Info("dropped stale queue entry",
			slog.Bool("first_present", aOK),
			slog.Bool("second_present", bOK))
		return Match{}, nil
	}

	created, err := m.directory.CreateMatchedSession(ctx, a, b)
	if err != nil {
		m.queue = append([]model.ConnID{a, b}, m.queue...)
		return Match{}, fmt.Errorf("creating matched session: %w", err)
	}

	match := Match{
		Matched:   true,
		SessionID: created.ID,
		Seats:     [2]model.ConnID{a, b},
	}
	switch conn {
	case a:
		match.Opponent = b
	case b:
		match.Opponent = a
	}

	m.logger.Info("pair matched",
		slog.String("session_id", string(created.ID)),
		slog.String("first", string(a)),
		slog.String("second", string(b)))

	return match, nil
}

// Dequeue removes conn if it is queued
func (m *Matchmaker) Dequeue(conn model.ConnID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = slices.DeleteFunc(m.queue, func(c model.ConnID) bool { return c == conn })
}

// Size returns the number of queued connections
func (m *Matchmaker) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Contains reports whether conn is queued
func (m *Matchmaker) Contains(conn model.ConnID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.queue, conn)
}
