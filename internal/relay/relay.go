package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/chessmatch-go/internal/model"
)

const (
	// DefaultSendBuffer is the per-connection outbound queue length
	DefaultSendBuffer = 64
	// DefaultIncomingBuffer is the length of the shared command queue
	DefaultIncomingBuffer = 256
)

// Options sizes the relay's queues. Zero values select the defaults.
type Options struct {
	SendBuffer     int
	IncomingBuffer int
}

// ErrClosed is returned once the relay loop has stopped
var ErrClosed = errors.New("relay closed")

// Conn is one participant connection as seen by the relay. Transports read
// outbound events from Events until the channel is closed.
type Conn struct {
	id          model.ConnID
	send        chan Event
	connectedAt time.Time
}

// ID returns the connection's identifier
func (c *Conn) ID() model.ConnID {
	return c.id
}

// Events returns the outbound event stream. It is closed when the connection
// is unregistered or the relay stops.
func (c *Conn) Events() <-chan Event {
	return c.send
}

type message struct {
	cmd   Command
	leave *Conn
}

// Relay serializes every command and disconnect through one loop and fans
// the resulting events out to connections
type Relay struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	sendBuffer int

	// owned by the loop
	conns map[model.ConnID]*Conn

	register chan *Conn
	incoming chan message
	done     chan struct{}
	count    atomic.Int64
}

// New creates a Relay. Run must be called before connections are accepted.
func New(dispatcher *Dispatcher, options Options, logger *slog.Logger) *Relay {
	if options.SendBuffer <= 0 {
		options.SendBuffer = DefaultSendBuffer
	}
	if options.IncomingBuffer <= 0 {
		options.IncomingBuffer = DefaultIncomingBuffer
	}
	return &Relay{
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "relay")),
		sendBuffer: options.SendBuffer,
		conns:      make(map[model.ConnID]*Conn),
		register:   make(chan *Conn),
		incoming:   make(chan message, options.IncomingBuffer),
		done:       make(chan struct{}),
	}
}

// Run processes commands until ctx is cancelled, then closes every
// connection's event stream
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("relay started")
	for {
		select {
		case conn := <-r.register:
			r.conns[conn.id] = conn
			r.count.Store(int64(len(r.conns)))
			r.logger.Info("connection registered",
				slog.String("conn_id", string(conn.id)),
				slog.Int("total_connections", len(r.conns)))

		case msg := <-r.incoming:
			if msg.leave != nil {
				r.disconnect(ctx, msg.leave)
				continue
			}
			if _, ok := r.conns[msg.cmd.Conn]; !ok {
				r.logger.Debug("dropping command from unknown connection",
					slog.String("conn_id", string(msg.cmd.Conn)),
					slog.String("kind", string(msg.cmd.Kind)))
				continue
			}
			r.deliver(r.dispatcher.Handle(ctx, msg.cmd))

		case <-ctx.Done():
			for id, conn := range r.conns {
				close(conn.send)
				delete(r.conns, id)
			}
			r.count.Store(0)
			close(r.done)
			r.logger.Info("relay stopped")
			return
		}
	}
}

// Connect registers a new connection and returns it
func (r *Relay) Connect() (*Conn, error) {
	conn := &Conn{
		id:          model.ConnID(uuid.NewString()),
		send:        make(chan Event, r.sendBuffer),
		connectedAt: time.Now(),
	}
	select {
	case r.register <- conn:
		return conn, nil
	case <-r.done:
		return nil, ErrClosed
	}
}

// Submit queues cmd for processing. Commands from one connection are
// processed in the order they were submitted.
func (r *Relay) Submit(cmd Command) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.incoming <- message{cmd: cmd}:
		return nil
	case <-r.done:
		return ErrClosed
	}
}

// Unregister queues the disconnect of conn behind any commands it already
// submitted. Its event stream is closed once the disconnect is processed.
func (r *Relay) Unregister(conn *Conn) {
	select {
	case r.incoming <- message{leave: conn}:
	case <-r.done:
	}
}

// ConnectionCount returns the number of registered connections
func (r *Relay) ConnectionCount() int {
	return int(r.count.Load())
}

func (r *Relay) disconnect(ctx context.Context, conn *Conn) {
	if _, ok := r.conns[conn.id]; !ok {
		return
	}
	delete(r.conns, conn.id)
	close(conn.send)
	r.count.Store(int64(len(r.conns)))

	r.deliver(r.dispatcher.Disconnect(ctx, conn.id))

	r.logger.Info("connection unregistered",
		slog.String("conn_id", string(conn.id)),
		slog.Duration("connection_duration", time.Since(conn.connectedAt)),
		slog.Int("total_connections", len(r.conns)))
}

func (r *Relay) deliver(deliveries []Delivery) {
	for _, d := range deliveries {
		conn, ok := r.conns[d.To]
		if !ok {
			continue
		}
		select {
		case conn.send <- d.Event:
		default:
			r.logger.Warn("event dropped - connection buffer full",
				slog.String("conn_id", string(d.To)),
				slog.String("type", string(d.Event.Type)))
		}
	}
}
