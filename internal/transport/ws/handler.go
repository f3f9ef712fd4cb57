// Package ws exposes the relay over WebSocket connections
package ws

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/chessmatch-go/internal/relay"
)

// Options tunes socket deadlines and limits
type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	AllowedOrigins []string
}

// DefaultOptions returns the values used when nothing is configured
func DefaultOptions() Options {
	return Options{
		ReadLimit:  4096,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
	}
}

// Handler upgrades HTTP requests and pumps frames between the socket and
// the relay
type Handler struct {
	relay    *relay.Relay
	options  Options
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a Handler. Zero options fall back to DefaultOptions.
func NewHandler(r *relay.Relay, options Options, logger *slog.Logger) *Handler {
	defaults := DefaultOptions()
	if options.ReadLimit <= 0 {
		options.ReadLimit = defaults.ReadLimit
	}
	if options.PingPeriod <= 0 {
		options.PingPeriod = defaults.PingPeriod
	}
	if options.PongWait <= 0 {
		options.PongWait = defaults.PongWait
	}
	if options.WriteWait <= 0 {
		options.WriteWait = defaults.WriteWait
	}

	h := &Handler{
		relay:   r,
		options: options,
		logger:  logger.With(slog.String("component", "ws")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	conn, err := h.relay.Connect()
	if err != nil {
		h.logger.Warn("relay unavailable", slog.Any("error", err))
		_ = socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "shutting down"),
			time.Now().Add(h.options.WriteWait))
		_ = socket.Close()
		return
	}

	h.logger.Info("websocket connected",
		slog.String("conn_id", string(conn.ID())),
		slog.String("remote_addr", r.RemoteAddr))

	go h.writePump(socket, conn)
	h.readPump(socket, conn)
}

func (h *Handler) readPump(socket *websocket.Conn, conn *relay.Conn) {
	defer func() {
		h.relay.Unregister(conn)
		_ = socket.Close()
	}()

	socket.SetReadLimit(h.options.ReadLimit)
	_ = socket.SetReadDeadline(time.Now().Add(h.options.PongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(h.options.PongWait))
	})

	for {
		_, raw, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket closed unexpectedly",
					slog.String("conn_id", string(conn.ID())),
					slog.Any("error", err))
			}
			return
		}

		cmd, err := DecodeCommand(conn.ID(), raw)
		if err != nil {
			h.logger.Warn("dropping malformed frame",
				slog.String("conn_id", string(conn.ID())),
				slog.Any("error", err))
			continue
		}
		if err := h.relay.Submit(cmd); err != nil {
			if errors.Is(err, relay.ErrClosed) {
				return
			}
			h.logger.Error("failed to submit command", slog.Any("error", err))
		}
	}
}

func (h *Handler) writePump(socket *websocket.Conn, conn *relay.Conn) {
	ticker := time.NewTicker(h.options.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = socket.Close()
	}()

	for {
		select {
		case event, ok := <-conn.Events():
			_ = socket.SetWriteDeadline(time.Now().Add(h.options.WriteWait))
			if !ok {
				_ = socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame, err := EncodeEvent(event)
			if err != nil {
				h.logger.Error("failed to encode event",
					slog.String("type", string(event.Type)),
					slog.Any("error", err))
				continue
			}
			if err := socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("websocket write failed",
					slog.String("conn_id", string(conn.ID())),
					slog.Any("error", err))
				return
			}

		case <-ticker.C:
			_ = socket.SetWriteDeadline(time.Now().Add(h.options.WriteWait))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.options.AllowedOrigins) == 0 || slices.Contains(h.options.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.options.AllowedOrigins, origin)
}
