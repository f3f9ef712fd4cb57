package sse

import (
	"errors"
	"net/http"
	"time"
)

const (
	// Time between keepalive pings
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client represents a connected SSE client
type Client struct {
	hub         *Hub
	subscriber  string
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a new SSE client. subscriber only labels log lines.
func NewClient(hub *Hub, subscriber string) *Client {
	return &Client{
		hub:         hub,
		subscriber:  subscriber,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

var (
	// ErrStreamingUnsupported is returned when the response cannot be flushed
	ErrStreamingUnsupported = errors.New("streaming unsupported")
	// ErrHubClosed is returned when the hub stopped before the client joined
	ErrHubClosed = errors.New("stream closed")
)

// Snapshot produces the first event written to a new stream. It runs after
// the client has joined the hub, so no broadcast falls between the two.
type Snapshot func() ([]byte, error)

// ServeSSE streams hub events to the response until the client goes away or
// the hub finishes. An error is returned only if nothing has been written
// yet, leaving the caller free to send an error response.
func ServeSSE(w http.ResponseWriter, r *http.Request, hub *Hub, subscriber string, snapshot Snapshot) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	client := NewClient(hub, subscriber)
	if !hub.Register(client) {
		return ErrHubClosed
	}
	defer hub.Unregister(client)

	var initial []byte
	if snapshot != nil {
		var err error
		if initial, err = snapshot(); err != nil {
			return err
		}
	}

	// Streams outlive the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	_, _ = w.Write([]byte("event: connected\ndata: {\"status\":\"connected\"}\n\n"))
	if len(initial) > 0 {
		_, _ = w.Write(initial)
	}
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				// Hub closed the channel
				return nil
			}
			if _, err := w.Write(message); err != nil {
				return nil
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()

		case <-r.Context().Done():
			return nil
		}
	}
}

// Event formats a single SSE event, for use in a Snapshot
func Event(eventName, data string) []byte {
	return formatSSEMessage(eventName, data)
}
