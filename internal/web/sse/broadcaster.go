package sse

import (
	"encoding/json"
	"log/slog"

	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/proto"
	"github.com/mcoot/chessmatch-go/internal/relay"
)

var _ relay.Observer = (*Broadcaster)(nil)

// Broadcaster forwards relay notifications to SSE spectators. Nothing is
// rendered unless someone is listening on the topic.
type Broadcaster struct {
	hubManager *HubManager
	logger     *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubManager *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubManager: hubManager,
		logger:     logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// RosterChanged publishes the roster on the roster topic
func (b *Broadcaster) RosterChanged(roster []model.RosterEntry) {
	hub := b.hubManager.GetHub(RosterTopic)
	if hub == nil {
		return
	}
	b.publish(hub, relay.Event{Type: model.EventRosterChanged, Payload: proto.Roster{Players: roster}})
}

// SessionEvent publishes a session event on that session's topic. The topic
// is finished once the session ends or is abandoned.
func (b *Broadcaster) SessionEvent(id model.SessionID, event relay.Event) {
	topic := SessionTopic(id)
	hub := b.hubManager.GetHub(topic)
	if hub == nil {
		return
	}
	b.publish(hub, event)

	switch event.Type {
	case model.EventSessionOver, model.EventOpponentLeft:
		b.hubManager.FinishHub(topic)
	}
}

func (b *Broadcaster) publish(hub *Hub, event relay.Event) {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		b.logger.Error("sse failed to encode event",
			slog.String("type", string(event.Type)),
			slog.Any("error", err))
		return
	}
	hub.BroadcastEvent(string(event.Type), string(data))
}
