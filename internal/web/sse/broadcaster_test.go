package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/proto"
	"github.com/mcoot/chessmatch-go/internal/relay"
	"github.com/mcoot/chessmatch-go/internal/testutil"
)

func subscribe(t *testing.T, manager *HubManager, topic string) *Client {
	t.Helper()
	hub := manager.GetOrCreateHub(topic)
	client := NewClient(hub, "watcher")
	require.True(t, hub.Register(client))
	return client
}

func TestBroadcaster_RosterChanged(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.CloseAll()
	broadcaster := NewBroadcaster(manager, testutil.NopLogger())

	// No listeners, nothing to do
	broadcaster.RosterChanged([]model.RosterEntry{{ID: "a", DisplayName: "alice"}})

	client := subscribe(t, manager, RosterTopic)
	broadcaster.RosterChanged([]model.RosterEntry{{ID: "a", DisplayName: "alice", Busy: true}})

	msg := string(testutil.Receive(t, outbound(client)))
	assert.Equal(t,
		"event: roster:changed\ndata: {\"players\":[{\"id\":\"a\",\"displayName\":\"alice\",\"busy\":true}]}\n\n",
		msg)
}

func TestBroadcaster_SessionEventsEndStream(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.CloseAll()
	broadcaster := NewBroadcaster(manager, testutil.NopLogger())

	client := subscribe(t, manager, SessionTopic("s1"))
	other := subscribe(t, manager, SessionTopic("s2"))

	broadcaster.SessionEvent("s1", relay.Event{
		Type:    model.EventMoveApplied,
		Payload: proto.MoveApplied{SessionID: "s1", Notation: "e4", UCI: "e2e4", Turn: model.ColorBlack},
	})
	msg := string(testutil.Receive(t, outbound(client)))
	assert.Contains(t, msg, "event: move:applied\n")
	assert.Contains(t, msg, `"notation":"e4"`)

	white := model.ColorWhite
	broadcaster.SessionEvent("s1", relay.Event{
		Type:    model.EventSessionOver,
		Payload: proto.SessionOver{SessionID: "s1", WinnerColor: &white, Reason: model.ReasonResignation},
	})
	msg = string(testutil.Receive(t, outbound(client)))
	assert.Contains(t, msg, "event: session:over\n")
	testutil.WaitClosed(t, outbound(client))
	assert.Nil(t, manager.GetHub(SessionTopic("s1")))

	// Other sessions are untouched
	assert.NotNil(t, manager.GetHub(SessionTopic("s2")))
	select {
	case m := <-other.send:
		t.Fatalf("unexpected message on other session: %q", m)
	default:
	}
}
