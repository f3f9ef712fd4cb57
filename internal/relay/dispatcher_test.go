package relay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chessmatch-go/internal/dependencies/mocks"
	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/proto"
	"github.com/mcoot/chessmatch-go/internal/services/matchmaker"
	"github.com/mcoot/chessmatch-go/internal/services/registry"
	"github.com/mcoot/chessmatch-go/internal/services/rules"
	"github.com/mcoot/chessmatch-go/internal/services/session"
	"github.com/mcoot/chessmatch-go/internal/storage/memory"
	"github.com/mcoot/chessmatch-go/internal/testutil"
)

type recordingObserver struct {
	rosters [][]model.RosterEntry
	events  map[model.SessionID][]Event
}

func (o *recordingObserver) RosterChanged(roster []model.RosterEntry) {
	o.rosters = append(o.rosters, roster)
}

func (o *recordingObserver) SessionEvent(id model.SessionID, event Event) {
	o.events[id] = append(o.events[id], event)
}

type DispatcherSuite struct {
	suite.Suite
	registry   *registry.Registry
	directory  *session.Directory
	matchmaker *matchmaker.Matchmaker
	random     *mocks.MockRandom
	observer   *recordingObserver
	dispatcher *Dispatcher
	ctx        context.Context
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	store := memory.New()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	logger := testutil.NopLogger()
	s.random = mocks.NewMockRandom()
	s.registry = registry.New(store, clk, logger)
	s.directory = session.NewDirectory(store, rules.NewChess(), clk, s.random, logger)
	s.matchmaker = matchmaker.New(s.registry, s.directory, logger)
	s.observer = &recordingObserver{events: make(map[model.SessionID][]Event)}
	s.dispatcher = NewDispatcher(s.registry, s.directory, s.matchmaker, s.observer, logger)
	s.ctx = context.Background()
}

func (s *DispatcherSuite) handle(cmd Command) []Delivery {
	return s.dispatcher.Handle(s.ctx, cmd)
}

func (s *DispatcherSuite) login(conn model.ConnID, name string) {
	out := s.handle(Command{Kind: model.CommandLogin, Conn: conn, DisplayName: name})
	_, ok := find(out, conn, model.EventLoginOK)
	s.Require().True(ok, "login of %s failed: %+v", name, out)
}

// pair logs in a and b and matches them. a plays white.
func (s *DispatcherSuite) pair(a, b model.ConnID) model.SessionID {
	s.login(a, "alice")
	s.login(b, "bob")
	s.handle(Command{Kind: model.CommandQueueJoin, Conn: a})
	out := s.handle(Command{Kind: model.CommandQueueJoin, Conn: b})
	started, ok := find(out, a, model.EventSessionStarted)
	s.Require().True(ok)
	payload := started.Payload.(proto.SessionStarted)
	s.Require().Equal(model.ColorWhite, payload.Color)
	return payload.SessionID
}

func (s *DispatcherSuite) move(conn model.ConnID, id model.SessionID, notation string) []Delivery {
	return s.handle(Command{Kind: model.CommandMove, Conn: conn, SessionID: id, Notation: notation})
}

func (s *DispatcherSuite) busy(conn model.ConnID) bool {
	identity, ok := s.registry.Lookup(s.ctx, conn)
	s.Require().True(ok)
	return identity.Busy
}

func find(out []Delivery, to model.ConnID, eventType model.EventType) (Event, bool) {
	for _, d := range out {
		if d.To == to && d.Event.Type == eventType {
			return d.Event, true
		}
	}
	return Event{}, false
}

func count(out []Delivery, to model.ConnID, eventType model.EventType) int {
	n := 0
	for _, d := range out {
		if d.To == to && d.Event.Type == eventType {
			n++
		}
	}
	return n
}

func typesFor(out []Delivery, to model.ConnID) []model.EventType {
	var types []model.EventType
	for _, d := range out {
		if d.To == to {
			types = append(types, d.Event.Type)
		}
	}
	return types
}

func (s *DispatcherSuite) requireFailure(out []Delivery, to model.ConnID, eventType model.EventType, reason string) {
	event, ok := find(out, to, eventType)
	s.Require().True(ok, "expected %s for %s, got %+v", eventType, to, out)
	s.Equal(reason, event.Payload.(proto.Failure).Reason)
}

func (s *DispatcherSuite) TestLoginBroadcastsRoster() {
	s.login("a", "alice")
	out := s.handle(Command{Kind: model.CommandLogin, Conn: "b", DisplayName: "bob"})

	s.Equal([]model.EventType{model.EventLoginOK, model.EventRosterChanged}, typesFor(out, "b"))
	roster, ok := find(out, "a", model.EventRosterChanged)
	s.Require().True(ok)
	players := roster.Payload.(proto.Roster).Players
	s.Require().Len(players, 2)
	s.Equal("alice", players[0].DisplayName)
	s.Equal("bob", players[1].DisplayName)
	s.Require().NotEmpty(s.observer.rosters)
	s.Len(s.observer.rosters[len(s.observer.rosters)-1], 2)
}

func (s *DispatcherSuite) TestLoginRejectsTakenNameIgnoringCase() {
	s.login("a", "Alice")
	out := s.handle(Command{Kind: model.CommandLogin, Conn: "b", DisplayName: "aLICE"})

	s.requireFailure(out, "b", model.EventLoginFailed, "name_taken")
	s.Zero(count(out, "a", model.EventRosterChanged))
	s.Equal(1, s.registry.Count(s.ctx))
}

func (s *DispatcherSuite) TestLoginRejectsEmptyName() {
	out := s.handle(Command{Kind: model.CommandLogin, Conn: "a", DisplayName: "   "})
	s.requireFailure(out, "a", model.EventLoginFailed, "name_required")
}

func (s *DispatcherSuite) TestCommandsRequireLogin() {
	out := s.handle(Command{Kind: model.CommandQueueJoin, Conn: "a"})
	s.requireFailure(out, "a", model.EventError, "not_logged_in")
	s.Zero(s.matchmaker.Size())
}

func (s *DispatcherSuite) TestQueueJoinWaits() {
	s.login("a", "alice")
	out := s.handle(Command{Kind: model.CommandQueueJoin, Conn: "a"})

	event, ok := find(out, "a", model.EventQueueWaiting)
	s.Require().True(ok)
	s.Equal(1, event.Payload.(proto.QueueWaiting).Size)
}

func (s *DispatcherSuite) TestQueueLeave() {
	s.login("a", "alice")
	s.handle(Command{Kind: model.CommandQueueJoin, Conn: "a"})
	out := s.handle(Command{Kind: model.CommandQueueLeave, Conn: "a"})

	s.Empty(out)
	s.False(s.matchmaker.Contains("a"))
}

func (s *DispatcherSuite) TestMatchStartsSession() {
	s.login("a", "alice")
	s.login("b", "bob")
	s.handle(Command{Kind: model.CommandQueueJoin, Conn: "a"})
	out := s.handle(Command{Kind: model.CommandQueueJoin, Conn: "b"})

	for _, conn := range []model.ConnID{"a", "b"} {
		types := typesFor(out, conn)
		s.Require().GreaterOrEqual(len(types), 3)
		s.Equal(model.EventMatchFound, types[0])
		s.Equal(model.EventSessionStarted, types[1])
		s.Contains(types, model.EventRosterChanged)
		s.True(s.busy(conn))
	}

	aStart, _ := find(out, "a", model.EventSessionStarted)
	bStart, _ := find(out, "b", model.EventSessionStarted)
	a := aStart.Payload.(proto.SessionStarted)
	b := bStart.Payload.(proto.SessionStarted)
	s.Equal(a.SessionID, b.SessionID)
	s.Equal(model.ColorWhite, a.Color)
	s.Equal(model.ColorBlack, b.Color)
	s.Equal("bob", a.Opponent.DisplayName)
	s.Equal("alice", b.Opponent.DisplayName)
	s.Equal(rules.NewChess().InitialPosition(), a.Position)

	found, _ := find(out, "a", model.EventMatchFound)
	s.Equal(model.ConnID("b"), found.Payload.(proto.MatchFound).Opponent.ID)

	watched := s.observer.events[a.SessionID]
	s.Require().Len(watched, 1)
	spectators := watched[0].Payload.(proto.SpectatorStart)
	s.Equal("alice", spectators.White)
	s.Equal("bob", spectators.Black)
}

func (s *DispatcherSuite) TestBusyConnectionCannotQueue() {
	s.pair("a", "b")

	out := s.handle(Command{Kind: model.CommandQueueJoin, Conn: "a"})
	s.requireFailure(out, "a", model.EventError, "already_in_session")
	s.False(s.matchmaker.Contains("a"))
}

func (s *DispatcherSuite) TestMoveRelayedToOpponentOnly() {
	id := s.pair("a", "b")

	out := s.move("a", id, "e4")

	s.Empty(typesFor(out, "a"))
	event, ok := find(out, "b", model.EventMoveApplied)
	s.Require().True(ok)
	applied := event.Payload.(proto.MoveApplied)
	s.Equal("e4", applied.Notation)
	s.Equal("e2e4", applied.UCI)
	s.Equal(model.ColorBlack, applied.Turn)
	s.False(applied.Captured)
	s.Len(s.observer.events[id], 2)
}

func (s *DispatcherSuite) TestMoveRejections() {
	id := s.pair("a", "b")

	out := s.move("b", id, "e5")
	s.requireFailure(out, "b", model.EventMoveRejected, "not_your_turn")
	s.Empty(typesFor(out, "a"))

	out = s.move("a", id, "e5")
	s.requireFailure(out, "a", model.EventMoveRejected, "invalid_move")

	out = s.move("a", "missing", "e4")
	s.requireFailure(out, "a", model.EventMoveRejected, "room_not_found")

	s.login("c", "carol")
	out = s.move("c", id, "e4")
	s.requireFailure(out, "c", model.EventMoveRejected, "not_in_session")
}

func (s *DispatcherSuite) TestCheckmateEndsSession() {
	id := s.pair("a", "b")

	s.move("a", id, "f3")
	s.move("b", id, "e5")
	s.move("a", id, "g4")
	out := s.move("b", id, "Qh4#")

	s.Require().True(s.Contains(typesFor(out, "a"), model.EventMoveApplied))
	for _, conn := range []model.ConnID{"a", "b"} {
		s.Equal(1, count(out, conn, model.EventSessionOver))
		event, _ := find(out, conn, model.EventSessionOver)
		over := event.Payload.(proto.SessionOver)
		s.Equal(model.ReasonCheckmate, over.Reason)
		s.Require().NotNil(over.WinnerColor)
		s.Equal(model.ColorBlack, *over.WinnerColor)
		s.False(s.busy(conn))
	}

	// Finished sessions accept nothing
	out = s.move("a", id, "e4")
	s.requireFailure(out, "a", model.EventMoveRejected, "game_not_active")
	out = s.handle(Command{Kind: model.CommandResign, Conn: "a", SessionID: id})
	s.requireFailure(out, "a", model.EventError, "game_not_active")

	snapshot, ok := s.directory.Get(s.ctx, id)
	s.Require().True(ok)
	s.Equal(model.SessionStatusFinished, snapshot.Status)
	s.Len(snapshot.MoveLog, 4)
}

func (s *DispatcherSuite) TestResign() {
	id := s.pair("a", "b")

	out := s.handle(Command{Kind: model.CommandResign, Conn: "a", SessionID: id})

	event, ok := find(out, "b", model.EventSessionOver)
	s.Require().True(ok)
	over := event.Payload.(proto.SessionOver)
	s.Equal(model.ReasonResignation, over.Reason)
	s.Equal(model.ColorBlack, *over.WinnerColor)
	s.Equal(1, count(out, "a", model.EventSessionOver))
}

func (s *DispatcherSuite) TestDrawAccepted() {
	id := s.pair("a", "b")

	out := s.handle(Command{Kind: model.CommandDrawOffer, Conn: "a", SessionID: id})
	event, ok := find(out, "b", model.EventDrawOffered)
	s.Require().True(ok)
	s.Equal("alice", event.Payload.(proto.DrawOffered).From)
	s.Empty(typesFor(out, "a"))

	// The offerer cannot accept their own offer
	out = s.handle(Command{Kind: model.CommandDrawRespond, Conn: "a", SessionID: id, Accept: true})
	s.requireFailure(out, "a", model.EventError, "no_draw_offer")

	out = s.handle(Command{Kind: model.CommandDrawRespond, Conn: "b", SessionID: id, Accept: true})
	for _, conn := range []model.ConnID{"a", "b"} {
		types := typesFor(out, conn)
		s.Require().GreaterOrEqual(len(types), 2)
		s.Equal(model.EventDrawAccepted, types[0])
		s.Equal(model.EventSessionOver, types[1])
	}
	over, _ := find(out, "a", model.EventSessionOver)
	s.Nil(over.Payload.(proto.SessionOver).WinnerColor)
	s.Equal(model.ReasonDraw, over.Payload.(proto.SessionOver).Reason)
}

func (s *DispatcherSuite) TestDrawDeclined() {
	id := s.pair("a", "b")

	s.handle(Command{Kind: model.CommandDrawOffer, Conn: "a", SessionID: id})
	out := s.handle(Command{Kind: model.CommandDrawRespond, Conn: "b", SessionID: id, Accept: false})

	s.Equal([]model.EventType{model.EventDrawDeclined}, typesFor(out, "a"))
	s.Empty(typesFor(out, "b"))

	out = s.handle(Command{Kind: model.CommandDrawRespond, Conn: "b", SessionID: id, Accept: true})
	s.requireFailure(out, "b", model.EventError, "no_draw_offer")
}

func (s *DispatcherSuite) TestMoveWithdrawsDrawOffer() {
	id := s.pair("a", "b")

	s.handle(Command{Kind: model.CommandDrawOffer, Conn: "a", SessionID: id})
	s.move("a", id, "e4")

	out := s.handle(Command{Kind: model.CommandDrawRespond, Conn: "b", SessionID: id, Accept: true})
	s.requireFailure(out, "b", model.EventError, "no_draw_offer")
}

func (s *DispatcherSuite) TestChatDeliveredToBothSeats() {
	id := s.pair("a", "b")

	out := s.handle(Command{Kind: model.CommandChat, Conn: "b", SessionID: id, Text: "  good luck  "})

	for _, conn := range []model.ConnID{"a", "b"} {
		event, ok := find(out, conn, model.EventChatDelivered)
		s.Require().True(ok)
		chat := event.Payload.(proto.ChatDelivered)
		s.Equal("bob", chat.From)
		s.Equal("good luck", chat.Text)
	}
}

func (s *DispatcherSuite) TestChatTruncatedAndDropped() {
	id := s.pair("a", "b")

	out := s.handle(Command{Kind: model.CommandChat, Conn: "a", SessionID: id, Text: strings.Repeat("x", 500)})
	event, ok := find(out, "b", model.EventChatDelivered)
	s.Require().True(ok)
	s.Len(event.Payload.(proto.ChatDelivered).Text, session.MaxChatLength)

	s.Empty(s.handle(Command{Kind: model.CommandChat, Conn: "a", SessionID: id, Text: "   "}))

	s.login("c", "carol")
	s.Empty(s.handle(Command{Kind: model.CommandChat, Conn: "c", SessionID: id, Text: "hi"}))
}

func (s *DispatcherSuite) TestInviteFlow() {
	s.random.QueueString("ABC123")
	s.login("a", "alice")
	s.login("b", "bob")

	out := s.handle(Command{Kind: model.CommandInvite, Conn: "a"})
	event, ok := find(out, "a", model.EventInviteCreated)
	s.Require().True(ok)
	created := event.Payload.(proto.InviteCreated)
	s.Equal("ABC123", created.Code)
	s.True(s.busy("a"))

	out = s.handle(Command{Kind: model.CommandInviteJoin, Conn: "b", Code: " abc123 "})
	for _, conn := range []model.ConnID{"a", "b"} {
		types := typesFor(out, conn)
		s.Require().GreaterOrEqual(len(types), 2)
		s.Equal(model.EventInviteJoined, types[0])
		s.Equal(model.EventSessionStarted, types[1])
	}
	started, _ := find(out, "a", model.EventSessionStarted)
	s.Equal(created.SessionID, started.Payload.(proto.SessionStarted).SessionID)
	s.Equal(model.ColorWhite, started.Payload.(proto.SessionStarted).Color)

	s.login("c", "carol")
	out = s.handle(Command{Kind: model.CommandInviteJoin, Conn: "c", Code: "ABC123"})
	s.requireFailure(out, "c", model.EventInviteFailed, "room_full")

	out = s.handle(Command{Kind: model.CommandInviteJoin, Conn: "c", Code: "NOPE00"})
	s.requireFailure(out, "c", model.EventInviteFailed, "room_not_found")
}

func (s *DispatcherSuite) TestInviteJoinWhileBusyFails() {
	s.pair("a", "b")
	s.login("c", "carol")
	out := s.handle(Command{Kind: model.CommandInvite, Conn: "c"})
	created, _ := find(out, "c", model.EventInviteCreated)

	out = s.handle(Command{Kind: model.CommandInviteJoin, Conn: "a", Code: created.Payload.(proto.InviteCreated).Code})
	s.requireFailure(out, "a", model.EventInviteFailed, "already_in_session")
}

func (s *DispatcherSuite) TestLeaveActiveSessionNotifiesOpponent() {
	id := s.pair("a", "b")

	out := s.handle(Command{Kind: model.CommandLeave, Conn: "a", SessionID: id})

	event, ok := find(out, "b", model.EventOpponentLeft)
	s.Require().True(ok)
	s.Equal(model.LeftReasonLeft, event.Payload.(proto.OpponentLeft).Reason)
	s.Zero(count(out, "a", model.EventOpponentLeft))
	s.False(s.busy("a"))
	s.False(s.busy("b"))

	_, exists := s.directory.Get(s.ctx, id)
	s.False(exists)

	out = s.handle(Command{Kind: model.CommandLeave, Conn: "a", SessionID: id})
	s.requireFailure(out, "a", model.EventError, "room_not_found")
}

func (s *DispatcherSuite) TestLeaveRequiresSeat() {
	id := s.pair("a", "b")
	s.login("c", "carol")

	out := s.handle(Command{Kind: model.CommandLeave, Conn: "c", SessionID: id})
	s.requireFailure(out, "c", model.EventError, "not_in_session")
}

func (s *DispatcherSuite) TestDisconnectNotifiesOpponentOnce() {
	id := s.pair("a", "b")

	out := s.dispatcher.Disconnect(s.ctx, "a")

	s.Equal(1, count(out, "b", model.EventOpponentLeft))
	event, _ := find(out, "b", model.EventOpponentLeft)
	s.Equal(model.LeftReasonDisconnected, event.Payload.(proto.OpponentLeft).Reason)
	s.Empty(typesFor(out, "a"))

	roster, ok := find(out, "b", model.EventRosterChanged)
	s.Require().True(ok)
	players := roster.Payload.(proto.Roster).Players
	s.Require().Len(players, 1)
	s.Equal("bob", players[0].DisplayName)
	s.False(players[0].Busy)

	_, exists := s.directory.Get(s.ctx, id)
	s.False(exists)
	_, ok = s.registry.Lookup(s.ctx, "a")
	s.False(ok)

	// A second disconnect for the same connection is a no-op
	s.Empty(s.dispatcher.Disconnect(s.ctx, "a"))
}

func (s *DispatcherSuite) TestDisconnectAfterFinishSendsNoLeftEvent() {
	id := s.pair("a", "b")
	s.handle(Command{Kind: model.CommandResign, Conn: "b", SessionID: id})

	out := s.dispatcher.Disconnect(s.ctx, "a")

	s.Zero(count(out, "b", model.EventOpponentLeft))
	_, exists := s.directory.Get(s.ctx, id)
	s.False(exists)
}

func (s *DispatcherSuite) TestDisconnectClosesWaitingInviteForSpectators() {
	s.login("a", "alice")
	out := s.handle(Command{Kind: model.CommandInvite, Conn: "a"})
	event, ok := find(out, "a", model.EventInviteCreated)
	s.Require().True(ok)
	id := event.Payload.(proto.InviteCreated).SessionID

	s.dispatcher.Disconnect(s.ctx, "a")

	events := s.observer.events[id]
	s.Require().NotEmpty(events)
	last := events[len(events)-1]
	s.Equal(model.EventOpponentLeft, last.Type)
	s.Equal(model.LeftReasonDisconnected, last.Payload.(proto.OpponentLeft).Reason)
}

func (s *DispatcherSuite) TestLeaveFinishedSessionSkipsSpectators() {
	id := s.pair("a", "b")
	s.handle(Command{Kind: model.CommandResign, Conn: "b", SessionID: id})

	s.handle(Command{Kind: model.CommandLeave, Conn: "a", SessionID: id})

	events := s.observer.events[id]
	s.Require().NotEmpty(events)
	s.Equal(model.EventSessionOver, events[len(events)-1].Type)
}

func (s *DispatcherSuite) TestDisconnectRemovesQueueEntry() {
	s.login("a", "alice")
	s.handle(Command{Kind: model.CommandQueueJoin, Conn: "a"})

	s.dispatcher.Disconnect(s.ctx, "a")

	s.Zero(s.matchmaker.Size())
}

func (s *DispatcherSuite) TestLogoutReleasesName() {
	id := s.pair("a", "b")

	out := s.handle(Command{Kind: model.CommandLogout, Conn: "a"})
	event, ok := find(out, "b", model.EventOpponentLeft)
	s.Require().True(ok)
	s.Equal(model.LeftReasonLoggedOut, event.Payload.(proto.OpponentLeft).Reason)
	_, exists := s.directory.Get(s.ctx, id)
	s.False(exists)

	s.login("c", "ALICE")
}

func (s *DispatcherSuite) TestRequeueClearsFinishedSession() {
	id := s.pair("a", "b")
	s.handle(Command{Kind: model.CommandResign, Conn: "a", SessionID: id})

	out := s.handle(Command{Kind: model.CommandQueueJoin, Conn: "a"})

	s.Zero(count(out, "b", model.EventOpponentLeft))
	_, exists := s.directory.Get(s.ctx, id)
	s.False(exists)

	out = s.handle(Command{Kind: model.CommandQueueJoin, Conn: "b"})
	_, ok := find(out, "b", model.EventSessionStarted)
	s.True(ok)
}

func (s *DispatcherSuite) TestUnknownCommandIgnored() {
	s.login("a", "alice")
	s.Empty(s.handle(Command{Kind: "teleport", Conn: "a"}))
}
