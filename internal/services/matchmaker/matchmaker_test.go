package matchmaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chessmatch-go/internal/dependencies/mocks"
	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/services/registry"
	"github.com/mcoot/chessmatch-go/internal/services/rules"
	"github.com/mcoot/chessmatch-go/internal/services/session"
	"github.com/mcoot/chessmatch-go/internal/storage/memory"
	"github.com/mcoot/chessmatch-go/internal/testutil"
)

type MatchmakerSuite struct {
	suite.Suite
	registry   *registry.Registry
	directory  *session.Directory
	matchmaker *Matchmaker
	ctx        context.Context
}

func TestMatchmakerSuite(t *testing.T) {
	suite.Run(t, new(MatchmakerSuite))
}

func (s *MatchmakerSuite) SetupTest() {
	store := memory.New()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	logger := testutil.NopLogger()
	s.registry = registry.New(store, clk, logger)
	s.directory = session.NewDirectory(store, rules.NewChess(), clk, mocks.NewMockRandom(), logger)
	s.matchmaker = New(s.registry, s.directory, logger)
	s.ctx = context.Background()
}

func (s *MatchmakerSuite) login(ids ...model.ConnID) {
	for _, id := range ids {
		_, err := s.registry.Register(s.ctx, id, "player-"+string(id))
		s.Require().NoError(err)
	}
}

func (s *MatchmakerSuite) enqueue(conn model.ConnID) Match {
	match, err := s.matchmaker.Enqueue(s.ctx, conn)
	s.Require().NoError(err)
	return match
}

func (s *MatchmakerSuite) TestSingleEntryWaits() {
	s.login("a")

	match := s.enqueue("a")
	s.False(match.Matched)
	s.Equal(1, s.matchmaker.Size())
	s.True(s.matchmaker.Contains("a"))
}

func (s *MatchmakerSuite) TestDuplicateEnqueueIgnored() {
	s.login("a")

	s.enqueue("a")
	match := s.enqueue("a")
	s.False(match.Matched)
	s.Equal(1, s.matchmaker.Size())
}

func (s *MatchmakerSuite) TestPairsInFIFOOrder() {
	s.login("a", "b", "c", "d")

	s.False(s.enqueue("a").Matched)
	first := s.enqueue("b")
	s.False(s.enqueue("c").Matched)
	second := s.enqueue("d")

	s.Require().True(first.Matched)
	s.Equal([2]model.ConnID{"a", "b"}, first.Seats)
	s.Equal(model.ConnID("a"), first.Opponent)

	s.Require().True(second.Matched)
	s.Equal([2]model.ConnID{"c", "d"}, second.Seats)
	s.Equal(model.ConnID("c"), second.Opponent)

	s.NotEqual(first.SessionID, second.SessionID)
	s.Equal(0, s.matchmaker.Size())

	session, ok := s.directory.Get(s.ctx, first.SessionID)
	s.Require().True(ok)
	s.NotNil(session.Seat("a"))
	s.NotNil(session.Seat("b"))
	s.Equal(model.SessionKindMatchmaking, session.Kind)
}

func (s *MatchmakerSuite) TestStalePartnerRequeuesSurvivorAtFront() {
	s.login("a", "b", "c")

	s.enqueue("a")
	s.registry.Unregister(s.ctx, "a")

	match := s.enqueue("b")
	s.False(match.Matched)
	s.Equal(1, s.matchmaker.Size())
	s.True(s.matchmaker.Contains("b"))
	s.False(s.matchmaker.Contains("a"))

	match = s.enqueue("c")
	s.Require().True(match.Matched)
	s.Equal([2]model.ConnID{"b", "c"}, match.Seats)
}

func (s *MatchmakerSuite) TestBothStaleLeavesQueueEmpty() {
	s.login("a", "b")

	s.enqueue("a")
	s.registry.Unregister(s.ctx, "a")
	s.registry.Unregister(s.ctx, "b")

	match := s.enqueue("b")
	s.False(match.Matched)
	s.Equal(0, s.matchmaker.Size())
}

func (s *MatchmakerSuite) TestDequeue() {
	s.login("a", "b")

	s.enqueue("a")
	s.matchmaker.Dequeue("a")
	s.matchmaker.Dequeue("ghost")
	s.Equal(0, s.matchmaker.Size())

	s.False(s.enqueue("b").Matched)
}
