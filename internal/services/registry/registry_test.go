package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chessmatch-go/internal/dependencies/mocks"
	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/storage/memory"
	"github.com/mcoot/chessmatch-go/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	clock    *mocks.MockClock
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = New(memory.New(), s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *RegistrySuite) TestRegisterTrimsName() {
	identity, err := s.registry.Register(s.ctx, "conn-1", "  Alice  ")
	s.Require().NoError(err)

	s.Equal(model.ConnID("conn-1"), identity.ID)
	s.Equal("Alice", identity.DisplayName)
	s.Equal(s.clock.Now(), identity.JoinedAt)
	s.False(identity.Busy)
}

func (s *RegistrySuite) TestRegisterRejectsNameInAnyCase() {
	_, err := s.registry.Register(s.ctx, "conn-1", "Bob")
	s.Require().NoError(err)

	for _, name := range []string{"Bob", "bob", "BOB", " bOb "} {
		_, err := s.registry.Register(s.ctx, "conn-2", name)
		s.ErrorIs(err, model.ErrNameTaken, name)
	}
}

func (s *RegistrySuite) TestRegisterFoldsUnicode() {
	_, err := s.registry.Register(s.ctx, "conn-1", "Émile")
	s.Require().NoError(err)

	_, err = s.registry.Register(s.ctx, "conn-2", "éMILE")
	s.ErrorIs(err, model.ErrNameTaken)
}

func (s *RegistrySuite) TestRegisterValidatesName() {
	_, err := s.registry.Register(s.ctx, "conn-1", "   ")
	s.ErrorIs(err, model.ErrNameRequired)

	_, err = s.registry.Register(s.ctx, "conn-1", "abcdefghijklmnopqrstuvwxyz")
	s.ErrorIs(err, model.ErrNameTooLong)
}

func (s *RegistrySuite) TestRegisterTwiceOnSameConnection() {
	_, err := s.registry.Register(s.ctx, "conn-1", "Alice")
	s.Require().NoError(err)

	_, err = s.registry.Register(s.ctx, "conn-1", "Alicia")
	s.ErrorIs(err, model.ErrAlreadyLoggedIn)
}

func (s *RegistrySuite) TestConcurrentRegisterOnlyOneWins() {
	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := "Bob"
			if i%2 == 1 {
				name = "bob"
			}
			_, err := s.registry.Register(s.ctx, model.ConnID(fmt.Sprintf("conn-%d", i)), name)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, model.ErrNameTaken)
	}
	s.Equal(1, succeeded)
	s.Equal(1, s.registry.Count(s.ctx))
}

func (s *RegistrySuite) TestUnregisterFreesName() {
	_, _ = s.registry.Register(s.ctx, "conn-1", "Alice")

	removed := s.registry.Unregister(s.ctx, "conn-1")
	s.Require().NotNil(removed)
	s.Equal("Alice", removed.DisplayName)

	s.Nil(s.registry.Unregister(s.ctx, "conn-1"))

	_, err := s.registry.Register(s.ctx, "conn-2", "alice")
	s.NoError(err)
}

func (s *RegistrySuite) TestLookupMissingIsEmpty() {
	identity, ok := s.registry.Lookup(s.ctx, "ghost")
	s.False(ok)
	s.Nil(identity)
}

func (s *RegistrySuite) TestListAllInLoginOrder() {
	_, _ = s.registry.Register(s.ctx, "conn-1", "Carol")
	_, _ = s.registry.Register(s.ctx, "conn-2", "Alice")
	_, _ = s.registry.Register(s.ctx, "conn-3", "Bob")
	s.registry.SetBusy(s.ctx, "conn-2", true, "session-1")

	s.Equal([]model.RosterEntry{
		{ID: "conn-1", DisplayName: "Carol"},
		{ID: "conn-2", DisplayName: "Alice", Busy: true},
		{ID: "conn-3", DisplayName: "Bob"},
	}, s.registry.ListAll(s.ctx))
}

func (s *RegistrySuite) TestSetBusy() {
	_, _ = s.registry.Register(s.ctx, "conn-1", "Alice")

	s.registry.SetBusy(s.ctx, "conn-1", true, "session-1")
	identity, _ := s.registry.Lookup(s.ctx, "conn-1")
	s.True(identity.Busy)
	s.Equal(model.SessionID("session-1"), identity.SessionID)

	s.registry.SetBusy(s.ctx, "conn-1", false, "session-1")
	identity, _ = s.registry.Lookup(s.ctx, "conn-1")
	s.False(identity.Busy)
	s.Empty(identity.SessionID)

	// absent identities are ignored
	s.registry.SetBusy(s.ctx, "ghost", true, "session-1")
	s.Equal(1, s.registry.Count(s.ctx))
}
