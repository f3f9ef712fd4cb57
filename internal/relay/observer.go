package relay

import "github.com/mcoot/chessmatch-go/internal/model"

// Observer receives notifications meant for people watching rather than
// playing. Calls are made from the relay loop and must not block.
type Observer interface {
	RosterChanged(roster []model.RosterEntry)
	SessionEvent(id model.SessionID, event Event)
}

// NopObserver ignores everything
type NopObserver struct{}

func (NopObserver) RosterChanged([]model.RosterEntry) {}
func (NopObserver) SessionEvent(model.SessionID, Event) {}
