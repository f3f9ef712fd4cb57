package clock

import "time"

// Clock is the source of timestamps for identities, sessions, moves and chat
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock. Times are always UTC so that every
// timestamp the server emits has the same zone.
type RealClock struct{}

// New creates a RealClock
func New() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}
