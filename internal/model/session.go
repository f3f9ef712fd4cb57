package model

import "time"

// SessionID uniquely identifies a session
type SessionID string

// Color is the side a seat plays. White always moves first.
type Color string

const (
	ColorWhite Color = "white"
	ColorBlack Color = "black"
)

// Opposite returns the other color
func (c Color) Opposite() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// SessionKind records how a session was created
type SessionKind string

const (
	SessionKindMatchmaking SessionKind = "matchmaking"
	SessionKindInvite      SessionKind = "invite"
)

// SessionStatus represents the lifecycle state of a session
type SessionStatus string

const (
	SessionStatusWaiting  SessionStatus = "waiting"
	SessionStatusActive   SessionStatus = "active"
	SessionStatusFinished SessionStatus = "finished"
)

// Terminal reasons reported in an Outcome
const (
	ReasonCheckmate            = "checkmate"
	ReasonStalemate            = "stalemate"
	ReasonRepetition           = "repetition"
	ReasonInsufficientMaterial = "insufficient_material"
	ReasonDraw                 = "draw"
	ReasonResignation          = "resignation"
)

// MaxSeats is the number of seats in every session
const MaxSeats = 2

// Seat binds a connection to a color for the lifetime of a session
type Seat struct {
	Conn  ConnID
	Color Color
}

// Outcome describes how a finished session ended. Winner is nil for draws.
type Outcome struct {
	Winner *Color
	Reason string
}

// MoveEntry is a single accepted move
type MoveEntry struct {
	By        ConnID
	Color     Color
	Notation  string // as submitted
	SAN       string
	UCI       string
	Timestamp time.Time
}

// ChatEntry is a single chat line
type ChatEntry struct {
	By        ConnID
	From      string
	Text      string
	Timestamp time.Time
}

// Session is a single paired game
type Session struct {
	ID         SessionID
	InviteCode string // only set for invite sessions
	Kind       SessionKind
	Seats      []Seat
	Status     SessionStatus
	Position   string
	Turn       Color
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Outcome    *Outcome
	MoveLog    []MoveEntry
	ChatLog    []ChatEntry
}

// Seat returns the seat held by conn, or nil
func (s *Session) Seat(conn ConnID) *Seat {
	for i := range s.Seats {
		if s.Seats[i].Conn == conn {
			return &s.Seats[i]
		}
	}
	return nil
}

// Opponent returns the seat that is not held by conn, or nil
func (s *Session) Opponent(conn ConnID) *Seat {
	if s.Seat(conn) == nil {
		return nil
	}
	for i := range s.Seats {
		if s.Seats[i].Conn != conn {
			return &s.Seats[i]
		}
	}
	return nil
}

// SeatFor returns the seat playing the given color, or nil
func (s *Session) SeatFor(color Color) *Seat {
	for i := range s.Seats {
		if s.Seats[i].Color == color {
			return &s.Seats[i]
		}
	}
	return nil
}

// IsFull reports whether both seats are taken
func (s *Session) IsFull() bool {
	return len(s.Seats) >= MaxSeats
}

// PlayedUCI returns the accepted moves in UCI form, oldest first
func (s *Session) PlayedUCI() []string {
	moves := make([]string, 0, len(s.MoveLog))
	for _, m := range s.MoveLog {
		moves = append(moves, m.UCI)
	}
	return moves
}

// Clone returns a deep copy that shares no mutable state with s
func (s *Session) Clone() *Session {
	c := *s
	c.Seats = append([]Seat(nil), s.Seats...)
	c.MoveLog = append([]MoveEntry(nil), s.MoveLog...)
	c.ChatLog = append([]ChatEntry(nil), s.ChatLog...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	if s.Outcome != nil {
		o := *s.Outcome
		if s.Outcome.Winner != nil {
			w := *s.Outcome.Winner
			o.Winner = &w
		}
		c.Outcome = &o
	}
	return &c
}
