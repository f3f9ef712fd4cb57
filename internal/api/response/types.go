package response

import (
	"time"

	"github.com/mcoot/chessmatch-go/internal/model"
)

// Health is the response of GET /health
type Health struct {
	Status string `json:"status"`
}

// SessionCounts breaks sessions down by status
type SessionCounts struct {
	Waiting  int `json:"waiting"`
	Active   int `json:"active"`
	Finished int `json:"finished"`
}

// Stats summarizes server activity
type Stats struct {
	Online      int           `json:"online"`
	Connections int           `json:"connections"`
	Queued      int           `json:"queued"`
	Sessions    SessionCounts `json:"sessions"`
}

// StatsFromCounts converts directory counts
func StatsFromCounts(online, connections, queued int, counts map[model.SessionStatus]int) Stats {
	return Stats{
		Online:      online,
		Connections: connections,
		Queued:      queued,
		Sessions: SessionCounts{
			Waiting:  counts[model.SessionStatusWaiting],
			Active:   counts[model.SessionStatusActive],
			Finished: counts[model.SessionStatusFinished],
		},
	}
}

// Roster lists logged-in participants
type Roster struct {
	Players []model.RosterEntry `json:"players"`
}

// Seat is a seated participant. DisplayName is empty once they have gone.
type Seat struct {
	Color       model.Color `json:"color"`
	DisplayName string      `json:"displayName"`
}

// Move is one entry of the move log
type Move struct {
	Color     model.Color `json:"color"`
	SAN       string      `json:"san"`
	UCI       string      `json:"uci"`
	Timestamp time.Time   `json:"timestamp"`
}

// Outcome describes how a finished session ended
type Outcome struct {
	WinnerColor *model.Color `json:"winnerColor"`
	Reason      string       `json:"reason"`
}

// Session is a spectator's view of a session. Chat is private and left out.
type Session struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	Status     string      `json:"status"`
	Seats      []Seat      `json:"seats"`
	Position   string      `json:"position"`
	Turn       model.Color `json:"turn"`
	Moves      []Move      `json:"moves"`
	Outcome    *Outcome    `json:"outcome"`
	CreatedAt  time.Time   `json:"createdAt"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}

// SessionFromModel converts a session snapshot. names resolves a seat's
// display name.
func SessionFromModel(s *model.Session, names func(model.ConnID) string) Session {
	seats := make([]Seat, len(s.Seats))
	for i, seat := range s.Seats {
		seats[i] = Seat{Color: seat.Color, DisplayName: names(seat.Conn)}
	}

	moves := make([]Move, len(s.MoveLog))
	for i, m := range s.MoveLog {
		moves[i] = Move{Color: m.Color, SAN: m.SAN, UCI: m.UCI, Timestamp: m.Timestamp}
	}

	var outcome *Outcome
	if s.Outcome != nil {
		outcome = &Outcome{WinnerColor: s.Outcome.Winner, Reason: s.Outcome.Reason}
	}

	return Session{
		ID:         string(s.ID),
		Kind:       string(s.Kind),
		Status:     string(s.Status),
		Seats:      seats,
		Position:   s.Position,
		Turn:       s.Turn,
		Moves:      moves,
		Outcome:    outcome,
		CreatedAt:  s.CreatedAt,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

// SessionList is the response of GET /sessions
type SessionList struct {
	Sessions []Session `json:"sessions"`
}

// LegalMoves lists the moves available in a session's current position
type LegalMoves struct {
	SessionID string   `json:"sessionId"`
	Position  string   `json:"position"`
	Moves     []string `json:"moves"`
}
