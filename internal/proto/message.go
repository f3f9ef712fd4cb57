// Package proto defines the JSON frames exchanged over the event boundary
package proto

import (
	"encoding/json"
	"time"

	"github.com/mcoot/chessmatch-go/internal/model"
)

// Inbound is the envelope for frames sent by a participant
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for frames sent to a participant
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Inbound payloads

type LoginData struct {
	DisplayName string `json:"displayName"`
}

type InviteJoinData struct {
	Code string `json:"code"`
}

// SessionRef is the payload of session:leave, draw:offer and resign
type SessionRef struct {
	SessionID model.SessionID `json:"sessionId"`
}

type MoveData struct {
	SessionID model.SessionID `json:"sessionId"`
	Notation  string          `json:"notation"`
}

type DrawRespondData struct {
	SessionID model.SessionID `json:"sessionId"`
	Accept    bool            `json:"accept"`
}

type ChatData struct {
	SessionID model.SessionID `json:"sessionId"`
	Text      string          `json:"text"`
}

// Outbound payloads

type LoginOK struct {
	DisplayName string `json:"displayName"`
}

// Failure is the payload of login:failed, invite:failed, move:rejected and error
type Failure struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type Roster struct {
	Players []model.RosterEntry `json:"players"`
}

type QueueWaiting struct {
	Size int `json:"size"`
}

// Opponent describes the other seat of a session
type Opponent struct {
	ID          model.ConnID `json:"id"`
	DisplayName string       `json:"displayName"`
	Color       model.Color  `json:"color"`
}

type MatchFound struct {
	SessionID model.SessionID `json:"sessionId"`
	Opponent  Opponent        `json:"opponent"`
}

type InviteCreated struct {
	SessionID model.SessionID `json:"sessionId"`
	Code      string          `json:"code"`
}

type InviteJoined struct {
	SessionID model.SessionID `json:"sessionId"`
}

type SessionStarted struct {
	SessionID model.SessionID `json:"sessionId"`
	Color     model.Color     `json:"color"`
	Opponent  Opponent        `json:"opponent"`
	Position  string          `json:"position"`
}

type MoveApplied struct {
	SessionID model.SessionID `json:"sessionId"`
	Notation  string          `json:"notation"`
	UCI       string          `json:"uci"`
	Position  string          `json:"position"`
	Turn      model.Color     `json:"turn"`
	Captured  bool            `json:"captured"`
}

type SessionOver struct {
	SessionID   model.SessionID `json:"sessionId"`
	WinnerColor *model.Color    `json:"winnerColor"`
	Reason      string          `json:"reason"`
	Position    string          `json:"position"`
}

type DrawOffered struct {
	SessionID model.SessionID `json:"sessionId"`
	From      string          `json:"from"`
}

// DrawAnswer is the payload of draw:accepted and draw:declined
type DrawAnswer struct {
	SessionID model.SessionID `json:"sessionId"`
}

type ChatDelivered struct {
	SessionID model.SessionID `json:"sessionId"`
	From      string          `json:"from"`
	Text      string          `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
}

type OpponentLeft struct {
	SessionID model.SessionID `json:"sessionId"`
	Reason    string          `json:"reason"`
}

// SpectatorStart announces a started session on spectator streams
type SpectatorStart struct {
	SessionID model.SessionID `json:"sessionId"`
	White     string          `json:"white"`
	Black     string          `json:"black"`
	Position  string          `json:"position"`
}
