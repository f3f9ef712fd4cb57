// Package rules is the boundary to the game-rules engine. The rest of the
// core treats positions as opaque tokens and only reaches them through Engine.
package rules

import (
	"errors"

	"github.com/mcoot/chessmatch-go/internal/model"
)

// ErrInvalidPosition is returned when a position token cannot be decoded
var ErrInvalidPosition = errors.New("invalid position")

// TerminalKind classifies a finished position
type TerminalKind string

const (
	TerminalCheckmate            TerminalKind = model.ReasonCheckmate
	TerminalStalemate            TerminalKind = model.ReasonStalemate
	TerminalRepetition           TerminalKind = model.ReasonRepetition
	TerminalInsufficientMaterial TerminalKind = model.ReasonInsufficientMaterial
	TerminalDrawRule             TerminalKind = model.ReasonDraw
)

// Terminal describes why a position ends the game
type Terminal struct {
	Kind       TerminalKind
	SideToMove model.Color
}

// IsDraw reports whether the terminal state has no winner
func (t Terminal) IsDraw() bool {
	return t.Kind != TerminalCheckmate
}

// Applied is the result of a legal move
type Applied struct {
	Position string
	SAN      string
	UCI      string
	Captured bool
}

// Engine validates and applies moves against opaque position tokens
type Engine interface {
	// InitialPosition returns the token every session starts from
	InitialPosition() string

	// LegalMoves lists the moves available in position
	LegalMoves(position string) ([]string, error)

	// Apply plays notation against position. It returns model.ErrInvalidMove
	// if the move is illegal or unparseable.
	Apply(position, notation string) (*Applied, error)

	// Terminal returns nil while the game can continue. played holds the
	// moves from the initial position to position, in UCI form, and lets
	// the engine detect repetition.
	Terminal(position string, played []string) (*Terminal, error)
}
