package model

import "errors"

// Errors surfaced to participants. Each one is recoverable and reported only
// to the connection that caused it.
var (
	// Identity errors
	ErrNameTaken        = errors.New("display name is already taken")
	ErrNameRequired     = errors.New("display name is required")
	ErrNameTooLong      = errors.New("display name is too long")
	ErrAlreadyLoggedIn  = errors.New("connection is already logged in")
	ErrNotLoggedIn      = errors.New("connection is not logged in")
	ErrIdentityNotFound = errors.New("identity not found")

	// Room errors
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrAlreadyInSession = errors.New("already seated in a session")
	ErrSessionNotFound  = errors.New("session not found")

	// Play errors
	ErrNotInSession  = errors.New("not seated in this session")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrInvalidMove   = errors.New("invalid move")
	ErrGameNotActive = errors.New("game is not active")
	ErrNoDrawOffer   = errors.New("no draw offer to respond to")
)
