package model

// CommandKind names an inbound intent. Values are part of the wire contract.
type CommandKind string

const (
	CommandLogin       CommandKind = "login"
	CommandLogout      CommandKind = "logout"
	CommandQueueJoin   CommandKind = "queue:join"
	CommandQueueLeave  CommandKind = "queue:leave"
	CommandInvite      CommandKind = "invite:create"
	CommandInviteJoin  CommandKind = "invite:join"
	CommandLeave       CommandKind = "session:leave"
	CommandMove        CommandKind = "move:submit"
	CommandDrawOffer   CommandKind = "draw:offer"
	CommandDrawRespond CommandKind = "draw:respond"
	CommandResign      CommandKind = "resign"
	CommandChat        CommandKind = "chat:send"
)

// EventType names an outbound notification. Values are part of the wire contract.
type EventType string

const (
	EventLoginOK        EventType = "login:ok"
	EventLoginFailed    EventType = "login:failed"
	EventRosterChanged  EventType = "roster:changed"
	EventQueueWaiting   EventType = "queue:waiting"
	EventMatchFound     EventType = "match:found"
	EventInviteCreated  EventType = "invite:created"
	EventInviteJoined   EventType = "invite:joined"
	EventInviteFailed   EventType = "invite:failed"
	EventSessionStarted EventType = "session:started"
	EventMoveApplied    EventType = "move:applied"
	EventMoveRejected   EventType = "move:rejected"
	EventSessionOver    EventType = "session:over"
	EventDrawOffered    EventType = "draw:offered"
	EventDrawAccepted   EventType = "draw:accepted"
	EventDrawDeclined   EventType = "draw:declined"
	EventChatDelivered  EventType = "chat:delivered"
	EventOpponentLeft   EventType = "opponent:left"
	EventError          EventType = "error"
)

// Reasons attached to opponent:left
const (
	LeftReasonLeft         = "left"
	LeftReasonDisconnected = "disconnected"
	LeftReasonLoggedOut    = "logged_out"
)
