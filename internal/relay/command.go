package relay

import (
	"errors"

	"github.com/mcoot/chessmatch-go/internal/model"
)

// Command is one inbound intent bound to the connection that sent it. Only
// the fields relevant to Kind are set.
type Command struct {
	Kind        model.CommandKind
	Conn        model.ConnID
	DisplayName string
	Code        string
	SessionID   model.SessionID
	Notation    string
	Text        string
	Accept      bool
}

// Event is one outbound notification. Payload is a proto struct.
type Event struct {
	Type    model.EventType
	Payload any
}

// Delivery addresses an event to a single connection
type Delivery struct {
	To    model.ConnID
	Event Event
}

// ReasonInternal is reported when a request failed for a reason the
// participant cannot act on
const ReasonInternal = "internal"

var reasonCodes = []struct {
	err  error
	code string
}{
	{model.ErrNameTaken, "name_taken"},
	{model.ErrNameRequired, "name_required"},
	{model.ErrNameTooLong, "name_too_long"},
	{model.ErrAlreadyLoggedIn, "already_logged_in"},
	{model.ErrNotLoggedIn, "not_logged_in"},
	{model.ErrRoomNotFound, "room_not_found"},
	{model.ErrRoomFull, "room_full"},
	{model.ErrAlreadyStarted, "already_started"},
	{model.ErrAlreadyInSession, "already_in_session"},
	{model.ErrNotInSession, "not_in_session"},
	{model.ErrNotYourTurn, "not_your_turn"},
	{model.ErrInvalidMove, "invalid_move"},
	{model.ErrGameNotActive, "game_not_active"},
	{model.ErrNoDrawOffer, "no_draw_offer"},
}

// ReasonCode maps a domain error to its wire reason
func ReasonCode(err error) string {
	for _, rc := range reasonCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return ReasonInternal
}

type outbox struct {
	deliveries []Delivery
}

func (o *outbox) send(to model.ConnID, eventType model.EventType, payload any) {
	o.deliveries = append(o.deliveries, Delivery{To: to, Event: Event{Type: eventType, Payload: payload}})
}
