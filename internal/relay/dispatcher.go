package relay

import (
	"context"
	"log/slog"

	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/proto"
	"github.com/mcoot/chessmatch-go/internal/services/matchmaker"
	"github.com/mcoot/chessmatch-go/internal/services/registry"
	"github.com/mcoot/chessmatch-go/internal/services/session"
)

// Dispatcher turns commands into service calls and decides who is told
// about the result. It never touches connections: Handle and Disconnect
// return the deliveries and the Relay sends them.
//
// A Dispatcher is not safe for concurrent use. The Relay calls it from its
// single loop goroutine.
type Dispatcher struct {
	registry   registry.RegistryInterface
	directory  session.DirectoryInterface
	matchmaker matchmaker.MatchmakerInterface
	observer   Observer
	logger     *slog.Logger

	// pending draw offers by session, valued by the offering connection
	drawOffers map[model.SessionID]model.ConnID
}

// NewDispatcher creates a Dispatcher. observer may be nil.
func NewDispatcher(
	reg registry.RegistryInterface,
	dir session.DirectoryInterface,
	mm matchmaker.MatchmakerInterface,
	observer Observer,
	logger *slog.Logger,
) *Dispatcher {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Dispatcher{
		registry:   reg,
		directory:  dir,
		matchmaker: mm,
		observer:   observer,
		logger:     logger.With(slog.String("component", "dispatcher")),
		drawOffers: make(map[model.SessionID]model.ConnID),
	}
}

// Handle applies cmd and returns the resulting notifications
func (d *Dispatcher) Handle(ctx context.Context, cmd Command) []Delivery {
	out := &outbox{}

	if cmd.Kind == model.CommandLogin {
		d.login(ctx, cmd, out)
		return out.deliveries
	}

	identity, ok := d.registry.Lookup(ctx, cmd.Conn)
	if !ok {
		d.fail(out, cmd.Conn, model.EventError, model.ErrNotLoggedIn)
		return out.deliveries
	}

	switch cmd.Kind {
	case model.CommandLogout:
		d.logout(ctx, cmd, out)
	case model.CommandQueueJoin:
		d.queueJoin(ctx, identity, out)
	case model.CommandQueueLeave:
		d.matchmaker.Dequeue(cmd.Conn)
	case model.CommandInvite:
		d.inviteCreate(ctx, identity, out)
	case model.CommandInviteJoin:
		d.inviteJoin(ctx, identity, cmd.Code, out)
	case model.CommandLeave:
		d.sessionLeave(ctx, cmd, out)
	case model.CommandMove:
		d.move(ctx, cmd, out)
	case model.CommandDrawOffer:
		d.drawOffer(ctx, identity, cmd, out)
	case model.CommandDrawRespond:
		d.drawRespond(ctx, cmd, out)
	case model.CommandResign:
		d.resign(ctx, cmd, out)
	case model.CommandChat:
		d.chat(ctx, identity, cmd, out)
	default:
		d.logger.Warn("dropping unknown command",
			slog.String("conn_id", string(cmd.Conn)),
			slog.String("kind", string(cmd.Kind)))
	}

	return out.deliveries
}

// Disconnect tears down everything conn held: its queue entry, its
// sessions and its identity
func (d *Dispatcher) Disconnect(ctx context.Context, conn model.ConnID) []Delivery {
	out := &outbox{}

	d.matchmaker.Dequeue(conn)
	d.releaseAll(ctx, conn, model.LeftReasonDisconnected, out)
	if removed := d.registry.Unregister(ctx, conn); removed != nil {
		d.broadcastRoster(ctx, out)
	}

	return out.deliveries
}

func (d *Dispatcher) login(ctx context.Context, cmd Command, out *outbox) {
	identity, err := d.registry.Register(ctx, cmd.Conn, cmd.DisplayName)
	if err != nil {
		d.fail(out, cmd.Conn, model.EventLoginFailed, err)
		return
	}
	out.send(cmd.Conn, model.EventLoginOK, proto.LoginOK{DisplayName: identity.DisplayName})
	d.broadcastRoster(ctx, out)
}

func (d *Dispatcher) logout(ctx context.Context, cmd Command, out *outbox) {
	d.matchmaker.Dequeue(cmd.Conn)
	d.releaseAll(ctx, cmd.Conn, model.LeftReasonLoggedOut, out)
	d.registry.Unregister(ctx, cmd.Conn)
	d.broadcastRoster(ctx, out)
}

func (d *Dispatcher) queueJoin(ctx context.Context, identity *model.Identity, out *outbox) {
	if identity.Busy {
		d.fail(out, identity.ID, model.EventError, model.ErrAlreadyInSession)
		return
	}
	d.releaseFinished(ctx, identity.ID, out)

	match, err := d.matchmaker.Enqueue(ctx, identity.ID)
	if err != nil {
		d.internal(out, identity.ID, model.EventError, err)
		return
	}
	if !match.Matched {
		out.send(identity.ID, model.EventQueueWaiting, proto.QueueWaiting{Size: d.matchmaker.Size()})
		return
	}

	snapshot, ok := d.directory.Get(ctx, match.SessionID)
	if !ok {
		return
	}
	for _, seat := range snapshot.Seats {
		out.send(seat.Conn, model.EventMatchFound, proto.MatchFound{
			SessionID: snapshot.ID,
			Opponent:  d.opponent(ctx, snapshot, seat.Conn),
		})
	}
	d.start(ctx, snapshot.ID, out)
	d.broadcastRoster(ctx, out)
}

func (d *Dispatcher) inviteCreate(ctx context.Context, identity *model.Identity, out *outbox) {
	if identity.Busy {
		d.fail(out, identity.ID, model.EventError, model.ErrAlreadyInSession)
		return
	}
	d.releaseFinished(ctx, identity.ID, out)
	d.matchmaker.Dequeue(identity.ID)

	created, err := d.directory.CreateInviteSession(ctx, identity.ID)
	if err != nil {
		d.internal(out, identity.ID, model.EventError, err)
		return
	}
	d.registry.SetBusy(ctx, identity.ID, true, created.ID)

	out.send(identity.ID, model.EventInviteCreated, proto.InviteCreated{
		SessionID: created.ID,
		Code:      created.InviteCode,
	})
	d.broadcastRoster(ctx, out)
}

func (d *Dispatcher) inviteJoin(ctx context.Context, identity *model.Identity, code string, out *outbox) {
	if identity.Busy {
		d.fail(out, identity.ID, model.EventInviteFailed, model.ErrAlreadyInSession)
		return
	}

	joined, err := d.directory.JoinInviteSession(ctx, identity.ID, code)
	if err != nil {
		d.fail(out, identity.ID, model.EventInviteFailed, err)
		return
	}
	d.releaseFinished(ctx, identity.ID, out)
	d.matchmaker.Dequeue(identity.ID)

	for _, seat := range joined.Seats {
		out.send(seat.Conn, model.EventInviteJoined, proto.InviteJoined{SessionID: joined.ID})
	}
	d.start(ctx, joined.ID, out)
	d.broadcastRoster(ctx, out)
}

func (d *Dispatcher) sessionLeave(ctx context.Context, cmd Command, out *outbox) {
	snapshot, ok := d.directory.Get(ctx, cmd.SessionID)
	if !ok {
		d.fail(out, cmd.Conn, model.EventError, model.ErrRoomNotFound)
		return
	}
	if snapshot.Seat(cmd.Conn) == nil {
		d.fail(out, cmd.Conn, model.EventError, model.ErrNotInSession)
		return
	}
	d.release(ctx, cmd.SessionID, cmd.Conn, model.LeftReasonLeft, out)
	d.broadcastRoster(ctx, out)
}

func (d *Dispatcher) move(ctx context.Context, cmd Command, out *outbox) {
	result, err := d.directory.SubmitMove(ctx, cmd.SessionID, cmd.Conn, cmd.Notation)
	if err != nil {
		if ReasonCode(err) == ReasonInternal {
			d.internal(out, cmd.Conn, model.EventMoveRejected, err)
			return
		}
		d.fail(out, cmd.Conn, model.EventMoveRejected, err)
		return
	}
	delete(d.drawOffers, cmd.SessionID)

	snapshot, ok := d.directory.Get(ctx, cmd.SessionID)
	if !ok {
		return
	}

	applied := Event{Type: model.EventMoveApplied, Payload: proto.MoveApplied{
		SessionID: result.SessionID,
		Notation:  result.SAN,
		UCI:       result.UCI,
		Position:  result.Position,
		Turn:      result.Turn,
		Captured:  result.Captured,
	}}
	if opp := snapshot.Opponent(cmd.Conn); opp != nil {
		out.send(opp.Conn, applied.Type, applied.Payload)
	}
	d.observer.SessionEvent(snapshot.ID, applied)

	if result.GameOver {
		d.over(ctx, snapshot, result, out)
	}
}

func (d *Dispatcher) drawOffer(ctx context.Context, identity *model.Identity, cmd Command, out *outbox) {
	snapshot, err := d.directory.CheckActiveSeat(ctx, cmd.SessionID, cmd.Conn)
	if err != nil {
		d.fail(out, cmd.Conn, model.EventError, err)
		return
	}
	d.drawOffers[snapshot.ID] = cmd.Conn
	if opp := snapshot.Opponent(cmd.Conn); opp != nil {
		out.send(opp.Conn, model.EventDrawOffered, proto.DrawOffered{
			SessionID: snapshot.ID,
			From:      identity.DisplayName,
		})
	}
}

func (d *Dispatcher) drawRespond(ctx context.Context, cmd Command, out *outbox) {
	snapshot, err := d.directory.CheckActiveSeat(ctx, cmd.SessionID, cmd.Conn)
	if err != nil {
		d.fail(out, cmd.Conn, model.EventError, err)
		return
	}
	offerer, ok := d.drawOffers[snapshot.ID]
	if !ok || offerer == cmd.Conn {
		d.fail(out, cmd.Conn, model.EventError, model.ErrNoDrawOffer)
		return
	}
	delete(d.drawOffers, snapshot.ID)

	answer := proto.DrawAnswer{SessionID: snapshot.ID}
	if !cmd.Accept {
		out.send(offerer, model.EventDrawDeclined, answer)
		return
	}

	result, err := d.directory.AgreeDraw(ctx, snapshot.ID)
	if err != nil {
		d.fail(out, cmd.Conn, model.EventError, err)
		return
	}
	for _, seat := range snapshot.Seats {
		out.send(seat.Conn, model.EventDrawAccepted, answer)
	}
	d.over(ctx, snapshot, result, out)
}

func (d *Dispatcher) resign(ctx context.Context, cmd Command, out *outbox) {
	result, err := d.directory.Resign(ctx, cmd.SessionID, cmd.Conn)
	if err != nil {
		d.fail(out, cmd.Conn, model.EventError, err)
		return
	}
	snapshot, ok := d.directory.Get(ctx, cmd.SessionID)
	if !ok {
		return
	}
	d.over(ctx, snapshot, result, out)
}

func (d *Dispatcher) chat(ctx context.Context, identity *model.Identity, cmd Command, out *outbox) {
	entry, ok := d.directory.AppendChat(ctx, cmd.SessionID, cmd.Conn, identity.DisplayName, cmd.Text)
	if !ok {
		d.logger.Debug("chat dropped",
			slog.String("conn_id", string(cmd.Conn)),
			slog.String("session_id", string(cmd.SessionID)))
		return
	}
	snapshot, ok := d.directory.Get(ctx, cmd.SessionID)
	if !ok {
		return
	}
	delivered := proto.ChatDelivered{
		SessionID: snapshot.ID,
		From:      entry.From,
		Text:      entry.Text,
		Timestamp: entry.Timestamp,
	}
	for _, seat := range snapshot.Seats {
		out.send(seat.Conn, model.EventChatDelivered, delivered)
	}
}

// start activates a full session and tells each seat its color
func (d *Dispatcher) start(ctx context.Context, id model.SessionID, out *outbox) {
	started, err := d.directory.Start(ctx, id)
	if err != nil {
		d.logger.Error("failed to start session",
			slog.String("session_id", string(id)),
			slog.Any("error", err))
		return
	}
	if !started {
		return
	}
	snapshot, ok := d.directory.Get(ctx, id)
	if !ok {
		return
	}

	for _, seat := range snapshot.Seats {
		d.registry.SetBusy(ctx, seat.Conn, true, id)
		out.send(seat.Conn, model.EventSessionStarted, proto.SessionStarted{
			SessionID: id,
			Color:     seat.Color,
			Opponent:  d.opponent(ctx, snapshot, seat.Conn),
			Position:  snapshot.Position,
		})
	}

	spectators := proto.SpectatorStart{SessionID: id, Position: snapshot.Position}
	if white := snapshot.SeatFor(model.ColorWhite); white != nil {
		spectators.White = d.displayName(ctx, white.Conn)
	}
	if black := snapshot.SeatFor(model.ColorBlack); black != nil {
		spectators.Black = d.displayName(ctx, black.Conn)
	}
	d.observer.SessionEvent(id, Event{Type: model.EventSessionStarted, Payload: spectators})
}

// over announces a finished session to both seats and frees them. The
// session itself stays in the directory until a seat clears it.
func (d *Dispatcher) over(ctx context.Context, snapshot *model.Session, result *session.MoveOutcome, out *outbox) {
	delete(d.drawOffers, snapshot.ID)

	payload := proto.SessionOver{
		SessionID: snapshot.ID,
		Reason:    result.Outcome.Reason,
		Position:  result.Position,
	}
	if result.Outcome.Winner != nil {
		winner := *result.Outcome.Winner
		payload.WinnerColor = &winner
	}

	for _, seat := range snapshot.Seats {
		out.send(seat.Conn, model.EventSessionOver, payload)
		d.registry.SetBusy(ctx, seat.Conn, false, "")
	}
	d.observer.SessionEvent(snapshot.ID, Event{Type: model.EventSessionOver, Payload: payload})
	d.broadcastRoster(ctx, out)
}

// release removes a session on behalf of leaver. The remaining seat and any
// spectators are told only if the game had not already finished.
func (d *Dispatcher) release(ctx context.Context, id model.SessionID, leaver model.ConnID, reason string, out *outbox) {
	removed, ok := d.directory.Remove(ctx, id)
	if !ok {
		return
	}
	delete(d.drawOffers, id)

	notify := removed.Status != model.SessionStatusFinished
	left := Event{Type: model.EventOpponentLeft, Payload: proto.OpponentLeft{SessionID: id, Reason: reason}}

	for _, seat := range removed.Seats {
		d.registry.SetBusy(ctx, seat.Conn, false, "")
		if seat.Conn != leaver && notify {
			out.send(seat.Conn, left.Type, left.Payload)
		}
	}
	if notify {
		d.observer.SessionEvent(id, left)
	}
}

func (d *Dispatcher) releaseAll(ctx context.Context, conn model.ConnID, reason string, out *outbox) {
	for _, id := range d.directory.SessionsContaining(ctx, conn) {
		d.release(ctx, id, conn, reason, out)
	}
}

func (d *Dispatcher) releaseFinished(ctx context.Context, conn model.ConnID, out *outbox) {
	for _, id := range d.directory.SessionsContaining(ctx, conn) {
		if snapshot, ok := d.directory.Get(ctx, id); ok && snapshot.Status == model.SessionStatusFinished {
			d.release(ctx, id, conn, "", out)
		}
	}
}

func (d *Dispatcher) broadcastRoster(ctx context.Context, out *outbox) {
	roster := d.registry.ListAll(ctx)
	payload := proto.Roster{Players: roster}
	for _, entry := range roster {
		out.send(entry.ID, model.EventRosterChanged, payload)
	}
	d.observer.RosterChanged(roster)
}

func (d *Dispatcher) opponent(ctx context.Context, snapshot *model.Session, conn model.ConnID) proto.Opponent {
	opp := snapshot.Opponent(conn)
	if opp == nil {
		return proto.Opponent{}
	}
	return proto.Opponent{
		ID:          opp.Conn,
		DisplayName: d.displayName(ctx, opp.Conn),
		Color:       opp.Color,
	}
}

func (d *Dispatcher) displayName(ctx context.Context, conn model.ConnID) string {
	if identity, ok := d.registry.Lookup(ctx, conn); ok {
		return identity.DisplayName
	}
	return ""
}

func (d *Dispatcher) fail(out *outbox, conn model.ConnID, eventType model.EventType, err error) {
	out.send(conn, eventType, proto.Failure{Reason: ReasonCode(err), Message: err.Error()})
}

func (d *Dispatcher) internal(out *outbox, conn model.ConnID, eventType model.EventType, err error) {
	d.logger.Error("command failed",
		slog.String("conn_id", string(conn)),
		slog.Any("error", err))
	out.send(conn, eventType, proto.Failure{Reason: ReasonInternal, Message: "internal error"})
}
