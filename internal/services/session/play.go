package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mcoot/chessmatch-go/internal/model"
)

// MaxChatLength is the longest chat line kept, in characters
const MaxChatLength = 200

// MoveOutcome is the result of a move, a resignation or an agreed draw
type MoveOutcome struct {
	SessionID model.SessionID
	Mover     model.Seat
	SAN       string
	UCI       string
	Captured  bool
	Position  string
	Turn      model.Color
	GameOver  bool
	Outcome   *model.Outcome
}

// SubmitMove plays notation for conn. Checks run in order: seat, status,
// turn, legality.
func (d *Directory) SubmitMove(ctx context.Context, id model.SessionID, conn model.ConnID, notation string) (*MoveOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}

	seat := session.Seat(conn)
	if seat == nil {
		return nil, model.ErrNotInSession
	}
	if session.Status != model.SessionStatusActive {
		return nil, model.ErrGameNotActive
	}
	if seat.Color != session.Turn {
		return nil, model.ErrNotYourTurn
	}

	applied, err := d.engine.Apply(session.Position, notation)
	if err != nil {
		if errors.Is(err, model.ErrInvalidMove) {
			return nil, model.ErrInvalidMove
		}
		return nil, fmt.Errorf("applying move: %w", err)
	}

	played := append(session.PlayedUCI(), applied.UCI)
	terminal, err := d.engine.Terminal(applied.Position, played)
	if err != nil {
		return nil, fmt.Errorf("checking terminal state: %w", err)
	}

	now := d.clock.Now()
	session.MoveLog = append(session.MoveLog, model.MoveEntry{
		By:        conn,
		Color:     seat.Color,
		Notation:  strings.TrimSpace(notation),
		SAN:       applied.SAN,
		UCI:       applied.UCI,
		Timestamp: now,
	})
	session.Position = applied.Position
	session.Turn = seat.Color.Opposite()

	if terminal != nil {
		outcome := &model.Outcome{Reason: string(terminal.Kind)}
		if !terminal.IsDraw() {
			winner := seat.Color
			outcome.Winner = &winner
		}
		d.finish(session, outcome)
	}

	if err := d.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	d.logger.Debug("move applied",
		slog.String("session_id", string(id)),
		slog.String("conn_id", string(conn)),
		slog.String("san", applied.SAN))

	result := d.outcome(session, *seat)
	result.SAN = applied.SAN
	result.UCI = applied.UCI
	result.Captured = applied.Captured
	return result, nil
}

// Resign ends the session in the opponent's favour, whoever's turn it is
func (d *Directory) Resign(ctx context.Context, id model.SessionID, conn model.ConnID) (*MoveOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	seat := session.Seat(conn)
	if seat == nil {
		return nil, model.ErrNotInSession
	}
	if session.Status != model.SessionStatusActive {
		return nil, model.ErrGameNotActive
	}

	winner := seat.Color.Opposite()
	d.finish(session, &model.Outcome{Winner: &winner, Reason: model.ReasonResignation})

	if err := d.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return d.outcome(session, *seat), nil
}

// AgreeDraw finishes an active session as a draw
func (d *Directory) AgreeDraw(ctx context.Context, id model.SessionID) (*MoveOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusActive {
		return nil, model.ErrGameNotActive
	}

	d.finish(session, &model.Outcome{Reason: model.ReasonDraw})

	if err := d.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return d.outcome(session, model.Seat{}), nil
}

// CheckActiveSeat verifies that conn is seated in an active session and
// returns a snapshot of it
func (d *Directory) CheckActiveSeat(ctx context.Context, id model.SessionID, conn model.ConnID) (*model.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Seat(conn) == nil {
		return nil, model.ErrNotInSession
	}
	if session.Status != model.SessionStatusActive {
		return nil, model.ErrGameNotActive
	}
	return session.Clone(), nil
}

// AppendChat records a chat line from a seated connection. The text is
// trimmed and cut to MaxChatLength. ok is false when nothing was recorded.
func (d *Directory) AppendChat(ctx context.Context, id model.SessionID, conn model.ConnID, from, text string) (*model.ChatEntry, bool) {
	text = truncate(strings.TrimSpace(text), MaxChatLength)
	if text == "" {
		return nil, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.storage.GetSession(ctx, id)
	if err != nil || session.Seat(conn) == nil {
		return nil, false
	}

	entry := model.ChatEntry{By: conn, From: from, Text: text, Timestamp: d.clock.Now()}
	session.ChatLog = append(session.ChatLog, entry)
	if err := d.storage.SaveSession(ctx, session); err != nil {
		d.logger.Error("failed to save chat",
			slog.String("session_id", string(id)),
			slog.Any("error", err))
		return nil, false
	}
	return &entry, true
}

// LegalMoves returns the session's current position and the moves
// available in it
func (d *Directory) LegalMoves(ctx context.Context, id model.SessionID) (string, []string, error) {
	d.mu.Lock()
	position := ""
	session, err := d.storage.GetSession(ctx, id)
	if err == nil {
		position = session.Position
	}
	d.mu.Unlock()

	if err != nil {
		return "", nil, model.ErrSessionNotFound
	}
	moves, err := d.engine.LegalMoves(position)
	if err != nil {
		return "", nil, fmt.Errorf("listing legal moves: %w", err)
	}
	return position, moves, nil
}

func (d *Directory) load(ctx context.Context, id model.SessionID) (*model.Session, error) {
	session, err := d.storage.GetSession(ctx, id)
	if errors.Is(err, model.ErrSessionNotFound) {
		return nil, model.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return session, nil
}

func (d *Directory) finish(session *model.Session, outcome *model.Outcome) {
	now := d.clock.Now()
	session.Status = model.SessionStatusFinished
	session.FinishedAt = &now
	session.Outcome = outcome

	d.logger.Info("session finished",
		slog.String("session_id", string(session.ID)),
		slog.String("reason", outcome.Reason))
}

func (d *Directory) outcome(session *model.Session, mover model.Seat) *MoveOutcome {
	snapshot := session.Clone()
	return &MoveOutcome{
		SessionID: session.ID,
		Mover:     mover,
		Position:  snapshot.Position,
		Turn:      snapshot.Turn,
		GameOver:  snapshot.Status == model.SessionStatusFinished,
		Outcome:   snapshot.Outcome,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
