package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/chessmatch-go/internal/dependencies/clock"
	"github.com/mcoot/chessmatch-go/internal/dependencies/random"
	"github.com/mcoot/chessmatch-go/internal/model"
	"github.com/mcoot/chessmatch-go/internal/services/rules"
	"github.com/mcoot/chessmatch-go/internal/storage"
)

const (
	// InviteCodeLength is the length of generated invite codes
	InviteCodeLength = 6
	// InviteCodeAlphabet is the characters used in invite codes
	InviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// DirectoryInterface is the session surface used by the matchmaker, the
// relay and the HTTP layer
type DirectoryInterface interface {
	CreateInviteSession(ctx context.Context, owner model.ConnID) (*model.Session, error)
	JoinInviteSession(ctx context.Context, joiner model.ConnID, code string) (*model.Session, error)
	CreateMatchedSession(ctx context.Context, a, b model.ConnID) (*model.Session, error)
	Start(ctx context.Context, id model.SessionID) (bool, error)
	Get(ctx context.Context, id model.SessionID) (*model.Session, bool)
	Remove(ctx context.Context, id model.SessionID) (*model.Session, bool)
	SessionsContaining(ctx context.Context, conn model.ConnID) []model.SessionID
	Counts(ctx context.Context) map[model.SessionStatus]int
	List(ctx context.Context, status model.SessionStatus) []*model.Session

	SubmitMove(ctx context.Context, id model.SessionID, conn model.ConnID, notation string) (*MoveOutcome, error)
	Resign(ctx context.Context, id model.SessionID, conn model.ConnID) (*MoveOutcome, error)
	AgreeDraw(ctx context.Context, id model.SessionID) (*MoveOutcome, error)
	CheckActiveSeat(ctx context.Context, id model.SessionID, conn model.ConnID) (*model.Session, error)
	AppendChat(ctx context.Context, id model.SessionID, conn model.ConnID, from, text string) (*model.ChatEntry, bool)
	LegalMoves(ctx context.Context, id model.SessionID) (string, []string, error)
}

var _ DirectoryInterface = (*Directory)(nil)

// Directory owns every session and the invite-code namespace. A single mutex
// serializes all session mutations, so each session is only ever changed by
// one caller at a time.
type Directory struct {
	mu      sync.Mutex
	storage storage.Storage
	engine  rules.Engine
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// NewDirectory creates a Directory
func NewDirectory(
	store storage.Storage,
	engine rules.Engine,
	clk clock.Clock,
	rnd random.Random,
	logger *slog.Logger,
) *Directory {
	return &Directory{
		storage: store,
		engine:  engine,
		clock:   clk,
		random:  rnd,
		logger:  logger.With(slog.String("component", "directory")),
	}
}

// NormalizeCode canonicalizes a user-typed invite code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateInviteSession opens a waiting session seated with owner and a fresh
// invite code
func (d *Directory) CreateInviteSession(ctx context.Context, owner model.ConnID) (*model.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var code string
	for {
		code = d.random.String(InviteCodeLength, InviteCodeAlphabet)
		exists, err := d.storage.InviteCodeExists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("checking invite code: %w", err)
		}
		if !exists {
			break
		}
		d.logger.Debug("invite code collision", slog.String("code", code))
	}

	session := d.newSession(model.SessionKindInvite)
	session.InviteCode = code
	session.Seats = []model.Seat{{Conn: owner, Color: d.pickColor()}}

	if err := d.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	d.logger.Info("invite session created",
		slog.String("session_id", string(session.ID)),
		slog.String("code", code),
		slog.String("owner", string(owner)))

	return session.Clone(), nil
}

// JoinInviteSession seats joiner in the session behind code. Codes match
// regardless of case.
func (d *Directory) JoinInviteSession(ctx context.Context, joiner model.ConnID, code string) (*model.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.storage.GetSessionByCode(ctx, NormalizeCode(code))
	if errors.Is(err, model.ErrSessionNotFound) {
		return nil, model.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up invite code: %w", err)
	}

	if session.Seat(joiner) != nil {
		return nil, model.ErrAlreadyInSession
	}
	if session.IsFull() {
		return nil, model.ErrRoomFull
	}
	if session.Status != model.SessionStatusWaiting {
		return nil, model.ErrAlreadyStarted
	}

	color := model.ColorWhite
	if len(session.Seats) == 1 {
		color = session.Seats[0].Color.Opposite()
	}
	session.Seats = append(session.Seats, model.Seat{Conn: joiner, Color: color})

	if err := d.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	d.logger.Info("invite session joined",
		slog.String("session_id", string(session.ID)),
		slog.String("joiner", string(joiner)))

	return session.Clone(), nil
}

// CreateMatchedSession seats a and b together. a gets a random color and b
// the other one.
func (d *Directory) CreateMatchedSession(ctx context.Context, a, b model.ConnID) (*model.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	color := d.pickColor()
	session := d.newSession(model.SessionKindMatchmaking)
	session.Seats = []model.Seat{
		{Conn: a, Color: color},
		{Conn: b, Color: color.Opposite()},
	}

	if err := d.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	d.logger.Info("matched session created",
		slog.String("session_id", string(session.ID)),
		slog.String("white", string(session.SeatFor(model.ColorWhite).Conn)),
		slog.String("black", string(session.SeatFor(model.ColorBlack).Conn)))

	return session.Clone(), nil
}

// Start moves a full waiting session to active. It reports false and
// changes nothing for any other session.
func (d *Directory) Start(ctx context.Context, id model.SessionID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.storage.GetSession(ctx, id)
	if errors.Is(err, model.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading session: %w", err)
	}
	if session.Status != model.SessionStatusWaiting || len(session.Seats) != model.MaxSeats {
		return false, nil
	}

	now := d.clock.Now()
	session.Status = model.SessionStatusActive
	session.StartedAt = &now
	session.Turn = model.ColorWhite

	if err := d.storage.SaveSession(ctx, session); err != nil {
		return false, fmt.Errorf("saving session: %w", err)
	}

	d.logger.Info("session started", slog.String("session_id", string(id)))
	return true, nil
}

// Get returns a snapshot of the session
func (d *Directory) Get(ctx context.Context, id model.SessionID) (*model.Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.storage.GetSession(ctx, id)
	if err != nil {
		return nil, false
	}
	return session.Clone(), true
}

// Remove deletes the session and frees its invite code. It returns the
// final snapshot so the caller can notify whoever is left.
func (d *Directory) Remove(ctx context.Context, id model.SessionID) (*model.Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	session, err := d.storage.GetSession(ctx, id)
	if err != nil {
		return nil, false
	}
	if err := d.storage.DeleteSession(ctx, id); err != nil {
		d.logger.Error("failed to delete session",
			slog.String("session_id", string(id)),
			slog.Any("error", err))
		return nil, false
	}

	d.logger.Info("session removed",
		slog.String("session_id", string(id)),
		slog.String("status", string(session.Status)))

	return session.Clone(), true
}

// SessionsContaining returns every session in which conn holds a seat
func (d *Directory) SessionsContaining(ctx context.Context, conn model.ConnID) []model.SessionID {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids, err := d.storage.SessionsForConn(ctx, conn)
	if err != nil {
		d.logger.Error("failed to query sessions for connection",
			slog.String("conn_id", string(conn)),
			slog.Any("error", err))
		return nil
	}
	return ids
}

// Counts returns the number of sessions in each status
func (d *Directory) Counts(ctx context.Context) map[model.SessionStatus]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := map[model.SessionStatus]int{
		model.SessionStatusWaiting:  0,
		model.SessionStatusActive:   0,
		model.SessionStatusFinished: 0,
	}
	sessions, err := d.storage.ListSessions(ctx)
	if err != nil {
		return counts
	}
	for _, session := range sessions {
		counts[session.Status]++
	}
	return counts
}

// List returns snapshots of every session, oldest first. An empty status
// matches all sessions.
func (d *Directory) List(ctx context.Context, status model.SessionStatus) []*model.Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	sessions, err := d.storage.ListSessions(ctx)
	if err != nil {
		d.logger.Error("failed to list sessions", slog.Any("error", err))
		return nil
	}

	out := make([]*model.Session, 0, len(sessions))
	for _, session := range sessions {
		if status == "" || session.Status == status {
			out = append(out, session.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *model.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out
}

func (d *Directory) newSession(kind model.SessionKind) *model.Session {
	return &model.Session{
		ID:        model.SessionID(uuid.NewString()),
		Kind:      kind,
		Status:    model.SessionStatusWaiting,
		Position:  d.engine.InitialPosition(),
		Turn:      model.ColorWhite,
		CreatedAt: d.clock.Now(),
	}
}

func (d *Directory) pickColor() model.Color {
	if d.random.Intn(2) == 0 {
		return model.ColorWhite
	}
	return model.ColorBlack
}
