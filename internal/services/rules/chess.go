package rules

import (
	"fmt"
	"slices"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/mcoot/chessmatch-go/internal/model"
)

// Chess is an Engine for standard chess. Positions are FEN strings and moves
// are accepted in UCI (e2e4) or SAN (e4).
type Chess struct {
	initial string
}

var _ Engine = (*Chess)(nil)

// NewChess creates a chess engine
func NewChess() *Chess {
	return &Chess{initial: nchess.NewGame().FEN()}
}

func (c *Chess) InitialPosition() string {
	return c.initial
}

func (c *Chess) LegalMoves(position string) ([]string, error) {
	game, err := c.load(position)
	if err != nil {
		return nil, err
	}
	var moves []string
	for _, m := range game.ValidMoves() {
		moves = append(moves, m.String())
	}
	slices.Sort(moves)
	return moves, nil
}

func (c *Chess) Apply(position, notation string) (*Applied, error) {
	game, err := c.load(position)
	if err != nil {
		return nil, err
	}

	move := strings.TrimSpace(notation)
	if move == "" {
		return nil, model.ErrInvalidMove
	}

	pos := game.Position()
	if err := game.PushNotationMove(strings.ToLower(move), nchess.UCINotation{}, nil); err != nil {
		if err := game.PushNotationMove(move, nchess.AlgebraicNotation{}, nil); err != nil {
			return nil, model.ErrInvalidMove
		}
	}

	last := lastMove(game)
	if last == nil {
		return nil, model.ErrInvalidMove
	}

	return &Applied{
		Position: game.FEN(),
		SAN:      nchess.AlgebraicNotation{}.Encode(pos, last),
		UCI:      nchess.UCINotation{}.Encode(pos, last),
		Captured: last.HasTag(nchess.Capture) || last.HasTag(nchess.EnPassant),
	}, nil
}

func (c *Chess) Terminal(position string, played []string) (*Terminal, error) {
	game, repeats, err := c.replay(position, played)
	if err != nil {
		return nil, err
	}

	side := colorOf(game.Position().Turn())
	switch game.Method() {
	case nchess.Checkmate:
		return &Terminal{Kind: TerminalCheckmate, SideToMove: side}, nil
	case nchess.Stalemate:
		return &Terminal{Kind: TerminalStalemate, SideToMove: side}, nil
	case nchess.InsufficientMaterial:
		return &Terminal{Kind: TerminalInsufficientMaterial, SideToMove: side}, nil
	case nchess.FivefoldRepetition:
		return &Terminal{Kind: TerminalRepetition, SideToMove: side}, nil
	case nchess.SeventyFiveMoveRule:
		return &Terminal{Kind: TerminalDrawRule, SideToMove: side}, nil
	}

	if repeats >= 3 {
		return &Terminal{Kind: TerminalRepetition, SideToMove: side}, nil
	}

	// The fifty-move rule is claimable rather than automatic in the library.
	// It ends the game here.
	if slices.Contains(game.EligibleDraws(), nchess.FiftyMoveRule) {
		return &Terminal{Kind: TerminalDrawRule, SideToMove: side}, nil
	}

	return nil, nil
}

func (c *Chess) load(position string) (*nchess.Game, error) {
	if position == "" || position == c.initial {
		return nchess.NewGame(), nil
	}
	option, err := nchess.FEN(position)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return nchess.NewGame(option), nil
}

// replay rebuilds the game from the initial position and counts how often
// the final position has occurred. It falls back to the bare position, seen
// once, if the history does not lead there.
func (c *Chess) replay(position string, played []string) (*nchess.Game, int, error) {
	fallback := func() (*nchess.Game, int, error) {
		game, err := c.load(position)
		return game, 1, err
	}
	if len(played) == 0 {
		return fallback()
	}

	game := nchess.NewGame()
	seen := map[string]int{repetitionKey(game): 1}
	for _, mv := range played {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return fallback()
		}
		seen[repetitionKey(game)]++
	}
	if game.FEN() != position {
		return fallback()
	}
	return game, seen[repetitionKey(game)], nil
}

// repetitionKey identifies a position for repetition: placement, side to
// move, castling rights and an en-passant square only when a capture there
// is legal. The library keeps the square after every double push.
func repetitionKey(game *nchess.Game) string {
	fields := strings.Fields(game.FEN())
	if len(fields) < 4 {
		return game.FEN()
	}
	if fields[3] != "-" && !slices.ContainsFunc(game.ValidMoves(), func(m nchess.Move) bool {
		return m.HasTag(nchess.EnPassant)
	}) {
		fields[3] = "-"
	}
	return strings.Join(fields[:4], " ")
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func colorOf(c nchess.Color) model.Color {
	if c == nchess.White {
		return model.ColorWhite
	}
	return model.ColorBlack
}
