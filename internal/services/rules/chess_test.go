package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/chessmatch-go/internal/model"
)

// play applies moves in order from the initial position and returns the
// final position with the UCI history.
func play(t *testing.T, engine *Chess, moves ...string) (string, []string) {
	t.Helper()
	position := engine.InitialPosition()
	var played []string
	for _, mv := range moves {
		applied, err := engine.Apply(position, mv)
		require.NoError(t, err, "move %s", mv)
		position = applied.Position
		played = append(played, applied.UCI)
	}
	return position, played
}

func TestInitialPosition(t *testing.T) {
	engine := NewChess()
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", engine.InitialPosition())
}

func TestApplyAcceptsSANAndUCI(t *testing.T) {
	engine := NewChess()

	tests := []struct {
		name     string
		notation string
	}{
		{"san", "e4"},
		{"uci", "e2e4"},
		{"uci upper case", "E2E4"},
		{"padded", "  e4 "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, err := engine.Apply(engine.InitialPosition(), tt.notation)
			require.NoError(t, err)
			assert.Equal(t, "e4", applied.SAN)
			assert.Equal(t, "e2e4", applied.UCI)
			assert.False(t, applied.Captured)
			assert.True(t, strings.HasPrefix(applied.Position, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b "))
		})
	}
}

func TestApplyRejectsIllegalMoves(t *testing.T) {
	engine := NewChess()

	for _, notation := range []string{"", "e5", "e2e5", "Ke2", "nonsense"} {
		_, err := engine.Apply(engine.InitialPosition(), notation)
		assert.ErrorIs(t, err, model.ErrInvalidMove, "notation %q", notation)
	}
}

func TestApplyRejectsBadPosition(t *testing.T) {
	engine := NewChess()
	_, err := engine.Apply("not a fen", "e4")
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestApplyReportsCapture(t *testing.T) {
	engine := NewChess()
	position, _ := play(t, engine, "e4", "d5")

	applied, err := engine.Apply(position, "exd5")
	require.NoError(t, err)
	assert.Equal(t, "exd5", applied.SAN)
	assert.Equal(t, "e4d5", applied.UCI)
	assert.True(t, applied.Captured)
}

func TestLegalMovesFromStart(t *testing.T) {
	engine := NewChess()
	moves, err := engine.LegalMoves(engine.InitialPosition())
	require.NoError(t, err)
	assert.Len(t, moves, 20)
	assert.Contains(t, moves, "e2e4")
	assert.Contains(t, moves, "g1f3")
}

func TestTerminal(t *testing.T) {
	engine := NewChess()

	t.Run("ongoing", func(t *testing.T) {
		position, played := play(t, engine, "e4", "e5")
		term, err := engine.Terminal(position, played)
		require.NoError(t, err)
		assert.Nil(t, term)
	})

	t.Run("checkmate", func(t *testing.T) {
		position, played := play(t, engine, "f3", "e5", "g4", "Qh4#")
		term, err := engine.Terminal(position, played)
		require.NoError(t, err)
		require.NotNil(t, term)
		assert.Equal(t, TerminalCheckmate, term.Kind)
		assert.Equal(t, model.ColorWhite, term.SideToMove)
		assert.False(t, term.IsDraw())
	})

	t.Run("stalemate", func(t *testing.T) {
		term, err := engine.Terminal("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", nil)
		require.NoError(t, err)
		require.NotNil(t, term)
		assert.Equal(t, TerminalStalemate, term.Kind)
		assert.True(t, term.IsDraw())
	})

	t.Run("insufficient material", func(t *testing.T) {
		term, err := engine.Terminal("8/8/8/4k3/8/8/8/4K3 w - - 0 1", nil)
		require.NoError(t, err)
		require.NotNil(t, term)
		assert.Equal(t, TerminalInsufficientMaterial, term.Kind)
	})

	t.Run("threefold repetition", func(t *testing.T) {
		position, played := play(t, engine,
			"Nf3", "Nf6", "Ng1", "Ng8",
			"Nf3", "Nf6", "Ng1", "Ng8",
		)
		term, err := engine.Terminal(position, played)
		require.NoError(t, err)
		require.NotNil(t, term)
		assert.Equal(t, TerminalRepetition, term.Kind)
	})

	t.Run("repetition counts the position after a double push", func(t *testing.T) {
		position, played := play(t, engine,
			"e4", "e5",
			"Nf3", "Nf6", "Ng1", "Ng8",
		)
		term, err := engine.Terminal(position, played)
		require.NoError(t, err)
		assert.Nil(t, term, "position seen twice")

		position, played = play(t, engine,
			"e4", "e5",
			"Nf3", "Nf6", "Ng1", "Ng8",
			"Nf3", "Nf6", "Ng1", "Ng8",
		)
		term, err = engine.Terminal(position, played)
		require.NoError(t, err)
		require.NotNil(t, term)
		assert.Equal(t, TerminalRepetition, term.Kind)
	})

	t.Run("fifty move rule", func(t *testing.T) {
		term, err := engine.Terminal("4k3/8/8/8/8/8/R7/4K3 w - - 100 80", nil)
		require.NoError(t, err)
		require.NotNil(t, term)
		assert.Equal(t, TerminalDrawRule, term.Kind)
	})
}
