package position

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartPosition(t *testing.T) {
	p := Start()
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -", p.Key())
	assert.Equal(t, White, p.Turn())
	assert.Equal(t, Ongoing, p.Status())
	assert.Equal(t, 20, p.LegalMoveCount())
	assert.True(t, p.IsLegal("e2e4"))
	assert.False(t, p.IsLegal("e2e5"))
}

func TestFromEPD(t *testing.T) {
	p, err := FromFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -")
	require.NoError(t, err)
	assert.True(t, p.Equal(Start()))
}

func TestFromFENInvalid(t *testing.T) {
	for _, fen := range []string{"", "not a fen", "rnbqkbnr/pppppppp w"} {
		_, err := FromFEN(fen)
		assert.Truef(t, errors.Is(err, ErrIllegalPosition), "fen %q: %v", fen, err)
	}
}

func TestApply(t *testing.T) {
	p := Start()
	next, m, err := p.Apply("e2e4")
	require.NoError(t, err)
	assert.Equal(t, "e4", m.SAN)
	assert.Equal(t, "e2e4", m.UCI)
	assert.Equal(t, Black, next.Turn())
	// No black pawn can capture on e3, so the square is dropped.
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq -", next.Key())

	// The receiver is unchanged.
	assert.Equal(t, 20, p.LegalMoveCount())
	assert.Equal(t, White, p.Turn())

	_, _, err = p.Apply("e2e5")
	assert.True(t, errors.Is(err, ErrIllegalMove))
}

func TestEnPassantKeptWhenCapturable(t *testing.T) {
	p, err := FromFEN("rnbqkbnr/ppp1pppp/8/8/3pP3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 3")
	require.NoError(t, err)
	next, _, err := p.Apply("c2c4")
	require.NoError(t, err)
	assert.Equal(t, "rnbqkbnr/ppp1pppp/8/8/2PpP3/8/PP1P1PPP/RNBQKBNR b KQkq c3", next.Key())
	assert.True(t, next.IsLegal("d4c3"))
}

func TestTranspositionSameKey(t *testing.T) {
	play := func(moves ...string) Position {
		p := Start()
		for _, uci := range moves {
			var err error
			p, _, err = p.Apply(uci)
			require.NoError(t, err)
		}
		return p
	}
	a := play("g1f3", "g8f6", "b1c3")
	b := play("b1c3", "g8f6", "g1f3")
	assert.True(t, a.Equal(b))
	assert.NotEqual(t, a.FEN(), "")
}

func TestTerminalStatus(t *testing.T) {
	mate, err := FromFEN("rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	require.NoError(t, err)
	assert.Equal(t, Checkmate, mate.Status())
	assert.Zero(t, mate.LegalMoveCount())

	stale, err := FromFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	require.NoError(t, err)
	assert.Equal(t, Stalemate, stale.Status())
	assert.Zero(t, stale.LegalMoveCount())
}

func TestSANCheckAndCastle(t *testing.T) {
	p, err := FromFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	require.NoError(t, err)
	_, m, err := p.Apply("e1g1")
	require.NoError(t, err)
	assert.Equal(t, "O-O", m.SAN)
}
