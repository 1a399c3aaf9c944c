// Package position provides an immutable chess position value keyed by its EPD.
package position

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrIllegalPosition = errors.New("illegal position")
	ErrIllegalMove     = errors.New("illegal move")
)

// Status classifies a position by its legal replies.
type Status int

const (
	Ongoing Status = iota
	Checkmate
	Stalemate
)

func (s Status) String() string {
	switch s {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	default:
		return "ongoing"
	}
}

// Color is the side to move.
type Color int

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "b"
	}
	return "w"
}

// Move is a move applied to a position, in both notations.
type Move struct {
	UCI string
	SAN string
}

// Position is an immutable board state. Everything derived from the
// underlying board is computed at construction, so a Position can be
// read from any number of goroutines.
type Position struct {
	key    string
	pos    *chess.Position
	moves  []*chess.Move
	index  map[string]*chess.Move
	status Status
}

// Start returns the standard initial position.
func Start() Position {
	p, err := FromFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return p
}

// FromFEN parses a FEN or an EPD (four fields). Missing move counters are
// filled in.
func FromFEN(s string) (Position, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 4:
		fields = append(fields, "0", "1")
	case 6:
	default:
		return Position{}, fmt.Errorf("%w: %q", ErrIllegalPosition, s)
	}
	opt, err := chess.FEN(strings.Join(fields, " "))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrIllegalPosition, err)
	}
	return wrap(chess.NewGame(opt).Position()), nil
}

func wrap(cp *chess.Position) Position {
	moves := cp.ValidMoves()
	p := Position{
		pos:   cp,
		moves: moves,
		index: make(map[string]*chess.Move, len(moves)),
	}
	for _, m := range moves {
		p.index[m.String()] = m
	}
	if len(moves) == 0 {
		if cp.Status() == chess.Checkmate {
			p.status = Checkmate
		} else {
			p.status = Stalemate
		}
	}
	p.key = canonical(cp.String(), moves)
	return p
}

// canonical drops the move counters and keeps the en-passant square only
// when an en-passant capture is actually available, so transpositions
// collapse to one key.
func canonical(fen string, moves []*chess.Move) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	if len(fields) == 4 && fields[3] != "-" {
		ep := false
		for _, m := range moves {
			if m.HasTag(chess.EnPassant) {
				ep = true
				break
			}
		}
		if !ep {
			fields[3] = "-"
		}
	}
	return strings.Join(fields, " ")
}

// Key returns the EPD used for deduplication and caching.
func (p Position) Key() string { return p.key }

func (p Position) String() string { return p.key }

// FEN returns the full FEN including move counters.
func (p Position) FEN() string {
	if p.pos == nil {
		return ""
	}
	return p.pos.String()
}

func (p Position) IsZero() bool { return p.pos == nil }

func (p Position) Equal(o Position) bool { return p.key == o.key }

func (p Position) Turn() Color {
	if p.pos != nil && p.pos.Turn() == chess.Black {
		return Black
	}
	return White
}

func (p Position) Status() Status { return p.status }

func (p Position) LegalMoveCount() int { return len(p.moves) }

// LegalMoves returns the UCI strings of all legal moves.
func (p Position) LegalMoves() []string {
	out := make([]string, len(p.moves))
	for i, m := range p.moves {
		out[i] = m.String()
	}
	return out
}

// IsLegal reports whether uci names a legal move here.
func (p Position) IsLegal(uci string) bool {
	_, ok := p.index[uci]
	return ok
}

// Apply plays a UCI move and returns the resulting position.
func (p Position) Apply(uci string) (Position, Move, error) {
	m, ok := p.index[uci]
	if !ok {
		return Position{}, Move{}, fmt.Errorf("%w: %s in %s", ErrIllegalMove, uci, p.key)
	}
	san := chess.AlgebraicNotation{}.Encode(p.pos, m)
	return wrap(p.pos.Update(m)), Move{UCI: uci, SAN: san}, nil
}

// Board returns the piece placement.
func (p Position) Board() *chess.Board {
	if p.pos == nil {
		return nil
	}
	return p.pos.Board()
}
