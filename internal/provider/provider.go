// Package provider supplies ranked move candidates for a position from a
// local UCI engine, the chessdb position database or the Lichess opening
// explorer.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/chessgraph/internal/position"
)

// MateScore bounds every score a provider reports.
const MateScore = 30000

var (
	ErrUnavailable = errors.New("provider unavailable")
	ErrRateLimited = errors.New("rate limited")
	ErrMalformed   = errors.New("malformed response")
)

// Candidate is a scored reply, from the point of view of the side to move.
type Candidate struct {
	UCI   string `json:"uci"`
	Score int    `json:"score"`
}

// Source is a backend that may fail.
type Source interface {
	// Name identifies the backend together with every parameter that
	// changes its answers. It is used as part of cache keys.
	Name() string
	Query(ctx context.Context, pos position.Position) ([]Candidate, error)
}

// Provider never fails: an unavailable backend yields no candidates.
type Provider interface {
	Name() string
	Moves(ctx context.Context, pos position.Position) []Candidate
}

// Kind selects a backend.
type Kind string

const (
	KindEngine  Kind = "engine"
	KindChessDB Kind = "chessdb"
	KindLichess Kind = "lichess"
)

// ParseKind validates a source name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindEngine, KindChessDB, KindLichess:
		return k, nil
	}
	return "", fmt.Errorf("unknown source %q (want engine, chessdb or lichess)", s)
}

// Config holds the settings of all backends; only the selected one is used.
type Config struct {
	Kind Kind

	EnginePath    string
	EngineDepth   int
	MultiPV       int
	EngineHash    int
	EngineThreads int

	ChessDBURL string

	LichessURL      string
	LichessSpeeds   []string
	LichessRatings  []string
	LichessMinGames int
	LichessToken    string

	HTTPTimeout time.Duration
	Retries     uint
}

// New builds the configured backend behind the fail-soft boundary.
func New(cfg Config) (Provider, error) {
	var src Source
	switch cfg.Kind {
	case KindEngine:
		src = NewEngine(cfg)
	case KindChessDB:
		src = NewChessDB(cfg)
	case KindLichess:
		src = NewLichess(cfg)
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Kind)
	}
	return FailSoft(src), nil
}

// FailSoft turns every error of src into an empty candidate list.
func FailSoft(src Source) Provider {
	return &failSoft{src: src}
}

type failSoft struct {
	src Source
}

func (f *failSoft) Name() string { return f.src.Name() }

func (f *failSoft) Moves(ctx context.Context, pos position.Position) []Candidate {
	moves, err := f.src.Query(ctx, pos)
	if err == nil {
		return moves
	}
	level, reason := zerolog.WarnLevel, "unavailable"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		level, reason = zerolog.DebugLevel, "canceled"
	case errors.Is(err, ErrRateLimited):
		reason = "rate limited"
	case errors.Is(err, ErrMalformed):
		reason = "malformed"
	}
	log.WithLevel(level).
		Err(err).
		Str("source", f.src.Name()).
		Str("epd", pos.Key()).
		Str("reason", reason).
		Msg("no candidates")
	return nil
}

// Close releases the backend if it holds resources.
func (f *failSoft) Close() error {
	if c, ok := f.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func clamp(score int) int {
	if score > MateScore {
		return MateScore
	}
	if score < -MateScore {
		return -MateScore
	}
	return score
}
