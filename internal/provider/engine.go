package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog/log"

	"github.com/hailam/chessgraph/internal/position"
)

const (
	DefaultEnginePath  = "stockfish"
	DefaultEngineDepth = 20
	DefaultMultiPV     = 10
)

// Engine analyses positions with a UCI engine in MultiPV mode. The engine
// process is started on first use and restarted after a failure; queries
// are serialized.
type Engine struct {
	path    string
	depth   int
	multiPV int
	hash    int
	threads int

	mu  sync.Mutex
	eng *uci.Engine
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		path:    cfg.EnginePath,
		depth:   cfg.EngineDepth,
		multiPV: cfg.MultiPV,
		hash:    cfg.EngineHash,
		threads: cfg.EngineThreads,
	}
	if e.path == "" {
		e.path = DefaultEnginePath
	}
	if e.depth <= 0 {
		e.depth = DefaultEngineDepth
	}
	if e.multiPV <= 0 {
		e.multiPV = DefaultMultiPV
	}
	if e.hash <= 0 {
		e.hash = 64
	}
	if e.threads <= 0 {
		e.threads = 1
	}
	return e
}

func (e *Engine) Name() string {
	return fmt.Sprintf("engine:%s:depth=%d:multipv=%d", e.path, e.depth, e.multiPV)
}

func (e *Engine) start() error {
	if e.eng != nil {
		return nil
	}
	eng, err := uci.NewEngine(e.path)
	if err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrUnavailable, e.path, err)
	}
	opts := uci.Options{
		Hash:    e.hash,
		Threads: e.threads,
		MultiPV: e.multiPV,
		Ponder:  false,
		OwnBook: false,
	}
	if err := eng.SetOptions(opts); err != nil {
		eng.Close()
		return fmt.Errorf("%w: set options: %v", ErrUnavailable, err)
	}
	log.Debug().Str("engine", e.path).Int("multipv", e.multiPV).Msg("engine started")
	e.eng = eng
	return nil
}

func (e *Engine) reset() {
	if e.eng != nil {
		e.eng.Close()
		e.eng = nil
	}
}

func (e *Engine) Query(ctx context.Context, pos position.Position) ([]Candidate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.start(); err != nil {
		return nil, err
	}
	if err := e.eng.SetFEN(pos.FEN()); err != nil {
		e.reset()
		return nil, fmt.Errorf("%w: set fen: %v", ErrUnavailable, err)
	}
	results, err := e.eng.GoDepth(e.depth, uci.HighestDepthOnly)
	if err != nil {
		e.reset()
		return nil, fmt.Errorf("%w: go depth %d: %v", ErrUnavailable, e.depth, err)
	}

	lines := make([]engineLine, 0, len(results.Results))
	for _, r := range results.Results {
		if len(r.BestMoves) == 0 {
			continue
		}
		lines = append(lines, engineLine{
			move:  r.BestMoves[0],
			depth: r.Depth,
			score: r.Score,
			mate:  r.Mate,
		})
	}
	return candidatesFromLines(lines), nil
}

// Close stops the engine process.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
	return nil
}

type engineLine struct {
	move  string
	depth int
	score int
	mate  bool
}

// candidatesFromLines keeps the deepest line per first move.
func candidatesFromLines(lines []engineLine) []Candidate {
	best := make(map[string]int, len(lines))
	out := make([]Candidate, 0, len(lines))
	depth := make([]int, 0, len(lines))
	for _, l := range lines {
		score := l.score
		if l.mate {
			score = mateScore(l.score)
		}
		if i, ok := best[l.move]; ok {
			if l.depth > depth[i] {
				out[i].Score = clamp(score)
				depth[i] = l.depth
			}
			continue
		}
		best[l.move] = len(out)
		out = append(out, Candidate{UCI: l.move, Score: clamp(score)})
		depth = append(depth, l.depth)
	}
	return out
}

// mateScore converts a UCI "mate n" into a score: shorter mates are better
// for the winner and later mates are better for the loser.
func mateScore(n int) int {
	switch {
	case n > 0:
		return MateScore - n
	case n < 0:
		return -MateScore - n
	default:
		return -MateScore
	}
}
