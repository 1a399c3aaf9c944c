// Package explore walks the graph of positions reachable from a root,
// following the replies a provider scores within the search window and
// trimming the depth of lower ranked replies.
package explore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chessgraph/internal/cache"
	"github.com/hailam/chessgraph/internal/graph"
	"github.com/hailam/chessgraph/internal/position"
	"github.com/hailam/chessgraph/internal/provider"
)

// Terminal scores from the point of view of the side to move.
const (
	CheckmateScore = -provider.MateScore
	StalemateScore = 0
)

// Options configures a run.
type Options struct {
	MaxDepth    int
	Alpha       int
	Beta        int
	Concurrency int
	// BoardEdges is the number of drawn edges from which a node gets a
	// board diagram.
	BoardEdges int
	// Timeout bounds the whole run when positive.
	Timeout time.Duration
}

// DefaultOptions returns the settings of a plain command line run.
func DefaultOptions() Options {
	return Options{
		MaxDepth:    6,
		Alpha:       0,
		Beta:        15,
		Concurrency: 4,
		BoardEdges:  3,
	}
}

func (o Options) validate() error {
	switch {
	case o.MaxDepth < 0:
		return fmt.Errorf("depth must not be negative, got %d", o.MaxDepth)
	case o.Alpha >= o.Beta:
		return fmt.Errorf("alpha (%d) must be below beta (%d)", o.Alpha, o.Beta)
	case o.Concurrency < 1:
		return fmt.Errorf("concurrency must be at least 1, got %d", o.Concurrency)
	}
	return nil
}

// Task is one position waiting to be expanded.
type Task struct {
	Position position.Position
	// Depth is the remaining depth in plies.
	Depth int
	Alpha int
	Beta  int
	PV    bool
	Ply   int
}

// Child returns the task for a reply: bounds are negated and swapped.
func (t Task) Child(pos position.Position, depth int, best bool) Task {
	return Task{
		Position: pos,
		Depth:    depth,
		Alpha:    -t.Beta,
		Beta:     -t.Alpha,
		PV:       t.PV && best,
		Ply:      t.Ply + 1,
	}
}

// ChildDepth is the remaining depth granted to the reply of the given
// 1-based rank. The best reply loses one ply, others lose
// floor(1.5 + log2(rank)).
func ChildDepth(depth, rank int, best bool) int {
	if best {
		return depth - 1
	}
	return depth - int(math.Floor(1.5+math.Log2(float64(rank))))
}

// Explorer expands positions concurrently and reports them to a sink.
type Explorer struct {
	opts     Options
	provider provider.Provider
	cache    *cache.ScoreCache
	sink     graph.Sink

	// OnTask is called for every task that passes the visited check.
	OnTask func(Task)

	visited *VisitedSet
	sched   *Scheduler
	stats   *counters
}

// New creates an explorer. c may be nil for an unshared in-memory cache.
func New(opts Options, p provider.Provider, c *cache.ScoreCache, sink graph.Sink) *Explorer {
	if c == nil {
		c = cache.New(nil)
	}
	return &Explorer{
		opts:     opts,
		provider: p,
		cache:    c,
		sink:     sink,
		stats:    &counters{},
	}
}

// Run explores from root. On cancellation or timeout it returns the
// context error; whatever was emitted up to then stays in the sink.
func (e *Explorer) Run(ctx context.Context, root position.Position) (Stats, error) {
	if err := e.opts.validate(); err != nil {
		return Stats{}, err
	}
	if root.IsZero() {
		return Stats{}, position.ErrIllegalPosition
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	e.visited = NewVisitedSet()
	e.sched = NewScheduler(e.opts.MaxDepth, e.opts.Concurrency)
	e.stats = &counters{}
	start := time.Now()

	log.Info().
		Str("root", root.Key()).
		Int("depth", e.opts.MaxDepth).
		Int("alpha", e.opts.Alpha).
		Int("beta", e.opts.Beta).
		Int("pools", e.sched.Levels()).
		Int("width", e.sched.Width()).
		Str("source", e.provider.Name()).
		Msg("exploring")

	err := e.expand(ctx, Task{
		Position: root,
		Depth:    e.opts.MaxDepth,
		Alpha:    e.opts.Alpha,
		Beta:     e.opts.Beta,
		PV:       true,
	})
	return e.stats.snapshot(e.visited.Len(), time.Since(start)), err
}

func (e *Explorer) expand(ctx context.Context, t Task) error {
	key := t.Position.Key()
	if !e.visited.TryMark(key) {
		e.stats.duplicates.Add(1)
		return nil
	}
	e.stats.expanded.Add(1)
	if e.OnTask != nil {
		e.OnTask(t)
	}

	node := graph.Node{Position: t.Position, PV: t.PV}

	switch t.Position.Status() {
	case position.Checkmate, position.Stalemate:
		node.HasScore = true
		node.Score = StalemateScore
		if t.Position.Status() == position.Checkmate {
			node.Score = CheckmateScore
		}
		node.ShowDiagram = e.showDiagram(t, 0)
		node.Tooltip = t.Position.Status().String()
		e.emitNode(node)
		return nil
	}

	moves, err := e.candidates(ctx, t.Position)
	if err != nil {
		node.ShowDiagram = e.showDiagram(t, 0)
		e.emitNode(node)
		return err
	}
	if len(moves) == 0 {
		node.ShowDiagram = e.showDiagram(t, 0)
		node.Tooltip = fmt.Sprintf("no scores, %d unexplored", t.Position.LegalMoveCount())
		e.emitNode(node)
		return nil
	}

	bestScore := moves[0].Score
	node.HasScore = true
	node.Score = bestScore

	var (
		g          errgroup.Group
		submitErr  error
		edgesFound int
		drawn      []string
	)
	for _, c := range moves {
		if c.Score <= t.Alpha {
			break
		}
		edgesFound++
		best := c.Score == bestScore
		depth := ChildDepth(t.Depth, edgesFound, best)
		if depth < 0 {
			continue
		}

		child, mv, err := t.Position.Apply(c.UCI)
		if err != nil {
			// Candidates were checked against the legal moves already.
			log.Error().Err(err).Str("epd", key).Msg("apply failed")
			continue
		}
		drawn = append(drawn, fmt.Sprintf("%s %+d", mv.SAN, c.Score))
		e.stats.edges.Add(1)
		e.sink.EmitEdge(graph.Edge{
			From:  t.Position,
			To:    child,
			Move:  mv,
			Score: c.Score,
			PV:    t.PV && best,
			Late:  !best,
		})

		if e.visited.Contains(child.Key()) {
			continue
		}
		ct := t.Child(child, depth, best)
		if err := e.sched.Go(ctx, &g, t.Depth, func() error { return e.expand(ctx, ct) }); err != nil {
			submitErr = err
			break
		}
	}
	waitErr := g.Wait()

	edgesDrawn := len(drawn)
	node.ShowDiagram = e.showDiagram(t, edgesDrawn)
	node.Tooltip = tooltip(drawn, t.Position.LegalMoveCount()-edgesDrawn)
	e.emitNode(node)

	if submitErr != nil {
		return submitErr
	}
	return waitErr
}

// showDiagram reports whether the node of t gets a board. Leaves count as
// having drawn no edges.
func (e *Explorer) showDiagram(t Task, edgesDrawn int) bool {
	return edgesDrawn >= e.opts.BoardEdges || (t.PV && edgesDrawn == 0) || t.Ply == 0
}

func (e *Explorer) emitNode(n graph.Node) {
	e.stats.nodes.Add(1)
	e.sink.EmitNode(n)
}

// candidates returns the legal scored replies of pos, best first. Only
// context errors are returned.
func (e *Explorer) candidates(ctx context.Context, pos position.Position) ([]provider.Candidate, error) {
	key := cache.Key{Provider: e.provider.Name(), EPD: pos.Key()}
	moves, ok := e.cache.Get(key)
	if ok {
		e.stats.cacheHits.Add(1)
	} else {
		err := e.sched.Fetch(ctx, func() {
			moves = e.provider.Moves(ctx, pos)
		})
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil && len(moves) == 0 {
			return nil, err
		}
		e.stats.fetches.Add(1)
		if len(moves) == 0 {
			e.stats.empty.Add(1)
		}
		e.cache.Put(key, moves)
	}
	return rankCandidates(pos, moves), nil
}

// rankCandidates drops illegal and repeated moves and sorts by score,
// keeping the provider's order among equal scores.
func rankCandidates(pos position.Position, moves []provider.Candidate) []provider.Candidate {
	out := make([]provider.Candidate, 0, len(moves))
	seen := make(map[string]bool, len(moves))
	for _, m := range moves {
		if seen[m.UCI] {
			continue
		}
		if !pos.IsLegal(m.UCI) {
			log.Warn().Str("epd", pos.Key()).Str("move", m.UCI).Msg("provider returned illegal move")
			continue
		}
		seen[m.UCI] = true
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func tooltip(drawn []string, unexplored int) string {
	lines := append([]string(nil), drawn...)
	lines = append(lines, fmt.Sprintf("%d unexplored", unexplored))
	return strings.Join(lines, "\n")
}

// IsCanceled reports whether err ended a run early rather than failing it.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
