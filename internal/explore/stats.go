package explore

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

type counters struct {
	expanded   atomic.Int64
	duplicates atomic.Int64
	fetches    atomic.Int64
	cacheHits  atomic.Int64
	empty      atomic.Int64
	nodes      atomic.Int64
	edges      atomic.Int64
}

func (c *counters) snapshot(visited int, elapsed time.Duration) Stats {
	return Stats{
		Expanded:   c.expanded.Load(),
		Duplicates: c.duplicates.Load(),
		Fetches:    c.fetches.Load(),
		CacheHits:  c.cacheHits.Load(),
		Empty:      c.empty.Load(),
		Nodes:      c.nodes.Load(),
		Edges:      c.edges.Load(),
		Visited:    int64(visited),
		Elapsed:    elapsed,
	}
}

// Stats summarizes a run.
type Stats struct {
	Expanded   int64
	Duplicates int64
	Fetches    int64
	CacheHits  int64
	// Empty counts fetches that returned no candidates.
	Empty int64
	Nodes int64
	Edges int64
	// Visited is the number of distinct positions reached.
	Visited int64
	Elapsed time.Duration
}

// MarshalZerologObject lets a Stats be logged with Event.Object.
func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Str("expanded", humanize.Comma(s.Expanded)).
		Str("duplicates", humanize.Comma(s.Duplicates)).
		Str("fetches", humanize.Comma(s.Fetches)).
		Str("cache_hits", humanize.Comma(s.CacheHits)).
		Str("empty", humanize.Comma(s.Empty)).
		Str("nodes", humanize.Comma(s.Nodes)).
		Str("edges", humanize.Comma(s.Edges)).
		Str("visited", humanize.Comma(s.Visited)).
		Dur("elapsed", s.Elapsed)
}
