// ChessGraph - maps the best lines from a chess position as a Graphviz graph
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/chessgraph/internal/cache"
	"github.com/hailam/chessgraph/internal/config"
	"github.com/hailam/chessgraph/internal/diagram"
	"github.com/hailam/chessgraph/internal/explore"
	"github.com/hailam/chessgraph/internal/graph"
	"github.com/hailam/chessgraph/internal/provider"
	"github.com/hailam/chessgraph/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogging(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("chessgraph failed")
	}
}

func setupLogging(debug bool) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger
}

func run(ctx context.Context, cfg *config.Config) error {
	p, err := provider.New(cfg.Provider)
	if err != nil {
		return err
	}
	if c, ok := p.(io.Closer); ok {
		defer c.Close()
	}

	var store cache.Store
	if !cfg.NoCache {
		db, err := storage.Open(storage.Options{Dir: cfg.CacheDir})
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	}
	scores := cache.New(store)

	sink := graph.NewRecorder()
	stats, err := explore.New(cfg.Explore, p, scores, sink).Run(ctx, cfg.Root)
	switch {
	case err == nil:
	case explore.IsCanceled(err):
		log.Warn().Err(err).Msg("exploration stopped early, writing partial graph")
	default:
		return err
	}
	hits, misses := scores.Stats()
	log.Info().
		Object("stats", stats).
		Uint64("cache_hits", hits).
		Uint64("cache_misses", misses).
		Float64("cache_hit_rate", scores.HitRate()).
		Int("cache_entries", scores.Len()).
		Msg("exploration done")

	return writeGraph(cfg, sink)
}

func writeGraph(cfg *config.Config, sink *graph.Recorder) error {
	var w io.Writer = os.Stdout
	if cfg.Output != "-" && cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	var diagrams graph.Diagrams
	if cfg.BoardStyle != diagram.StyleNone {
		diagrams = diagram.NewRenderer(cfg.BoardStyle, cfg.Assets)
	}
	if err := graph.WriteDOT(w, sink.Nodes(), sink.Edges(), diagrams); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	if f, ok := w.(*os.File); ok && f != os.Stdout {
		return f.Sync()
	}
	return nil
}
