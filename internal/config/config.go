// Package config reads the run configuration from flags, environment
// variables (CHESSGRAPH_*) and an optional config file.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hailam/chessgraph/internal/diagram"
	"github.com/hailam/chessgraph/internal/explore"
	"github.com/hailam/chessgraph/internal/position"
	"github.com/hailam/chessgraph/internal/provider"
)

const envPrefix = "CHESSGRAPH"

// ErrHelp is returned when usage was requested.
var ErrHelp = pflag.ErrHelp

type Config struct {
	Explore  explore.Options
	Provider provider.Config
	Root     position.Position

	BoardStyle diagram.Style
	Assets     string
	Output     string

	CacheDir string
	NoCache  bool
	Debug    bool
}

// Load parses args (without the program name).
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("chessgraph", pflag.ContinueOnError)
	fs.Int("depth", 6, "maximum depth (in plies) of a followed variation")
	fs.Int("alpha", 0, "lower bound on the score of variations to be followed")
	fs.Int("beta", 15, "upper bound on the score of variations to be followed")
	fs.Int("concurrency", runtime.NumCPU(), "number of workers per depth and of concurrent requests")
	fs.String("position", position.StartFEN, "FEN or EPD of the starting position")
	fs.String("source", string(provider.KindChessDB), "move scores from chessdb, engine or lichess")

	fs.String("engine", provider.DefaultEnginePath, "UCI engine binary")
	fs.Int("enginedepth", provider.DefaultEngineDepth, "engine search depth")
	fs.Int("multipv", provider.DefaultMultiPV, "number of engine lines per position")
	fs.Int("engine-hash", 64, "engine hash size in MB")
	fs.Int("engine-threads", 1, "engine threads")

	fs.String("chessdb-url", provider.DefaultChessDBURL, "chessdb query endpoint")
	fs.String("lichess-url", provider.DefaultLichessURL, "Lichess opening explorer endpoint")
	fs.String("lichess-speeds", "blitz,rapid,classical", "comma separated game speeds")
	fs.String("lichess-ratings", "2000,2200,2500", "comma separated rating groups")
	fs.Int("lichess-mingames", 10, "ignore moves played in fewer games")
	fs.String("lichess-token", "", "Lichess API token")
	fs.Duration("http-timeout", 3*time.Second, "timeout of a single request")
	fs.Uint("retries", 3, "attempts per request")

	fs.String("boardstyle", string(diagram.StyleUnicode), "board diagrams: unicode, svg, png or none")
	fs.Int("boardedges", 3, "minimum number of edges for a node to show a board")
	fs.String("assets", ".", "directory for svg and png diagrams")
	fs.StringP("output", "o", "-", "DOT output file, - for stdout")

	fs.String("cache", "", "score cache directory (default: user cache dir)")
	fs.Bool("no-cache", false, "do not persist scores between runs")
	fs.Duration("timeout", 0, "stop exploring after this long")
	fs.Bool("debug", false, "debug logging")
	fs.String("config", "", "config file (yaml, toml or json)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Explore: explore.Options{
			MaxDepth:    v.GetInt("depth"),
			Alpha:       v.GetInt("alpha"),
			Beta:        v.GetInt("beta"),
			Concurrency: v.GetInt("concurrency"),
			BoardEdges:  v.GetInt("boardedges"),
			Timeout:     v.GetDuration("timeout"),
		},
		Provider: provider.Config{
			EnginePath:      v.GetString("engine"),
			EngineDepth:     v.GetInt("enginedepth"),
			MultiPV:         v.GetInt("multipv"),
			EngineHash:      v.GetInt("engine-hash"),
			EngineThreads:   v.GetInt("engine-threads"),
			ChessDBURL:      v.GetString("chessdb-url"),
			LichessURL:      v.GetString("lichess-url"),
			LichessSpeeds:   splitList(v.GetString("lichess-speeds")),
			LichessRatings:  splitList(v.GetString("lichess-ratings")),
			LichessMinGames: v.GetInt("lichess-mingames"),
			LichessToken:    v.GetString("lichess-token"),
			HTTPTimeout:     v.GetDuration("http-timeout"),
			Retries:         v.GetUint("retries"),
		},
		Assets:   v.GetString("assets"),
		Output:   v.GetString("output"),
		CacheDir: v.GetString("cache"),
		NoCache:  v.GetBool("no-cache"),
		Debug:    v.GetBool("debug"),
	}

	var errs []error
	kind, err := provider.ParseKind(v.GetString("source"))
	errs = append(errs, err)
	c.Provider.Kind = kind

	c.BoardStyle, err = diagram.ParseStyle(v.GetString("boardstyle"))
	errs = append(errs, err)

	c.Root, err = position.FromFEN(v.GetString("position"))
	errs = append(errs, err)

	errs = append(errs, c.validate())
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Explore.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("depth must not be negative"))
	}
	if c.Explore.Alpha >= c.Explore.Beta {
		errs = append(errs, fmt.Errorf("alpha (%d) must be below beta (%d)", c.Explore.Alpha, c.Explore.Beta))
	}
	if c.Explore.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1"))
	}
	if c.Explore.BoardEdges < 0 {
		errs = append(errs, fmt.Errorf("boardedges must not be negative"))
	}
	if c.Explore.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative"))
	}
	if c.Provider.Kind == provider.KindLichess && c.Provider.LichessMinGames < 0 {
		errs = append(errs, fmt.Errorf("lichess-mingames must not be negative"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
