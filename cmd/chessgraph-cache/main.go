// chessgraph-cache inspects and prunes the persistent score cache.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/hailam/chessgraph/internal/provider"
	"github.com/hailam/chessgraph/internal/storage"
)

const usage = `usage: chessgraph-cache [--cache dir] <command> [prefix]

commands:
  stats          number of entries per source and database size
  list [prefix]  print entries whose key starts with prefix
  purge [prefix] delete entries whose key starts with prefix (all if empty)
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code. The cache is closed before it returns.
func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("chessgraph-cache", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("cache", "", "score cache directory (default: user cache dir)")
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	db, err := storage.Open(storage.Options{Dir: *dir})
	if err != nil {
		log.Error().Err(err).Msg("open cache")
		return 1
	}
	defer db.Close()

	prefix := strings.Join(fs.Args()[1:], " ")
	switch fs.Arg(0) {
	case "stats":
		err = stats(stdout, db)
	case "list":
		err = list(stdout, db, prefix)
	case "purge":
		var n int
		n, err = db.DeletePrefix(prefix)
		if err == nil {
			log.Info().Str("prefix", prefix).Str("deleted", humanize.Comma(int64(n))).Msg("purged")
		}
	default:
		fs.Usage()
		return 2
	}
	if err != nil {
		log.Error().Err(err).Msg(fs.Arg(0))
		return 1
	}
	return 0
}

func stats(w io.Writer, db *storage.Storage) error {
	perSource := make(map[string]int)
	total := 0
	err := db.Iterate("", func(key string, _ func(any) error) error {
		source, _, _ := strings.Cut(key, "|")
		perSource[source]++
		total++
		return nil
	})
	if err != nil {
		return err
	}
	for source, n := range perSource {
		fmt.Fprintf(w, "%-50s %s\n", source, humanize.Comma(int64(n)))
	}
	lsm, vlog := db.Size()
	fmt.Fprintf(w, "%-50s %s\n", "total", humanize.Comma(int64(total)))
	fmt.Fprintf(w, "%-50s %s\n", "size", humanize.Bytes(uint64(lsm+vlog)))
	return nil
}

func list(w io.Writer, db *storage.Storage, prefix string) error {
	return db.Iterate(prefix, func(key string, decode func(any) error) error {
		var moves []provider.Candidate
		if err := decode(&moves); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		parts := make([]string, len(moves))
		for i, m := range moves {
			parts[i] = fmt.Sprintf("%s:%+d", m.UCI, m.Score)
		}
		fmt.Fprintf(w, "%s\t%s\n", key, strings.Join(parts, " "))
		return nil
	})
}
