package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/chessgraph/internal/position"
)

func testConfig(url string) Config {
	return Config{
		ChessDBURL:  url,
		LichessURL:  url,
		HTTPTimeout: time.Second,
		Retries:     3,
	}
}

func TestChessDBQuery(t *testing.T) {
	var board string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		board = r.URL.Query().Get("board")
		assert.Equal(t, "queryall", r.URL.Query().Get("action"))
		fmt.Fprint(w, `{"status":"ok","moves":[
			{"uci":"e2e4","san":"e4","score":35},
			{"uci":"d2d4","san":"d4","score":31},
			{"uci":"g2g4","san":"g4","score":"??"},
			{"uci":"a2a3","san":"a3","score":-40000}]}`)
	}))
	defer srv.Close()

	moves, err := NewChessDB(testConfig(srv.URL)).Query(context.Background(), position.Start())
	require.NoError(t, err)
	assert.Equal(t, position.Start().Key(), board)
	assert.Equal(t, []Candidate{
		{UCI: "e2e4", Score: 35},
		{UCI: "d2d4", Score: 31},
		{UCI: "a2a3", Score: -MateScore},
	}, moves)
}

func TestChessDBStatuses(t *testing.T) {
	tests := []struct {
		body string
		err  error
	}{
		{`{"status":"unknown"}`, nil},
		{`{"status":"rate limited exceeded"}`, ErrRateLimited},
		{`{"status":"invalid board"}`, ErrMalformed},
		{`not json`, ErrMalformed},
	}
	for _, tc := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, tc.body)
		}))
		moves, err := NewChessDB(testConfig(srv.URL)).Query(context.Background(), position.Start())
		srv.Close()
		assert.Empty(t, moves, tc.body)
		if tc.err == nil {
			assert.NoError(t, err, tc.body)
		} else {
			assert.Truef(t, errors.Is(err, tc.err), "%s: %v", tc.body, err)
		}
	}
}

func TestHTTPRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"status":"ok","moves":[{"uci":"e2e4","score":20}]}`)
	}))
	defer srv.Close()

	moves, err := NewChessDB(testConfig(srv.URL)).Query(context.Background(), position.Start())
	require.NoError(t, err)
	assert.Len(t, moves, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTPDoesNotRetryRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewLichess(testConfig(srv.URL)).Query(context.Background(), position.Start())
	assert.True(t, errors.Is(err, ErrRateLimited), err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestLichessQuery(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "blitz,rapid", r.URL.Query().Get("speeds"))
		fmt.Fprint(w, `{"white":100,"draws":0,"black":100,"moves":[
			{"uci":"e1h1","san":"O-O","white":70,"draws":20,"black":10},
			{"uci":"a1b1","san":"Rb1","white":50,"draws":0,"black":50},
			{"uci":"h1h2","san":"Rh2","white":1,"draws":0,"black":2}]}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.LichessSpeeds = []string{"blitz", "rapid"}
	cfg.LichessMinGames = 10
	cfg.LichessToken = "secret"
	l := NewLichess(cfg)

	pos, err := position.FromFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	require.NoError(t, err)
	moves, err := l.Query(context.Background(), pos)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	require.Len(t, moves, 2)
	assert.Equal(t, "e1g1", moves[0].UCI)
	assert.Greater(t, moves[0].Score, 0)
	assert.Equal(t, Candidate{UCI: "a1b1", Score: 0}, moves[1])
	assert.Contains(t, l.Name(), "min=10")
}

func TestNamesIdentifyDatabase(t *testing.T) {
	lichess := NewLichess(Config{LichessURL: "https://explorer.lichess.ovh/lichess"})
	masters := NewLichess(Config{LichessURL: "https://explorer.lichess.ovh/masters"})
	assert.NotEqual(t, lichess.Name(), masters.Name())

	a := NewChessDB(Config{ChessDBURL: "http://www.chessdb.cn/cdb.php"})
	b := NewChessDB(Config{ChessDBURL: "http://localhost:8080/cdb.php"})
	assert.NotEqual(t, a.Name(), b.Name())

	// Filter order does not change the database.
	x := NewLichess(Config{LichessSpeeds: []string{"rapid", "blitz"}, LichessRatings: []string{"2200", "1800"}})
	y := NewLichess(Config{LichessSpeeds: []string{"blitz", "rapid"}, LichessRatings: []string{"1800", "2200"}})
	assert.Equal(t, x.Name(), y.Name())
	assert.NotEqual(t, x.Name(), lichess.Name())
}

func TestLichessBlackPerspective(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"moves":[{"uci":"e7e5","white":80,"draws":0,"black":20}]}`)
	}))
	defer srv.Close()

	pos, _, err := position.Start().Apply("e2e4")
	require.NoError(t, err)
	moves, err := NewLichess(testConfig(srv.URL)).Query(context.Background(), pos)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Less(t, moves[0].Score, 0)
}

func TestStatsScoreCalibration(t *testing.T) {
	assert.Equal(t, 0, statsScore(50, 0, 100))
	assert.Equal(t, -statsScore(60, 10, 100), statsScore(30, 10, 100))
	assert.InDelta(t, 35, statsScore(532, 0, 1000), 1)
	assert.Greater(t, statsScore(1000, 0, 1000), 2000)
}

func TestMateScore(t *testing.T) {
	assert.Equal(t, 29997, mateScore(3))
	assert.Equal(t, -29997, mateScore(-3))
	assert.Equal(t, -MateScore, mateScore(0))
}

func TestCandidatesFromLines(t *testing.T) {
	got := candidatesFromLines([]engineLine{
		{move: "e2e4", depth: 19, score: 10},
		{move: "d2d4", depth: 20, score: 25},
		{move: "e2e4", depth: 20, score: 30},
		{move: "f2f3", depth: 20, score: -1, mate: true},
	})
	assert.Equal(t, []Candidate{
		{UCI: "e2e4", Score: 30},
		{UCI: "d2d4", Score: 25},
		{UCI: "f2f3", Score: -29999},
	}, got)
}

type failingSource struct{ err error }

func (f failingSource) Name() string { return "failing" }

func (f failingSource) Query(context.Context, position.Position) ([]Candidate, error) {
	return nil, f.err
}

func TestFailSoft(t *testing.T) {
	for _, err := range []error{ErrUnavailable, ErrRateLimited, ErrMalformed, context.Canceled} {
		p := FailSoft(failingSource{err: err})
		assert.Empty(t, p.Moves(context.Background(), position.Start()))
		assert.Equal(t, "failing", p.Name())
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"engine", "chessdb", "lichess"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), k)
	}
	_, err := ParseKind("cloud")
	assert.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	p, err := New(Config{Kind: KindChessDB})
	require.NoError(t, err)
	assert.Equal(t, "chessdb:"+DefaultChessDBURL, p.Name())

	p, err = New(Config{Kind: KindEngine})
	require.NoError(t, err)
	assert.Contains(t, p.Name(), "multipv=10")

	_, err = New(Config{Kind: "nope"})
	assert.Error(t, err)
}

func TestEngineUnavailable(t *testing.T) {
	e := NewEngine(Config{EnginePath: "/nonexistent/engine-binary"})
	_, err := e.Query(context.Background(), position.Start())
	assert.True(t, errors.Is(err, ErrUnavailable), err)
	assert.NoError(t, e.Close())
}

func TestEngineStockfish(t *testing.T) {
	path, err := exec.LookPath("stockfish")
	if err != nil {
		t.Skip("stockfish not installed")
	}
	e := NewEngine(Config{EnginePath: path, EngineDepth: 8, MultiPV: 3})
	defer e.Close()

	moves, err := e.Query(context.Background(), position.Start())
	require.NoError(t, err)
	assert.NotEmpty(t, moves)
	for _, m := range moves {
		assert.True(t, position.Start().IsLegal(m.UCI), m.UCI)
	}
}
