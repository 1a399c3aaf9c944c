package provider

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strings"

	"github.com/hailam/chessgraph/internal/position"
)

// DefaultLichessURL is the Lichess opening explorer over rated games.
const DefaultLichessURL = "https://explorer.lichess.ovh/lichess"

// Centipawns per logit, the inverse of the curve Lichess uses to turn an
// evaluation into a winning chance. The initial position maps to about 35
// only while the database gives White close to 53.2%; other databases or
// filters move it.
const lichessLogitScale = 1 / 0.00368208

// Lichess turns opening-explorer game statistics into scores.
type Lichess struct {
	endpoint string
	speeds   []string
	ratings  []string
	minGames int
	http     *httpClient
}

func NewLichess(cfg Config) *Lichess {
	endpoint := cfg.LichessURL
	if endpoint == "" {
		endpoint = DefaultLichessURL
	}
	c := newHTTPClient(cfg)
	c.token = cfg.LichessToken
	return &Lichess{
		endpoint: endpoint,
		speeds:   cfg.LichessSpeeds,
		ratings:  cfg.LichessRatings,
		minGames: cfg.LichessMinGames,
		http:     c,
	}
}

// Name includes the endpoint, since /lichess and /masters are different
// databases. Filters are sorted so their order does not matter.
func (l *Lichess) Name() string {
	return fmt.Sprintf("lichess:%s:speeds=%s:ratings=%s:min=%d",
		l.endpoint, sortedList(l.speeds), sortedList(l.ratings), l.minGames)
}

func sortedList(items []string) string {
	s := slices.Clone(items)
	slices.Sort(s)
	return strings.Join(s, ",")
}

type lichessExplorer struct {
	White int64 `json:"white"`
	Draws int64 `json:"draws"`
	Black int64 `json:"black"`
	Moves []struct {
		UCI   string `json:"uci"`
		SAN   string `json:"san"`
		White int64  `json:"white"`
		Draws int64  `json:"draws"`
		Black int64  `json:"black"`
	} `json:"moves"`
}

func (l *Lichess) Query(ctx context.Context, pos position.Position) ([]Candidate, error) {
	q := url.Values{}
	q.Set("variant", "standard")
	q.Set("fen", pos.FEN())
	q.Set("moves", "30")
	q.Set("topGames", "0")
	q.Set("recentGames", "0")
	if len(l.speeds) > 0 {
		q.Set("speeds", strings.Join(l.speeds, ","))
	}
	if len(l.ratings) > 0 {
		q.Set("ratings", strings.Join(l.ratings, ","))
	}

	var resp lichessExplorer
	if err := l.http.getJSON(ctx, l.endpoint+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("lichess: %w", err)
	}

	white := pos.Turn() == position.White
	out := make([]Candidate, 0, len(resp.Moves))
	for _, m := range resp.Moves {
		total := m.White + m.Draws + m.Black
		if total == 0 || total < int64(l.minGames) {
			continue
		}
		wins := m.Black
		if white {
			wins = m.White
		}
		out = append(out, Candidate{
			UCI:   normalizeCastling(pos, m.UCI),
			Score: statsScore(wins, m.Draws, total),
		})
	}
	return out, nil
}

// statsScore maps the expected score of the mover onto the centipawn scale.
func statsScore(wins, draws, total int64) int {
	s := (float64(wins) + 0.5*float64(draws)) / float64(total)
	s = math.Min(math.Max(s, 1e-4), 1-1e-4)
	return clamp(int(math.Round(math.Log(s/(1-s)) * lichessLogitScale)))
}

// The explorer encodes castling as the king capturing its own rook.
var castlingUCI = map[string]string{
	"e1h1": "e1g1",
	"e1a1": "e1c1",
	"e8h8": "e8g8",
	"e8a8": "e8c8",
}

func normalizeCastling(pos position.Position, uci string) string {
	if to, ok := castlingUCI[uci]; ok && !pos.IsLegal(uci) {
		return to
	}
	return uci
}
