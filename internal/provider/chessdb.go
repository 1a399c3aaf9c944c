package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hailam/chessgraph/internal/position"
)

// DefaultChessDBURL is the query endpoint of chessdb.cn.
const DefaultChessDBURL = "http://www.chessdb.cn/cdb.php"

// ChessDB queries the chessdb.cn position database, which reports scores
// from the side to move for every known reply.
type ChessDB struct {
	endpoint string
	http     *httpClient
}

func NewChessDB(cfg Config) *ChessDB {
	endpoint := cfg.ChessDBURL
	if endpoint == "" {
		endpoint = DefaultChessDBURL
	}
	return &ChessDB{endpoint: endpoint, http: newHTTPClient(cfg)}
}

func (c *ChessDB) Name() string {
	return "chessdb:" + c.endpoint
}

type chessDBResponse struct {
	Status string `json:"status"`
	Moves  []struct {
		UCI   string          `json:"uci"`
		SAN   string          `json:"san"`
		Score json.RawMessage `json:"score"`
	} `json:"moves"`
}

func (c *ChessDB) Query(ctx context.Context, pos position.Position) ([]Candidate, error) {
	q := url.Values{}
	q.Set("action", "queryall")
	q.Set("board", pos.Key())
	q.Set("json", "1")

	var resp chessDBResponse
	if err := c.http.getJSON(ctx, c.endpoint+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("chessdb: %w", err)
	}

	switch resp.Status {
	case "ok":
	case "unknown", "checkmate", "stalemate":
		return nil, nil
	case "rate limited exceeded":
		return nil, fmt.Errorf("chessdb: %w", ErrRateLimited)
	default:
		return nil, fmt.Errorf("chessdb: %w: status %q", ErrMalformed, resp.Status)
	}

	out := make([]Candidate, 0, len(resp.Moves))
	for _, m := range resp.Moves {
		// Unscored replies come back as "??".
		score, err := strconv.Atoi(string(m.Score))
		if m.UCI == "" || err != nil {
			continue
		}
		out = append(out, Candidate{UCI: m.UCI, Score: clamp(score)})
	}
	return out, nil
}
