package graph

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/awalterschulze/gographviz"
	"github.com/rs/zerolog/log"

	"github.com/hailam/chessgraph/internal/position"
)

const (
	graphName   = "chessgraph"
	whiteColor  = "gold"
	blackColor  = "burlywood4"
	chessDBPage = "https://www.chessdb.cn/queryc_en/?"
)

// Diagrams provides node attributes showing a board.
type Diagrams interface {
	Attrs(pos position.Position) (map[string]string, error)
}

// WriteDOT writes nodes and edges as a digraph. Nodes are coloured by side
// to move, edges by the side that moved, and principal variation elements
// are drawn thicker. diagrams may be nil.
func WriteDOT(w io.Writer, nodes []Node, edges []Edge, diagrams Diagrams) error {
	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		return err
	}
	if err := g.SetDir(true); err != nil {
		return err
	}

	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if err := g.AddNode(graphName, nodeID(n.Position), nodeAttrs(n, diagrams)); err != nil {
			return err
		}
		seen[n.Position.Key()] = true
	}

	// Endpoints of edges whose subtree was cut short still need a node.
	for _, e := range edges {
		for _, p := range []position.Position{e.From, e.To} {
			if seen[p.Key()] {
				continue
			}
			seen[p.Key()] = true
			if err := g.AddNode(graphName, nodeID(p), nodeAttrs(Node{Position: p}, nil)); err != nil {
				return err
			}
		}
	}

	for _, e := range edges {
		if err := g.AddEdge(nodeID(e.From), nodeID(e.To), true, edgeAttrs(e)); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, g.String())
	return err
}

func nodeID(p position.Position) string {
	return strconv.Quote(p.Key())
}

func sideColor(c position.Color) string {
	if c == position.White {
		return whiteColor
	}
	return blackColor
}

func penWidth(pv bool) string {
	if pv {
		return "3"
	}
	return "1"
}

func nodeAttrs(n Node, diagrams Diagrams) map[string]string {
	attrs := map[string]string{
		"color":    sideColor(n.Position.Turn()),
		"shape":    "box",
		"penwidth": penWidth(n.PV),
		"URL":      strconv.Quote(chessDBPage + url.QueryEscape(n.Position.Key())),
	}
	label := "?"
	if n.HasScore {
		label = strconv.Itoa(n.Score)
	}
	attrs["label"] = strconv.Quote(label)
	if n.Tooltip != "" {
		attrs["tooltip"] = strconv.Quote(n.Tooltip)
	}

	if n.ShowDiagram && diagrams != nil {
		extra, err := diagrams.Attrs(n.Position)
		if err != nil {
			log.Warn().Err(err).Str("epd", n.Position.Key()).Msg("diagram failed")
		}
		for k, v := range extra {
			attrs[k] = strconv.Quote(v)
		}
	}
	return attrs
}

func edgeAttrs(e Edge) map[string]string {
	attrs := map[string]string{
		"label":    strconv.Quote(e.Move.SAN),
		"color":    sideColor(e.From.Turn()),
		"penwidth": penWidth(e.PV),
		"tooltip":  strconv.Quote(fmt.Sprintf("%s %+d", e.Move.UCI, e.Score)),
	}
	if e.PV {
		attrs["fontname"] = strconv.Quote("Helvetica-bold")
	} else {
		attrs["fontname"] = strconv.Quote("Helvetica")
	}
	if e.Late {
		attrs["style"] = "dashed"
	}
	return attrs
}
