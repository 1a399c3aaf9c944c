// Package graph collects the positions and moves produced by an exploration
// and writes them as a Graphviz digraph.
package graph

import (
	"sort"
	"sync"

	"github.com/hailam/chessgraph/internal/position"
)

// Node is an expanded position.
type Node struct {
	Position position.Position
	// Score is the best reply score from the side to move, valid when
	// HasScore is set.
	Score       int
	HasScore    bool
	PV          bool
	ShowDiagram bool
	Tooltip     string
}

// Edge is a move between two positions.
type Edge struct {
	From  position.Position
	To    position.Position
	Move  position.Move
	Score int
	PV    bool
	// Late marks a move that is not the best reply.
	Late bool
}

// Sink receives nodes and edges from concurrent explorers in no
// particular order.
type Sink interface {
	EmitNode(Node)
	EmitEdge(Edge)
}

// Recorder is a Sink that keeps everything in memory.
type Recorder struct {
	mu    sync.Mutex
	nodes map[string]Node
	edges []Edge
}

func NewRecorder() *Recorder {
	return &Recorder{nodes: make(map[string]Node)}
}

func (r *Recorder) EmitNode(n Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[n.Position.Key()] = n
}

func (r *Recorder) EmitEdge(e Edge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, e)
}

// Node returns the node recorded for key.
func (r *Recorder) Node(key string) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[key]
	return n, ok
}

// Nodes returns all nodes ordered by key.
func (r *Recorder) Nodes() []Node {
	r.mu.Lock()
	out := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Position.Key() < out[j].Position.Key()
	})
	return out
}

// Edges returns all edges ordered by source, then move.
func (r *Recorder) Edges() []Edge {
	r.mu.Lock()
	out := append([]Edge(nil), r.edges...)
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].From.Key(), out[j].From.Key()
		if a != b {
			return a < b
		}
		return out[i].Move.UCI < out[j].Move.UCI
	})
	return out
}

// EdgesFrom returns the edges leaving key in emission order.
func (r *Recorder) EdgesFrom(key string) []Edge {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Edge
	for _, e := range r.edges {
		if e.From.Key() == key {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of nodes and edges.
func (r *Recorder) Len() (nodes, edges int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes), len(r.edges)
}
