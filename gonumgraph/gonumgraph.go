// Package gonumgraph adapts gonum graphs to the fluxgraph import
// contract. Gonum node ids are arbitrary int64s; the adapter maps them
// to a dense [0, N) numbering in ascending id order, so the mapping is
// stable across imports of the same graph.
package gonumgraph

import (
	"iter"
	"sort"

	"gonum.org/v1/gonum/graph"

	"github.com/fluxgraph/fluxgraph"
	"github.com/fluxgraph/fluxgraph/model"
)

type options struct {
	edgeOrder func(u, v int64) int64
}

// Option configures the adapter.
type Option func(*options)

// WithEdgeOrder attaches an ordering hint to every adapted edge,
// keyed by the gonum endpoint ids. Edge ids are then assigned in
// ascending hint order rather than traversal order. Hints must be
// non-negative; a negative hint means "unordered".
func WithEdgeOrder(fn func(u, v int64) int64) Option {
	return func(o *options) { o.edgeOrder = fn }
}

// Adapter exposes a gonum directed graph as a fluxgraph.Source.
type Adapter struct {
	numNodes int
	dense    map[int64]model.NodeID
	sorted   []int64
	g        graph.Directed
	order    func(u, v int64) int64
}

// New builds an adapter over g. The node set is read once at
// construction; later mutations of g are not reflected.
func New(g graph.Directed, opts ...Option) *Adapter {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	var ids []int64
	nodes := g.Nodes()
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	dense := make(map[int64]model.NodeID, len(ids))
	for i, id := range ids {
		dense[id] = model.NodeID(i)
	}
	return &Adapter{
		numNodes: len(ids),
		dense:    dense,
		sorted:   ids,
		g:        g,
		order:    o.edgeOrder,
	}
}

// NumNodes reports the number of nodes captured at construction.
func (a *Adapter) NumNodes() int { return a.numNodes }

// DenseID maps a gonum node id to its dense fluxgraph id.
func (a *Adapter) DenseID(id int64) (model.NodeID, bool) {
	nid, ok := a.dense[id]
	return nid, ok
}

// Edges yields every directed edge, grouped by source node in
// ascending gonum id order with targets likewise sorted. Gonum's
// graph.Graph has no global edge iterator, so edges are derived from
// the per-node adjacency.
func (a *Adapter) Edges() iter.Seq[fluxgraph.SourceEdge] {
	return func(yield func(fluxgraph.SourceEdge) bool) {
		for _, uid := range a.sorted {
			var targets []int64
			to := a.g.From(uid)
			for to.Next() {
				targets = append(targets, to.Node().ID())
			}
			sort.Slice(targets, func(x, y int) bool { return targets[x] < targets[y] })
			for _, vid := range targets {
				e := fluxgraph.SourceEdge{
					Src:   a.dense[uid],
					Dst:   a.dense[vid],
					Order: -1,
				}
				if a.order != nil {
					e.Order = a.order(uid, vid)
				}
				if !yield(e) {
					return
				}
			}
		}
	}
}
