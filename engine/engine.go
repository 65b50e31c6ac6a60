// Package engine executes message passing over a graph's edges: per-edge
// computation (ApplyEdges) and per-edge computation followed by a
// per-destination reduction (UpdateAll). These two primitives, together
// with the builtin message and reduce functions, are what GNN layers are
// assembled from.
//
// The engine is deliberately free-standing: it operates on any Graph
// implementation (homogeneous graphs and bipartite blocks alike) through
// feature-store and endpoint access, and stages nothing outside the
// stores handed to it.
package engine

import (
	"errors"
	"fmt"

	"gorgonia.org/tensor"

	"github.com/fluxgraph/fluxgraph/feature"
	"github.com/fluxgraph/fluxgraph/internal/tensorx"
	"github.com/fluxgraph/fluxgraph/model"
)

var (
	// ErrNoEdges is returned when a primitive runs on a graph without
	// edges; there is no batch to compute over.
	ErrNoEdges = errors.New("engine: graph has no edges")

	// ErrRowCount is returned when a message function produces a tensor
	// whose batch size differs from the edge count.
	ErrRowCount = errors.New("engine: message row count != edge count")
)

// Graph is the engine's view of a graph: entity counts, per-edge
// endpoints in edge-id order, and the three feature stores. Source and
// destination stores coincide for homogeneous graphs and differ for
// bipartite blocks.
type Graph interface {
	NumSrcNodes() int
	NumDstNodes() int
	NumEdges() int
	Edges() (src, dst []model.NodeID)
	SrcData() *feature.Store
	DstData() *feature.Store
	EdgeData() *feature.Store
	LocalScope(fn func() error) error
}

// EdgeBatch gives a message function read access to the features of
// every edge's source node, destination node, and the edge itself, each
// gathered into a batched tensor aligned to edge-id order.
type EdgeBatch struct {
	g   Graph
	src []model.NodeID
	dst []model.NodeID
}

// Len returns the number of edges in the batch.
func (eb *EdgeBatch) Len() int { return len(eb.src) }

// Src gathers the source-node feature rows under key, one row per edge.
func (eb *EdgeBatch) Src(key string) (*tensor.Dense, error) {
	return eb.g.SrcData().Get(key, model.Rows(eb.src)...)
}

// Dst gathers the destination-node feature rows under key, one row per
// edge.
func (eb *EdgeBatch) Dst(key string) (*tensor.Dense, error) {
	return eb.g.DstData().Get(key, model.Rows(eb.dst)...)
}

// Edge returns the edge feature column under key, already aligned to
// edge-id order.
func (eb *EdgeBatch) Edge(key string) (*tensor.Dense, error) {
	return eb.g.EdgeData().Get(key)
}

// MessageFunc computes one batched tensor from an edge batch: row i is
// the value for edge i. Implementations must not mutate gathered
// tensors in place; they return fresh ones.
type MessageFunc func(eb *EdgeBatch) (*tensor.Dense, error)

// ApplyFunc computes named batched tensors from an edge batch, to be
// written into edge feature storage.
type ApplyFunc func(eb *EdgeBatch) (map[string]*tensor.Dense, error)

// ReduceFunc aggregates per-edge messages by destination node into one
// row per destination. All numDst rows must be materialized, with the
// reduction's identity element for destinations without incoming edges.
type ReduceFunc func(msgs *tensor.Dense, dst []model.NodeID, numDst int) (*tensor.Dense, error)

// Out adapts a single-tensor MessageFunc into an ApplyFunc writing its
// result under key.
func Out(key string, m MessageFunc) ApplyFunc {
	return func(eb *EdgeBatch) (map[string]*tensor.Dense, error) {
		t, err := m(eb)
		if err != nil {
			return nil, err
		}
		return map[string]*tensor.Dense{key: t}, nil
	}
}

// ApplyEdges computes fn over every edge and writes each returned field
// into edge feature storage, one row per edge. It is pure per-edge
// computation: no aggregation, and edge order only determines row
// placement.
func ApplyEdges(g Graph, fn ApplyFunc) error {
	eb, err := newEdgeBatch(g)
	if err != nil {
		return err
	}
	fields, err := fn(eb)
	if err != nil {
		return err
	}
	for key, t := range fields {
		if t.Shape()[0] != eb.Len() {
			return fmt.Errorf("%w: field %q has %d rows for %d edges", ErrRowCount, key, t.Shape()[0], eb.Len())
		}
		if err := g.EdgeData().Set(key, t); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAll runs the two message-passing phases: msg computes one value
// per edge from the batch, and red aggregates those values by
// destination node. The result — one row for every destination node,
// identity-filled where the in-degree is zero — is written into the
// destination store under out.
//
// Aggregation is deterministic for a fixed edge ordering: the set of
// addends per destination never depends on how the computation is
// scheduled.
func UpdateAll(g Graph, msg MessageFunc, red ReduceFunc, out string) error {
	eb, err := newEdgeBatch(g)
	if err != nil {
		return err
	}
	msgs, err := msg(eb)
	if err != nil {
		return err
	}
	if msgs.Shape()[0] != eb.Len() {
		return fmt.Errorf("%w: %d rows for %d edges", ErrRowCount, msgs.Shape()[0], eb.Len())
	}
	reduced, err := red(msgs, eb.dst, g.NumDstNodes())
	if err != nil {
		return err
	}
	return g.DstData().Set(out, reduced)
}

// NewEdgeBatch builds the edge batch for g, for callers that evaluate a
// message function without writing its result into edge storage.
func NewEdgeBatch(g Graph) (*EdgeBatch, error) {
	return newEdgeBatch(g)
}

func newEdgeBatch(g Graph) (*EdgeBatch, error) {
	if g.NumEdges() == 0 {
		return nil, ErrNoEdges
	}
	src, dst := g.Edges()
	return &EdgeBatch{g: g, src: src, dst: dst}, nil
}

// Sum returns a ReduceFunc that sums messages per destination; rows for
// destinations without incoming edges are zero, the additive identity.
func Sum() ReduceFunc {
	return func(msgs *tensor.Dense, dst []model.NodeID, numDst int) (*tensor.Dense, error) {
		return tensorx.SegmentSum(msgs, model.Rows(dst), numDst)
	}
}

// Max returns a ReduceFunc taking the rowwise maximum per destination.
// Rows for destinations without incoming edges are materialized as zero
// and must not be consumed as maxima.
func Max() ReduceFunc {
	return func(msgs *tensor.Dense, dst []model.NodeID, numDst int) (*tensor.Dense, error) {
		return tensorx.SegmentMax(msgs, model.Rows(dst), numDst)
	}
}
