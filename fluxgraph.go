package fluxgraph

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"gorgonia.org/tensor"

	"github.com/fluxgraph/fluxgraph/feature"
	"github.com/fluxgraph/fluxgraph/model"
)

// Graph is an in-memory directed graph with batched node and edge
// features, the substrate message-passing layers compute on.
//
// Nodes and edges carry dense consecutive ids assigned in insertion
// order; ids are never reused and removal is unsupported, which is what
// keeps every feature tensor aligned to its entity set by plain row
// indexing. Structure and features grow together: adding entities
// eagerly appends default-initialized rows to every existing feature
// column.
//
// A Graph is not safe for concurrent use. All operations are
// synchronous; callers needing cross-goroutine access must provide
// their own synchronization.
type Graph struct {
	multigraph bool
	logger     *Logger
	metrics    MetricsCollector

	numNodes int
	src      []model.NodeID    // edge id -> source node
	dst      []model.NodeID    // edge id -> destination node
	out      []*roaring.Bitmap // node id -> outgoing edge ids, lazy
	in       []*roaring.Bitmap // node id -> incoming edge ids, lazy

	ndata *feature.Store
	edata *feature.Store
}

// New creates an empty graph. By default parallel edges are rejected
// and missing feature rows are zero-filled; see Option.
func New(opts ...Option) *Graph {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Graph{
		multigraph: o.multigraph,
		logger:     o.logger,
		metrics:    o.metrics,
		ndata:      feature.NewStore(0, o.nodeInit),
		edata:      feature.NewStore(0, o.edgeInit),
	}
}

// IsMultigraph reports whether parallel edges are permitted.
func (g *Graph) IsMultigraph() bool { return g.multigraph }

// NumNodes returns the number of nodes; node ids are exactly
// [0, NumNodes).
func (g *Graph) NumNodes() int { return g.numNodes }

// NumEdges returns the number of edges; edge ids are exactly
// [0, NumEdges).
func (g *Graph) NumEdges() int { return len(g.src) }

// AddNodes allocates n new consecutive node ids starting at the current
// count and returns them. Every existing node feature column grows by n
// default-initialized rows.
func (g *Graph) AddNodes(n int) ([]model.NodeID, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: add %d nodes", ErrStructuralViolation, n)
	}
	if n == 0 {
		return nil, nil
	}
	if err := g.ndata.Grow(n); err != nil {
		return nil, err
	}
	start := g.numNodes
	g.numNodes += n
	g.out = append(g.out, make([]*roaring.Bitmap, n)...)
	g.in = append(g.in, make([]*roaring.Bitmap, n)...)
	g.metrics.RecordAddNodes(n)
	g.logger.Debug("added nodes", "count", n, "total", g.numNodes)
	return model.NodeRange(start, n), nil
}

// AddEdge adds a single directed edge u -> v and returns its id.
func (g *Graph) AddEdge(u, v model.NodeID) (model.EdgeID, error) {
	ids, err := g.AddEdges([]model.NodeID{u}, []model.NodeID{v})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// AddEdges adds directed edges given source and destination id
// specifications, applying edge broadcasting (see ResolveBroadcast).
// Consecutive edge ids are assigned in the resolved order and returned.
// Every existing edge feature column grows by one default row per edge.
//
// Unless the graph is a multigraph, a (u, v) pair that already exists —
// or appears twice in the same call — fails with ErrParallelEdge, and
// nothing is added.
func (g *Graph) AddEdges(us, vs []model.NodeID) (ids []model.EdgeID, err error) {
	defer func() { g.metrics.RecordAddEdges(len(ids), err) }()

	su, sv, err := ResolveBroadcast(us, vs)
	if err != nil {
		return nil, err
	}
	for i := range su {
		if int(su[i]) >= g.numNodes {
			return nil, fmt.Errorf("%w: source %d of %d", ErrNodeNotFound, su[i], g.numNodes)
		}
		if int(sv[i]) >= g.numNodes {
			return nil, fmt.Errorf("%w: destination %d of %d", ErrNodeNotFound, sv[i], g.numNodes)
		}
	}
	if !g.multigraph {
		batch := make(map[uint64]struct{}, len(su))
		for i := range su {
			pair := uint64(su[i])<<32 | uint64(sv[i])
			if _, dup := batch[pair]; dup {
				return nil, fmt.Errorf("%w: %d -> %d", ErrParallelEdge, su[i], sv[i])
			}
			batch[pair] = struct{}{}
			if g.HasEdgeBetween(su[i], sv[i]) {
				return nil, fmt.Errorf("%w: %d -> %d", ErrParallelEdge, su[i], sv[i])
			}
		}
	}

	if err = g.edata.Grow(len(su)); err != nil {
		return nil, err
	}
	start := len(g.src)
	for i := range su {
		eid := uint32(start + i)
		g.src = append(g.src, su[i])
		g.dst = append(g.dst, sv[i])
		g.edgeSet(&g.out[su[i]]).Add(eid)
		g.edgeSet(&g.in[sv[i]]).Add(eid)
	}
	g.logger.Debug("added edges", "count", len(su), "total", len(g.src))
	return model.EdgeRange(start, len(su)), nil
}

func (g *Graph) edgeSet(bm **roaring.Bitmap) *roaring.Bitmap {
	if *bm == nil {
		*bm = roaring.New()
	}
	return *bm
}

// Edges returns the per-edge endpoints in edge-id order. The returned
// slices are copies.
func (g *Graph) Edges() ([]model.NodeID, []model.NodeID) {
	src := make([]model.NodeID, len(g.src))
	dst := make([]model.NodeID, len(g.dst))
	copy(src, g.src)
	copy(dst, g.dst)
	return src, dst
}

// Endpoints returns the (source, destination) pair of edge e.
func (g *Graph) Endpoints(e model.EdgeID) (model.NodeID, model.NodeID, error) {
	if int(e) >= len(g.src) {
		return 0, 0, fmt.Errorf("%w: edge %d of %d", ErrEdgeNotFound, e, len(g.src))
	}
	return g.src[e], g.dst[e], nil
}

func (g *Graph) matchEdges(u, v model.NodeID) (*roaring.Bitmap, error) {
	if int(u) >= g.numNodes || int(v) >= g.numNodes {
		return nil, fmt.Errorf("%w: endpoints (%d, %d) of %d", ErrNodeNotFound, u, v, g.numNodes)
	}
	if g.out[u] == nil || g.in[v] == nil {
		return roaring.New(), nil
	}
	return roaring.And(g.out[u], g.in[v]), nil
}

// EdgeID returns the id of the edge u -> v. On a multigraph where more
// than one edge matches it fails with *AmbiguousEdgeError; use EdgeIDs
// to receive every match.
func (g *Graph) EdgeID(u, v model.NodeID) (model.EdgeID, error) {
	matches, err := g.matchEdges(u, v)
	if err != nil {
		return 0, err
	}
	switch matches.GetCardinality() {
	case 0:
		return 0, fmt.Errorf("%w: %d -> %d", ErrEdgeNotFound, u, v)
	case 1:
		return model.EdgeID(matches.Minimum()), nil
	default:
		return 0, &AmbiguousEdgeError{U: u, V: v, Matches: int(matches.GetCardinality())}
	}
}

// EdgeIDs returns every edge id connecting u -> v, in ascending
// (insertion) order. This is the explicit all-matches mode for
// multigraphs.
func (g *Graph) EdgeIDs(u, v model.NodeID) ([]model.EdgeID, error) {
	matches, err := g.matchEdges(u, v)
	if err != nil {
		return nil, err
	}
	if matches.IsEmpty() {
		return nil, fmt.Errorf("%w: %d -> %d", ErrEdgeNotFound, u, v)
	}
	ids := make([]model.EdgeID, 0, matches.GetCardinality())
	matches.Iterate(func(x uint32) bool {
		ids = append(ids, model.EdgeID(x))
		return true
	})
	return ids, nil
}

// HasEdgeBetween reports whether at least one edge u -> v exists.
func (g *Graph) HasEdgeBetween(u, v model.NodeID) bool {
	matches, err := g.matchEdges(u, v)
	return err == nil && !matches.IsEmpty()
}

// InDegree returns the number of edges arriving at v.
func (g *Graph) InDegree(v model.NodeID) (int, error) {
	if int(v) >= g.numNodes {
		return 0, fmt.Errorf("%w: node %d of %d", ErrNodeNotFound, v, g.numNodes)
	}
	if g.in[v] == nil {
		return 0, nil
	}
	return int(g.in[v].GetCardinality()), nil
}

// OutDegree returns the number of edges leaving u.
func (g *Graph) OutDegree(u model.NodeID) (int, error) {
	if int(u) >= g.numNodes {
		return 0, fmt.Errorf("%w: node %d of %d", ErrNodeNotFound, u, g.numNodes)
	}
	if g.out[u] == nil {
		return 0, nil
	}
	return int(g.out[u].GetCardinality()), nil
}

// NodeData returns the node feature store.
func (g *Graph) NodeData() *feature.Store { return g.ndata }

// EdgeData returns the edge feature store.
func (g *Graph) EdgeData() *feature.Store { return g.edata }

// SetNodeFeatures writes t under key for the given node ids, or for all
// nodes when none are given. See feature.Store.Set for scheme rules.
func (g *Graph) SetNodeFeatures(key string, t *tensor.Dense, ids ...model.NodeID) error {
	return g.ndata.Set(key, t, model.Rows(ids)...)
}

// GetNodeFeatures returns the feature rows under key for the given node
// ids, or the full column when none are given.
func (g *Graph) GetNodeFeatures(key string, ids ...model.NodeID) (*tensor.Dense, error) {
	return g.ndata.Get(key, model.Rows(ids)...)
}

// SetEdgeFeatures writes t under key for the given edge ids, or for all
// edges when none are given.
func (g *Graph) SetEdgeFeatures(key string, t *tensor.Dense, ids ...model.EdgeID) error {
	return g.edata.Set(key, t, model.Rows(ids)...)
}

// GetEdgeFeatures returns the feature rows under key for the given edge
// ids, or the full column when none are given.
func (g *Graph) GetEdgeFeatures(key string, ids ...model.EdgeID) (*tensor.Dense, error) {
	return g.edata.Get(key, model.Rows(ids)...)
}

// NodeSchemes returns the scheme of every node feature key.
func (g *Graph) NodeSchemes() map[string]feature.Scheme { return g.ndata.Schemes() }

// EdgeSchemes returns the scheme of every edge feature key.
func (g *Graph) EdgeSchemes() map[string]feature.Scheme { return g.edata.Schemes() }

// RemoveNodes always fails with ErrStructuralViolation: node ids are
// dense row indices into batched feature tensors and cannot be freed.
func (g *Graph) RemoveNodes(...model.NodeID) error { return ErrStructuralViolation }

// RemoveEdges always fails with ErrStructuralViolation, for the same
// reason as RemoveNodes.
func (g *Graph) RemoveEdges(...model.EdgeID) error { return ErrStructuralViolation }

// Clear resets the graph to empty: no nodes, no edges, no features.
// Configuration (multigraph flag, initializers, logger) is retained.
func (g *Graph) Clear() {
	g.numNodes = 0
	g.src = nil
	g.dst = nil
	g.out = nil
	g.in = nil
	g.ndata.Clear()
	g.edata.Clear()
	g.logger.Debug("cleared graph")
}

// NumSrcNodes implements the message-passing engine's graph contract;
// for a homogeneous graph the source set is the node set.
func (g *Graph) NumSrcNodes() int { return g.numNodes }

// NumDstNodes implements the message-passing engine's graph contract;
// for a homogeneous graph the destination set is the node set.
func (g *Graph) NumDstNodes() int { return g.numNodes }

// SrcData returns the feature store backing edge-source reads; the node
// store for a homogeneous graph.
func (g *Graph) SrcData() *feature.Store { return g.ndata }

// DstData returns the feature store backing edge-destination reads and
// reduction outputs; the node store for a homogeneous graph.
func (g *Graph) DstData() *feature.Store { return g.ndata }
