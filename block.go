package fluxgraph

import (
	"fmt"

	"github.com/fluxgraph/fluxgraph/feature"
	"github.com/fluxgraph/fluxgraph/model"
)

// Block is a bipartite message-passing structure: edges run from a
// source node set into a disjoint destination node set, each with its
// own feature store. Layers use blocks to compute on subgraph
// boundaries where the output node set is smaller than the input set.
//
// Node counts are fixed at construction; edges are added afterwards
// with the same broadcasting and id-assignment rules as Graph. Like
// Graph, a Block is single-threaded and supports no removal.
type Block struct {
	multigraph bool
	logger     *Logger

	numSrc int
	numDst int
	src    []model.NodeID
	dst    []model.NodeID

	srcdata *feature.Store
	dstdata *feature.Store
	edata   *feature.Store
}

// NewBlock creates a bipartite block with numSrc source nodes (ids
// [0, numSrc)) and numDst destination nodes (ids [0, numDst)).
func NewBlock(numSrc, numDst int, opts ...Option) (*Block, error) {
	if numSrc < 0 || numDst < 0 {
		return nil, fmt.Errorf("%w: block %d x %d", ErrStructuralViolation, numSrc, numDst)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Block{
		multigraph: o.multigraph,
		logger:     o.logger,
		numSrc:     numSrc,
		numDst:     numDst,
		srcdata:    feature.NewStore(numSrc, o.nodeInit),
		dstdata:    feature.NewStore(numDst, o.nodeInit),
		edata:      feature.NewStore(0, o.edgeInit),
	}, nil
}

// NumSrcNodes returns the source node count.
func (b *Block) NumSrcNodes() int { return b.numSrc }

// NumDstNodes returns the destination node count.
func (b *Block) NumDstNodes() int { return b.numDst }

// NumEdges returns the edge count; edge ids are exactly [0, NumEdges).
func (b *Block) NumEdges() int { return len(b.src) }

// AddEdges adds edges from source ids to destination ids with edge
// broadcasting, assigning consecutive edge ids in resolved order.
// Sources index the source set, destinations the destination set.
func (b *Block) AddEdges(us, vs []model.NodeID) ([]model.EdgeID, error) {
	su, sv, err := ResolveBroadcast(us, vs)
	if err != nil {
		return nil, err
	}
	for i := range su {
		if int(su[i]) >= b.numSrc {
			return nil, fmt.Errorf("%w: source %d of %d", ErrNodeNotFound, su[i], b.numSrc)
		}
		if int(sv[i]) >= b.numDst {
			return nil, fmt.Errorf("%w: destination %d of %d", ErrNodeNotFound, sv[i], b.numDst)
		}
	}
	if !b.multigraph {
		seen := make(map[uint64]struct{}, len(b.src)+len(su))
		for i := range b.src {
			seen[uint64(b.src[i])<<32|uint64(b.dst[i])] = struct{}{}
		}
		for i := range su {
			pair := uint64(su[i])<<32 | uint64(sv[i])
			if _, dup := seen[pair]; dup {
				return nil, fmt.Errorf("%w: %d -> %d", ErrParallelEdge, su[i], sv[i])
			}
			seen[pair] = struct{}{}
		}
	}
	if err := b.edata.Grow(len(su)); err != nil {
		return nil, err
	}
	start := len(b.src)
	b.src = append(b.src, su...)
	b.dst = append(b.dst, sv...)
	b.logger.Debug("added block edges", "count", len(su), "total", len(b.src))
	return model.EdgeRange(start, len(su)), nil
}

// Edges returns the per-edge endpoints in edge-id order, as copies.
func (b *Block) Edges() ([]model.NodeID, []model.NodeID) {
	src := make([]model.NodeID, len(b.src))
	dst := make([]model.NodeID, len(b.dst))
	copy(src, b.src)
	copy(dst, b.dst)
	return src, dst
}

// SrcData returns the source-node feature store.
func (b *Block) SrcData() *feature.Store { return b.srcdata }

// DstData returns the destination-node feature store.
func (b *Block) DstData() *feature.Store { return b.dstdata }

// EdgeData returns the edge feature store.
func (b *Block) EdgeData() *feature.Store { return b.edata }

// LocalScope runs fn with all three feature stores snapshotted on entry
// and restored on every exit path. See Graph.LocalScope.
func (b *Block) LocalScope(fn func() error) error {
	ss := b.srcdata.Snapshot()
	ds := b.dstdata.Snapshot()
	es := b.edata.Snapshot()
	defer func() {
		b.srcdata.Restore(ss)
		b.dstdata.Restore(ds)
		b.edata.Restore(es)
	}()
	return fn()
}
