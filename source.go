package fluxgraph

import (
	"fmt"
	"iter"
	"sort"

	"gorgonia.org/tensor"

	"github.com/fluxgraph/fluxgraph/internal/tensorx"
	"github.com/fluxgraph/fluxgraph/model"
)

// SourceEdge is one edge yielded by a Source: endpoints in the source's
// dense node numbering, plus an optional ordering hint. Order below
// zero means "no hint"; when every edge carries a hint, edge ids are
// assigned in ascending hint order instead of yield order.
type SourceEdge struct {
	Src   model.NodeID
	Dst   model.NodeID
	Order int64
}

// Source is the import contract for external graph representations:
// a stable node count (imported as ids [0, NumNodes) in the external
// structure's order) and a stable edge iteration.
//
// Sources may additionally implement NodeFeatureSource or
// EdgeFeatureSource to have feature tensors batched in during import.
type Source interface {
	NumNodes() int
	Edges() iter.Seq[SourceEdge]
}

// NodeFeatureSource supplies node feature columns batched in node-id
// order, one row per node.
type NodeFeatureSource interface {
	NodeFeatures() map[string]*tensor.Dense
}

// EdgeFeatureSource supplies edge feature columns batched in the
// source's yield order, one row per edge. FromSource reorders rows to
// match assigned edge ids when an ordering hint is in effect.
type EdgeFeatureSource interface {
	EdgeFeatures() map[string]*tensor.Dense
}

// FromSource builds a graph from an external representation: nodes
// [0, N) in source order, then edges in yield order — or ascending
// hint order when every edge carries one. A hint on only some edges
// fails with ErrPartialEdgeOrder; ids must be assigned deterministically
// or feature alignment is meaningless.
func FromSource(src Source, opts ...Option) (*Graph, error) {
	g := New(opts...)
	if _, err := g.AddNodes(src.NumNodes()); err != nil {
		return nil, err
	}

	var edges []SourceEdge
	hinted := 0
	for e := range src.Edges() {
		if e.Order >= 0 {
			hinted++
		}
		edges = append(edges, e)
	}
	// perm[i] is the yield-order index of the edge assigned id i.
	perm := make([]int, len(edges))
	for i := range perm {
		perm[i] = i
	}
	switch {
	case hinted == 0:
	case hinted == len(edges):
		sort.SliceStable(perm, func(a, b int) bool {
			return edges[perm[a]].Order < edges[perm[b]].Order
		})
	default:
		return nil, fmt.Errorf("%w: %d of %d hinted", ErrPartialEdgeOrder, hinted, len(edges))
	}

	if len(edges) > 0 {
		us := make([]model.NodeID, len(edges))
		vs := make([]model.NodeID, len(edges))
		for i, yi := range perm {
			us[i] = edges[yi].Src
			vs[i] = edges[yi].Dst
		}
		if _, err := g.AddEdges(us, vs); err != nil {
			return nil, err
		}
	}

	if nfs, ok := src.(NodeFeatureSource); ok {
		for _, key := range sortedKeys(nfs.NodeFeatures()) {
			if err := g.ndata.Set(key, nfs.NodeFeatures()[key]); err != nil {
				return nil, fmt.Errorf("fluxgraph: import node feature %q: %w", key, err)
			}
		}
	}
	if efs, ok := src.(EdgeFeatureSource); ok {
		for _, key := range sortedKeys(efs.EdgeFeatures()) {
			t := efs.EdgeFeatures()[key]
			if hinted > 0 {
				reordered, err := tensorx.Gather(t, perm)
				if err != nil {
					return nil, fmt.Errorf("fluxgraph: import edge feature %q: %w", key, err)
				}
				t = reordered
			}
			if err := g.edata.Set(key, t); err != nil {
				return nil, fmt.Errorf("fluxgraph: import edge feature %q: %w", key, err)
			}
		}
	}
	return g, nil
}

func sortedKeys(m map[string]*tensor.Dense) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
