package engine

import (
	"gorgonia.org/tensor"

	"github.com/fluxgraph/fluxgraph/internal/tensorx"
)

// Builtin message functions. Each reads endpoint or edge features by
// key and produces one fused batched result, so layers compose them
// instead of writing per-edge closures. Where two operands meet, the
// right one may carry a single element per row (a scalar edge weight or
// dot product) and is broadcast across the left one's row.

// CopyU emits each edge's source-node feature unchanged.
func CopyU(ufield string) MessageFunc {
	return func(eb *EdgeBatch) (*tensor.Dense, error) {
		return eb.Src(ufield)
	}
}

// CopyE emits each edge's own feature unchanged.
func CopyE(efield string) MessageFunc {
	return func(eb *EdgeBatch) (*tensor.Dense, error) {
		t, err := eb.Edge(efield)
		if err != nil {
			return nil, err
		}
		// Reductions consume messages they may not own; detach from the
		// stored column.
		return t.Clone().(*tensor.Dense), nil
	}
}

// UMulE multiplies each edge's source-node feature by its edge feature,
// broadcasting a scalar edge weight across the feature row.
func UMulE(ufield, efield string) MessageFunc {
	return func(eb *EdgeBatch) (*tensor.Dense, error) {
		u, err := eb.Src(ufield)
		if err != nil {
			return nil, err
		}
		e, err := eb.Edge(efield)
		if err != nil {
			return nil, err
		}
		return tensorx.RowMul(u, e)
	}
}

// UDotV emits the per-edge dot product of the source and destination
// node features, shaped [edges, 1].
func UDotV(ufield, vfield string) MessageFunc {
	return func(eb *EdgeBatch) (*tensor.Dense, error) {
		u, err := eb.Src(ufield)
		if err != nil {
			return nil, err
		}
		v, err := eb.Dst(vfield)
		if err != nil {
			return nil, err
		}
		return tensorx.RowDot(u, v)
	}
}

// ESubV subtracts each edge's destination-node feature from its edge
// feature: the broadcast step of softmax stabilization.
func ESubV(efield, vfield string) MessageFunc {
	return func(eb *EdgeBatch) (*tensor.Dense, error) {
		e, err := eb.Edge(efield)
		if err != nil {
			return nil, err
		}
		v, err := eb.Dst(vfield)
		if err != nil {
			return nil, err
		}
		return tensorx.RowSub(e, v)
	}
}

// EDivV divides each edge's feature by its destination-node feature:
// the normalization step of softmax.
func EDivV(efield, vfield string) MessageFunc {
	return func(eb *EdgeBatch) (*tensor.Dense, error) {
		e, err := eb.Edge(efield)
		if err != nil {
			return nil, err
		}
		v, err := eb.Dst(vfield)
		if err != nil {
			return nil, err
		}
		return tensorx.RowDiv(e, v)
	}
}
