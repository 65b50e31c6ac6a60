package nn

import (
	"errors"
	"fmt"

	"gorgonia.org/tensor"

	"github.com/fluxgraph/fluxgraph/engine"
	"github.com/fluxgraph/fluxgraph/internal/tensorx"
)

// ErrFrozenBeta is returned by SetBeta when the layer was constructed
// with WithFrozenBeta.
var ErrFrozenBeta = errors.New("nn: beta is frozen")

// ErrNotBipartite is returned by Forward when the graph's source and
// destination node sets differ; use ForwardBipartite with a feature
// pair instead.
var ErrNotBipartite = errors.New("nn: bipartite graph needs a source/destination feature pair")

const (
	keyAGNNFeat = "agnn_h"
	keyAGNNNorm = "agnn_norm_h"
	keyAGNNAttn = "agnn_p"
	keyAGNNOut  = "agnn_out"
)

// AGNNConv is the attention-based graph neural network layer from
// "Attention-based Graph Neural Network for Semi-Supervised Learning"
// (https://arxiv.org/abs/1803.03735):
//
//	H' = P H,  P_ij = softmax_i(β · cos(h_i, h_j))
//
// Attention weights are the edge softmax of the β-scaled cosine
// similarity between endpoint features; the output is the
// attention-weighted sum of source features per destination node.
//
// β is a scalar parameter (default 1.0). Gradient machinery belongs to
// the tensor collaborator, so the layer exposes Beta/SetBeta for a
// caller-side optimizer; WithFrozenBeta pins it instead.
type AGNNConv struct {
	beta   float64
	frozen bool
}

// AGNNOption configures an AGNNConv.
type AGNNOption func(*AGNNConv)

// WithInitBeta sets the initial β.
func WithInitBeta(beta float64) AGNNOption {
	return func(l *AGNNConv) { l.beta = beta }
}

// WithFrozenBeta marks β non-learnable: SetBeta will fail.
func WithFrozenBeta() AGNNOption {
	return func(l *AGNNConv) { l.frozen = true }
}

// NewAGNNConv creates the layer with β = 1.0 unless overridden.
func NewAGNNConv(opts ...AGNNOption) *AGNNConv {
	l := &AGNNConv{beta: 1.0}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Beta returns the current β.
func (l *AGNNConv) Beta() float64 { return l.beta }

// SetBeta updates β, the hook for a caller-side optimizer step.
func (l *AGNNConv) SetBeta(beta float64) error {
	if l.frozen {
		return ErrFrozenBeta
	}
	l.beta = beta
	return nil
}

// Forward computes the layer over a homogeneous graph: feat must hold
// one row per node. The output has one row per node and the same
// feature dimensionality as the input.
func (l *AGNNConv) Forward(g engine.Graph, feat *tensor.Dense) (*tensor.Dense, error) {
	if g.NumSrcNodes() != g.NumDstNodes() {
		return nil, ErrNotBipartite
	}
	return l.forward(g, feat, feat)
}

// ForwardBipartite computes the layer over a bipartite block: featSrc
// holds one row per source node, featDst one row per destination node,
// with equal feature dimensionality. The output has one row per
// destination node.
func (l *AGNNConv) ForwardBipartite(g engine.Graph, featSrc, featDst *tensor.Dense) (*tensor.Dense, error) {
	return l.forward(g, featSrc, featDst)
}

func (l *AGNNConv) forward(g engine.Graph, featSrc, featDst *tensor.Dense) (*tensor.Dense, error) {
	if rows := featSrc.Shape()[0]; rows != g.NumSrcNodes() {
		return nil, fmt.Errorf("%w: %d source rows for %d source nodes", ErrFeatureRows, rows, g.NumSrcNodes())
	}
	if rows := featDst.Shape()[0]; rows != g.NumDstNodes() {
		return nil, fmt.Errorf("%w: %d destination rows for %d destination nodes", ErrFeatureRows, rows, g.NumDstNodes())
	}

	var out *tensor.Dense
	err := g.LocalScope(func() error {
		if err := g.SrcData().Set(keyAGNNFeat, featSrc); err != nil {
			return err
		}
		normSrc, err := tensorx.RowL2Normalize(featSrc)
		if err != nil {
			return err
		}
		if err := g.SrcData().Set(keyAGNNNorm, normSrc); err != nil {
			return err
		}
		if g.SrcData() != g.DstData() {
			normDst, err := tensorx.RowL2Normalize(featDst)
			if err != nil {
				return err
			}
			if err := g.DstData().Set(keyAGNNNorm, normDst); err != nil {
				return err
			}
		}

		// Cosine similarity per edge: dot product of unit vectors.
		eb, err := engine.NewEdgeBatch(g)
		if err != nil {
			return err
		}
		cos, err := engine.UDotV(keyAGNNNorm, keyAGNNNorm)(eb)
		if err != nil {
			return err
		}

		scores, err := tensorx.Scale(cos, l.beta)
		if err != nil {
			return err
		}
		p, err := EdgeSoftmax(g, scores)
		if err != nil {
			return err
		}
		if err := g.EdgeData().Set(keyAGNNAttn, p); err != nil {
			return err
		}
		if err := engine.UpdateAll(g, engine.UMulE(keyAGNNFeat, keyAGNNAttn), engine.Sum(), keyAGNNOut); err != nil {
			return err
		}
		out, err = g.DstData().Get(keyAGNNOut)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
