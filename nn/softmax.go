// Package nn provides graph neural network building blocks on top of
// the message-passing engine: edge softmax normalization and an
// attention-based convolution layer.
package nn

import (
	"errors"
	"fmt"

	"gorgonia.org/tensor"

	"github.com/fluxgraph/fluxgraph/engine"
	"github.com/fluxgraph/fluxgraph/internal/tensorx"
)

var (
	// ErrScoreShape is returned when an edge score tensor is not one
	// scalar per edge.
	ErrScoreShape = errors.New("nn: edge scores must be one scalar per edge")

	// ErrFeatureRows is returned when an input feature tensor's batch
	// size disagrees with the graph's node count.
	ErrFeatureRows = errors.New("nn: feature row count != node count")
)

// Staging keys for scoped intermediates. They live only inside a
// LocalScope, so they cannot collide with caller state.
const (
	keySoftmaxScore = "es_score"
	keySoftmaxMax   = "es_max"
	keySoftmaxExp   = "es_exp"
	keySoftmaxSum   = "es_sum"
	keySoftmaxOut   = "es_out"
)

// EdgeSoftmax normalizes a per-edge scalar score into a probability
// distribution over each destination node's incoming edges:
//
//	p(e) = exp(score(e)) / Σ exp(score(e')) over e' into dst(e)
//
// using the numerically stable form that subtracts the per-destination
// maximum before exponentiating. A destination with a single incoming
// edge therefore receives weight exactly 1, and equal scores over an
// in-degree-k destination each receive 1/k.
//
// scores must be shaped [edges] or [edges, 1]; the result is
// [edges, 1] in edge-id order. The graph's feature state is untouched:
// all staging happens inside a local scope.
func EdgeSoftmax(g engine.Graph, scores *tensor.Dense) (*tensor.Dense, error) {
	m := g.NumEdges()
	if m == 0 {
		return nil, engine.ErrNoEdges
	}
	shape := scores.Shape()
	if shape[0] != m || tensorx.RowSize(shape) != 1 {
		return nil, fmt.Errorf("%w: got %v for %d edges", ErrScoreShape, shape, m)
	}
	col := scores.Clone().(*tensor.Dense)
	if err := col.Reshape(m, 1); err != nil {
		return nil, err
	}

	var out *tensor.Dense
	err := g.LocalScope(func() error {
		if err := g.EdgeData().Set(keySoftmaxScore, col); err != nil {
			return err
		}
		// Per-destination maximum, broadcast back and subtracted from
		// every incoming score.
		if err := engine.UpdateAll(g, engine.CopyE(keySoftmaxScore), engine.Max(), keySoftmaxMax); err != nil {
			return err
		}
		if err := engine.ApplyEdges(g, engine.Out(keySoftmaxScore, engine.ESubV(keySoftmaxScore, keySoftmaxMax))); err != nil {
			return err
		}
		shifted, err := g.EdgeData().Get(keySoftmaxScore)
		if err != nil {
			return err
		}
		exp, err := tensorx.Exp(shifted)
		if err != nil {
			return err
		}
		if err := g.EdgeData().Set(keySoftmaxExp, exp); err != nil {
			return err
		}
		// Per-destination partition function, then normalize.
		if err := engine.UpdateAll(g, engine.CopyE(keySoftmaxExp), engine.Sum(), keySoftmaxSum); err != nil {
			return err
		}
		if err := engine.ApplyEdges(g, engine.Out(keySoftmaxOut, engine.EDivV(keySoftmaxExp, keySoftmaxSum))); err != nil {
			return err
		}
		out, err = g.EdgeData().Get(keySoftmaxOut)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
