package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/fluxgraph/fluxgraph"
	"github.com/fluxgraph/fluxgraph/engine"
	"github.com/fluxgraph/fluxgraph/model"
	"github.com/fluxgraph/fluxgraph/testutil"
)

// starGraph builds leaves+1 nodes with every leaf pointing at node 0.
func starGraph(t *testing.T, leaves int) *fluxgraph.Graph {
	t.Helper()
	g := fluxgraph.New()
	_, err := g.AddNodes(leaves + 1)
	require.NoError(t, err)
	us := make([]model.NodeID, leaves)
	for i := range us {
		us[i] = model.NodeID(i + 1)
	}
	_, err = g.AddEdges(us, []model.NodeID{0})
	require.NoError(t, err)
	return g
}

func TestUpdateAllSumStar(t *testing.T) {
	g := starGraph(t, 9)
	require.NoError(t, g.SetNodeFeatures("h", testutil.OnesDense(10, 2)))

	err := engine.UpdateAll(g, engine.CopyU("h"), engine.Sum(), "h_sum")
	require.NoError(t, err)

	got, err := g.GetNodeFeatures("h_sum")
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{10, 2}, got.Shape())
	out := got.Data().([]float64)

	// Node 0 accumulates all nine leaves; leaves have no in-edges and
	// hold the additive identity.
	assert.Equal(t, []float64{9, 9}, out[:2])
	for i := 2; i < len(out); i++ {
		assert.Zero(t, out[i])
	}
}

func TestUpdateAllMax(t *testing.T) {
	g := fluxgraph.New()
	_, err := g.AddNodes(3)
	require.NoError(t, err)
	_, err = g.AddEdges([]model.NodeID{0, 1}, []model.NodeID{2, 2})
	require.NoError(t, err)

	require.NoError(t, g.SetNodeFeatures("h",
		testutil.MatDense(3, 1, -4, -2, 99)))

	err = engine.UpdateAll(g, engine.CopyU("h"), engine.Max(), "h_max")
	require.NoError(t, err)

	got, err := g.GetNodeFeatures("h_max", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2}, got.Data().([]float64))
}

func TestUpdateAllUMulE(t *testing.T) {
	g := fluxgraph.New()
	_, err := g.AddNodes(3)
	require.NoError(t, err)
	_, err = g.AddEdges([]model.NodeID{0, 1}, []model.NodeID{2, 2})
	require.NoError(t, err)

	require.NoError(t, g.SetNodeFeatures("h", testutil.MatDense(3, 2,
		1, 2,
		3, 4,
		0, 0)))
	require.NoError(t, g.SetEdgeFeatures("w", testutil.MatDense(2, 1, 2, 10)))

	err = engine.UpdateAll(g, engine.UMulE("h", "w"), engine.Sum(), "out")
	require.NoError(t, err)

	got, err := g.GetNodeFeatures("out", 2)
	require.NoError(t, err)
	// 2*(1,2) + 10*(3,4)
	assert.Equal(t, []float64{32, 44}, got.Data().([]float64))
}

func TestApplyEdges(t *testing.T) {
	g := fluxgraph.New()
	_, err := g.AddNodes(3)
	require.NoError(t, err)
	_, err = g.AddEdges([]model.NodeID{0, 1, 2}, []model.NodeID{1, 2, 0})
	require.NoError(t, err)

	require.NoError(t, g.SetNodeFeatures("h", testutil.MatDense(3, 2,
		1, 0,
		0, 1,
		1, 1)))

	err = engine.ApplyEdges(g, engine.Out("cos", engine.UDotV("h", "h")))
	require.NoError(t, err)

	got, err := g.GetEdgeFeatures("cos")
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{3, 1}, got.Shape())
	// (1,0)·(0,1), (0,1)·(1,1), (1,1)·(1,0) per edge.
	assert.Equal(t, []float64{0, 1, 1}, got.Data().([]float64))
}

func TestApplyEdgesRowCount(t *testing.T) {
	g := starGraph(t, 2)

	err := engine.ApplyEdges(g, func(eb *engine.EdgeBatch) (map[string]*tensor.Dense, error) {
		return map[string]*tensor.Dense{"bad": testutil.OnesDense(5, 1)}, nil
	})
	require.ErrorIs(t, err, engine.ErrRowCount)
}

func TestUpdateAllNoEdges(t *testing.T) {
	g := fluxgraph.New()
	_, err := g.AddNodes(3)
	require.NoError(t, err)
	require.NoError(t, g.SetNodeFeatures("h", testutil.OnesDense(3, 1)))

	err = engine.UpdateAll(g, engine.CopyU("h"), engine.Sum(), "out")
	require.ErrorIs(t, err, engine.ErrNoEdges)

	err = engine.ApplyEdges(g, engine.Out("m", engine.CopyU("h")))
	require.ErrorIs(t, err, engine.ErrNoEdges)
}

func TestEdgeBatchGathers(t *testing.T) {
	g := fluxgraph.New()
	_, err := g.AddNodes(3)
	require.NoError(t, err)
	_, err = g.AddEdges([]model.NodeID{2, 0}, []model.NodeID{0, 1})
	require.NoError(t, err)
	require.NoError(t, g.SetNodeFeatures("h", testutil.RowDense(3, 1)))
	require.NoError(t, g.SetEdgeFeatures("w", testutil.MatDense(2, 1, 7, 8)))

	eb, err := engine.NewEdgeBatch(g)
	require.NoError(t, err)
	assert.Equal(t, 2, eb.Len())

	src, err := eb.Src("h")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0}, src.Data().([]float64))

	dst, err := eb.Dst("h")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, dst.Data().([]float64))

	e, err := eb.Edge("w")
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8}, e.Data().([]float64))
}

func TestUpdateAllOnBlock(t *testing.T) {
	b, err := fluxgraph.NewBlock(4, 2)
	require.NoError(t, err)
	_, err = b.AddEdges([]model.NodeID{0, 1, 2, 3}, []model.NodeID{0, 0, 0, 1})
	require.NoError(t, err)
	require.NoError(t, b.SrcData().Set("h", testutil.OnesDense(4, 2)))

	err = engine.UpdateAll(b, engine.CopyU("h"), engine.Sum(), "out")
	require.NoError(t, err)

	got, err := b.DstData().Get("out")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 1, 1}, got.Data().([]float64))
}

func TestCopyEDetachesStorage(t *testing.T) {
	g := starGraph(t, 2)
	require.NoError(t, g.SetEdgeFeatures("w", testutil.MatDense(2, 1, 1, 2)))

	eb, err := engine.NewEdgeBatch(g)
	require.NoError(t, err)
	msg, err := engine.CopyE("w")(eb)
	require.NoError(t, err)

	msg.Data().([]float64)[0] = 99

	got, err := g.GetEdgeFeatures("w")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got.Data().([]float64))
}
