package fluxgraph

// LocalScope runs fn with the graph's feature state snapshotted on
// entry and restored on every exit path: normal return, an error from
// fn, or a panic. Feature mutations made inside fn — staged per-edge
// messages, intermediate node values — are never visible afterwards, so
// message-passing computations cannot pollute the graph's feature
// state. Tensors computed inside the scope remain valid values and may
// be returned through fn's closure.
//
// Only feature state is scoped. Structural mutation (AddNodes,
// AddEdges) inside fn is not undone and would desynchronize structure
// from features; don't do it. Scopes nest, but are not reentrant across
// goroutines sharing one graph.
func (g *Graph) LocalScope(fn func() error) error {
	ns := g.ndata.Snapshot()
	es := g.edata.Snapshot()
	defer func() {
		g.ndata.Restore(ns)
		g.edata.Restore(es)
	}()
	return fn()
}
