// Package fluxgraph provides an embedded graph structure for message
// passing over dense feature tensors.
//
// Fluxgraph models a directed graph with consecutive integer node and
// edge ids, batched feature storage, and a message-passing engine with
// production-ready features including:
//
//   - Dense ids: nodes occupy [0, N), edges [0, M), with no gaps
//   - Columnar feature stores with scheme checking and default fill
//   - Endpoint broadcasting for bulk edge insertion
//   - Fused message passing: apply over edges, reduce onto destinations
//   - Built-in message and reduce functions (copy, mul, dot, sum, max)
//   - Local feature scopes that roll back staging writes on exit
//   - Bipartite blocks for layered, sampled computation
//   - Edge softmax and an attention-style graph convolution in nn
//   - Binary snapshots with zstd or lz4 compression
//   - Import adapters, including one for gonum directed graphs
//
// # Quick Start
//
// Build a graph, attach features, and run one round of message
// passing:
//
//	g := fluxgraph.New()
//	g.AddNodes(3)
//	g.AddEdges([]model.NodeID{0, 1}, []model.NodeID{2})
//
//	h := tensor.New(tensor.WithShape(3, 4), tensor.WithBacking(data))
//	g.SetNodeFeatures("h", h)
//
//	err := engine.UpdateAll(g, engine.CopyU("h"), engine.Sum(), "h_sum")
//	sums, _ := g.GetNodeFeatures("h_sum")
//
// Messages flow source to destination; the reducer aggregates incoming
// messages per destination node, filling nodes without in-edges with
// the reducer's identity.
//
// # Feature Scopes
//
// LocalScope confines feature writes so staging keys never leak:
//
//	err := g.LocalScope(func() error {
//	    // writes to g.NodeData()/g.EdgeData() are rolled back on return
//	    return nil
//	})
//
// Structural mutations (AddNodes, AddEdges) are not scoped.
//
// # Persistence
//
// Save writes structure and every feature column to an io.Writer; Load
// reconstructs the graph:
//
//	err := g.Save(f, fluxgraph.WithCompression(fluxgraph.CompressionZstd))
//	g2, err := fluxgraph.Load(f2)
package fluxgraph
