package fluxgraph

import (
	"errors"
	"fmt"

	"github.com/fluxgraph/fluxgraph/model"
)

var (
	// ErrNodeNotFound is returned when an edge endpoint references a
	// node id that was never allocated.
	ErrNodeNotFound = errors.New("fluxgraph: node not found")

	// ErrEdgeNotFound is returned when no edge connects the requested
	// endpoints.
	ErrEdgeNotFound = errors.New("fluxgraph: edge not found")

	// ErrParallelEdge is returned when adding a (u, v) edge that already
	// exists and the graph was not configured as a multigraph.
	ErrParallelEdge = errors.New("fluxgraph: parallel edge on non-multigraph")

	// ErrStructuralViolation is returned by any attempt to remove nodes
	// or edges. Removal is permanently unsupported: ids are dense row
	// indices into batched feature tensors, and freeing one would either
	// break alignment or force id reuse.
	ErrStructuralViolation = errors.New("fluxgraph: node/edge removal is unsupported")

	// ErrPartialEdgeOrder is returned by FromSource when only some edges
	// carry an ordering hint.
	ErrPartialEdgeOrder = errors.New("fluxgraph: ordering hint missing on some edges")
)

// BroadcastError reports source/destination id specifications whose
// lengths cannot be broadcast against each other: lengths must be equal,
// or one of them must be exactly 1.
type BroadcastError struct {
	LenU int
	LenV int
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("fluxgraph: cannot broadcast %d sources against %d destinations", e.LenU, e.LenV)
}

// AmbiguousEdgeError reports an endpoint-based edge lookup that matched
// more than one edge in a multigraph. Use EdgeIDs to receive all
// matches explicitly.
type AmbiguousEdgeError struct {
	U       model.NodeID
	V       model.NodeID
	Matches int
}

func (e *AmbiguousEdgeError) Error() string {
	return fmt.Sprintf("fluxgraph: %d edges between %d and %d; use EdgeIDs for all matches", e.Matches, e.U, e.V)
}
