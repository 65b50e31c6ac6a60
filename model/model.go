// Package model defines the dense identifier types shared by every
// fluxgraph package.
//
// Node and edge ids are strictly 32-bit and consecutive from zero. They
// double as row indices into batched feature tensors, which is why the
// library never reuses or frees an id: every downstream structure
// (adjacency arrays, feature columns, bitmap indexes) is addressed by id.
package model

// NodeID is a dense, consecutive identifier for a node, assigned at
// creation time in insertion order. It is never reused.
type NodeID uint32

// EdgeID is a dense, consecutive identifier for an edge, assigned at
// creation time in insertion order. It is never reused.
type EdgeID uint32

// MaxNodeID is the largest representable NodeID.
const MaxNodeID = ^NodeID(0)

// MaxEdgeID is the largest representable EdgeID.
const MaxEdgeID = ^EdgeID(0)

// Rows widens a slice of dense ids into tensor row indices.
func Rows[T ~uint32](ids []T) []int {
	rows := make([]int, len(ids))
	for i, id := range ids {
		rows[i] = int(id)
	}
	return rows
}

// NodeRange returns the ids [start, start+count) as a slice.
// It is the shape of every allocation the library performs: a contiguous
// block starting at the current entity count.
func NodeRange(start, count int) []NodeID {
	ids := make([]NodeID, count)
	for i := range ids {
		ids[i] = NodeID(start + i)
	}
	return ids
}

// EdgeRange returns the ids [start, start+count) as a slice.
func EdgeRange(start, count int) []EdgeID {
	ids := make([]EdgeID, count)
	for i := range ids {
		ids[i] = EdgeID(start + i)
	}
	return ids
}
