package fluxgraph

import "github.com/fluxgraph/fluxgraph/model"

// ResolveBroadcast expands asymmetric source/destination specifications
// into explicit pairwise endpoint lists:
//
//   - equal lengths: zipped pairwise, producing len(us) edges
//   - len(us) == 1: the single source is broadcast to every destination
//   - len(vs) == 1: the single destination is broadcast to every source
//
// Any other length combination fails with *BroadcastError. The returned
// slices always have equal length, and the graph assigns consecutive
// edge ids in exactly this order.
func ResolveBroadcast(us, vs []model.NodeID) ([]model.NodeID, []model.NodeID, error) {
	switch {
	case len(us) == 0 || len(vs) == 0:
		return nil, nil, &BroadcastError{LenU: len(us), LenV: len(vs)}
	case len(us) == len(vs):
		return us, vs, nil
	case len(us) == 1:
		su := make([]model.NodeID, len(vs))
		for i := range su {
			su[i] = us[0]
		}
		return su, vs, nil
	case len(vs) == 1:
		sv := make([]model.NodeID, len(us))
		for i := range sv {
			sv[i] = vs[0]
		}
		return us, sv, nil
	default:
		return nil, nil, &BroadcastError{LenU: len(us), LenV: len(vs)}
	}
}
