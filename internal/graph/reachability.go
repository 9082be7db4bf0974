package graph

import "github.com/nikomatsakis/borrowck/internal/bitset"

// Reachability is an N x N bitset answering, for any pair of nodes,
// whether the second is reachable from the first along forward edges.
type Reachability struct {
	bits *bitset.Set
}

// ComputeReachability computes, for every node n, the set of nodes
// reachable from n (including n itself), by a fixed-point iteration
// over the reverse post-order walked backwards:
// reach(n) ⊇ {n} ∪ ⋃ reach(s) for s ∈ successors(n).
func ComputeReachability(g Graph) *Reachability {
	n := g.NumNodes()
	bits := bitset.NewSet(n, n)
	for i := 0; i < n; i++ {
		bits.InsertBit(i, i)
	}

	rpo := ReversePostOrder(g, g.StartNode())

	changed := true
	for changed {
		changed = false
		// Process in reverse of RPO: a node's reachability depends on
		// its successors', which should settle first.
		for i := len(rpo) - 1; i >= 0; i-- {
			node := rpo[i]
			for _, s := range g.Successors(node) {
				if bits.UnionNodeInto(node, s) {
					changed = true
				}
			}
		}
	}

	return &Reachability{bits: bits}
}

// CanReach reports whether to is reachable from from.
func (r *Reachability) CanReach(from, to int) bool {
	return r.bits.TestBit(from, to)
}
