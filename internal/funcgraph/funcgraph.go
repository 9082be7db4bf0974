// Package funcgraph builds the graph the rest of the analysis runs
// over: the function's real basic blocks, plus one synthetic
// "skolemized end" block per declared free region, wired according to
// the program's control flow and its outlives clauses.
package funcgraph

import (
	"fmt"

	"github.com/nikomatsakis/borrowck/internal/ir"
)

// FuncGraph is the dense-index CFG view of an ir.Function, augmented
// with synthetic skolemized-end nodes. It implements graph.Graph.
type FuncGraph struct {
	fn *ir.Function

	names   []ir.BlockName
	indexOf map[ir.BlockName]int

	successors   [][]int
	predecessors [][]int

	start int

	skolemizedEndOf map[ir.RegionName]int
	actions         [][]ir.Action
}

// Build constructs the augmented CFG for fn. It errors on any
// structural inconsistency: a missing START block, or a declared
// successor naming an undeclared block.
func Build(fn *ir.Function) (*FuncGraph, error) {
	if _, ok := fn.BlockByName(ir.StartBlock); !ok {
		return nil, fmt.Errorf("funcgraph: function has no %s block", ir.StartBlock)
	}

	g := &FuncGraph{
		fn:              fn,
		indexOf:         map[ir.BlockName]int{},
		skolemizedEndOf: map[ir.RegionName]int{},
	}

	for _, b := range fn.Blocks {
		g.indexOf[b.Name] = len(g.names)
		g.names = append(g.names, b.Name)
		g.actions = append(g.actions, b.Actions)
	}
	g.start = g.indexOf[ir.StartBlock]

	for _, r := range fn.Regions {
		name := ir.SkolemizedEndBlockName(r)
		idx := len(g.names)
		g.indexOf[name] = idx
		g.names = append(g.names, name)
		g.actions = append(g.actions, []ir.Action{{Kind: ir.SkolemizedEndAction{Region: r}}})
		g.skolemizedEndOf[r] = idx
	}

	n := len(g.names)
	g.successors = make([][]int, n)
	g.predecessors = make([][]int, n)

	roots, err := computeSkolemizedRoots(fn.Regions, fn.Outlives)
	if err != nil {
		return nil, err
	}
	rootIndices := make([]int, len(roots))
	for i, r := range roots {
		rootIndices[i] = g.skolemizedEndOf[r]
	}

	for _, b := range fn.Blocks {
		from := g.indexOf[b.Name]
		if len(b.Successors) == 0 {
			g.successors[from] = append(g.successors[from], rootIndices...)
			continue
		}
		for _, succName := range b.Successors {
			to, ok := g.indexOf[succName]
			if !ok {
				return nil, fmt.Errorf("funcgraph: block %s declares undeclared successor %s", b.Name, succName)
			}
			g.successors[from] = append(g.successors[from], to)
		}
	}

	for _, c := range fn.Outlives {
		subEnd, ok := g.skolemizedEndOf[c.Sub]
		if !ok {
			return nil, fmt.Errorf("funcgraph: outlives clause references undeclared region %s", c.Sub)
		}
		supEnd, ok := g.skolemizedEndOf[c.Sup]
		if !ok {
			return nil, fmt.Errorf("funcgraph: outlives clause references undeclared region %s", c.Sup)
		}
		// To reach the end of sup, flow must pass the end of sub first:
		// sup does not outlive its own dependency's end.
		g.successors[subEnd] = append(g.successors[subEnd], supEnd)
	}

	for from, tos := range g.successors {
		for _, to := range tos {
			g.predecessors[to] = append(g.predecessors[to], from)
		}
	}

	return g, nil
}

// computeSkolemizedRoots selects one representative per root strongly
// connected component of the outlives graph over region names (edge
// sub -> sup for each `sup: sub` clause): a component with no incoming
// edge from outside itself. A cycle entirely of mutually outliving
// regions collapses to a single arbitrary representative rather than
// contributing one root per member, per spec: exactly one skolemized
// end per cycle acts as the tail sink; a cycle holding every region is
// itself such a root component. The final fallback to the first region
// only guards the empty-result case.
func computeSkolemizedRoots(regions []ir.RegionName, outlives []ir.OutlivesConstraint) ([]ir.RegionName, error) {
	if len(regions) == 0 {
		return nil, nil
	}

	idx := map[ir.RegionName]int{}
	for i, r := range regions {
		idx[r] = i
	}
	n := len(regions)
	succ := make([][]int, n)
	pred := make([][]int, n)
	for _, c := range outlives {
		subIdx, ok := idx[c.Sub]
		if !ok {
			return nil, fmt.Errorf("funcgraph: outlives clause references undeclared region %s", c.Sub)
		}
		supIdx, ok := idx[c.Sup]
		if !ok {
			return nil, fmt.Errorf("funcgraph: outlives clause references undeclared region %s", c.Sup)
		}
		succ[subIdx] = append(succ[subIdx], supIdx)
		pred[supIdx] = append(pred[supIdx], subIdx)
	}

	reach := make([][]bool, n)
	for i := 0; i < n; i++ {
		reach[i] = make([]bool, n)
		visited := make([]bool, n)
		var dfs func(int)
		dfs = func(node int) {
			visited[node] = true
			reach[i][node] = true
			for _, s := range succ[node] {
				if !visited[s] {
					dfs(s)
				}
			}
		}
		dfs(i)
	}

	// Group nodes into strongly connected components: i and j share a
	// component iff each reaches the other.
	scc := make([]int, n)
	for i := range scc {
		scc[i] = -1
	}
	numSCC := 0
	for i := 0; i < n; i++ {
		if scc[i] != -1 {
			continue
		}
		scc[i] = numSCC
		for j := i + 1; j < n; j++ {
			if scc[j] == -1 && reach[i][j] && reach[j][i] {
				scc[j] = numSCC
			}
		}
		numSCC++
	}

	isRootSCC := make([]bool, numSCC)
	for i := range isRootSCC {
		isRootSCC[i] = true
	}
	for i := 0; i < n; i++ {
		for _, p := range pred[i] {
			if scc[p] != scc[i] { // a genuine predecessor outside this component
				isRootSCC[scc[i]] = false
			}
		}
	}

	var roots []ir.RegionName
	seen := make([]bool, numSCC)
	for i := 0; i < n; i++ {
		if isRootSCC[scc[i]] && !seen[scc[i]] {
			seen[scc[i]] = true
			roots = append(roots, regions[i])
		}
	}
	if len(roots) == 0 {
		roots = append(roots, regions[0])
	}
	return roots, nil
}

// SkolemizedEndName returns the synthetic block name representing the
// end of region r.
func SkolemizedEndName(r ir.RegionName) ir.BlockName {
	return ir.SkolemizedEndBlockName(r)
}

func (g *FuncGraph) NumNodes() int            { return len(g.names) }
func (g *FuncGraph) StartNode() int           { return g.start }
func (g *FuncGraph) Predecessors(n int) []int { return g.predecessors[n] }
func (g *FuncGraph) Successors(n int) []int   { return g.successors[n] }

// BlockName returns the name of node n (a real block or a synthetic
// skolemized-end block).
func (g *FuncGraph) BlockName(n int) ir.BlockName { return g.names[n] }

// IndexOf returns the node index for a block name, if any.
func (g *FuncGraph) IndexOf(name ir.BlockName) (int, bool) {
	idx, ok := g.indexOf[name]
	return idx, ok
}

// Actions returns node n's action sequence.
func (g *FuncGraph) Actions(n int) []ir.Action { return g.actions[n] }

// SkolemizedEnd returns the node index for region r's skolemized-end
// block.
func (g *FuncGraph) SkolemizedEnd(r ir.RegionName) (int, bool) {
	idx, ok := g.skolemizedEndOf[r]
	return idx, ok
}

// Function returns the underlying function this graph was built from.
func (g *FuncGraph) Function() *ir.Function { return g.fn }
