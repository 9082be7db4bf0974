// Package graph provides the abstract graph contract and the generic
// algorithms (reverse post-order, dominators, reachability, loop tree)
// that every higher layer of the analysis is built on. Nodes are always
// dense integer indices in [0, NumNodes); callers that need richer node
// identities keep their own index<->name mapping (see internal/funcgraph).
package graph

// Graph is the capability contract every algorithm in this package
// depends on. It deliberately carries no notion of edge labels or node
// payloads — those live one layer up, in internal/funcgraph.
type Graph interface {
	NumNodes() int
	StartNode() int
	Predecessors(n int) []int
	Successors(n int) []int
}

// Transposed wraps a Graph and swaps predecessors with successors,
// letting any algorithm that consumes a Graph run over the reverse
// graph without a separate implementation.
type Transposed struct {
	G Graph
}

func (t Transposed) NumNodes() int            { return t.G.NumNodes() }
func (t Transposed) StartNode() int           { return t.G.StartNode() }
func (t Transposed) Predecessors(n int) []int { return t.G.Successors(n) }
func (t Transposed) Successors(n int) []int   { return t.G.Predecessors(n) }

// ReversePostOrder returns the nodes reachable from start in reverse
// post-order: a DFS post-order traversal, reversed.
func ReversePostOrder(g Graph, start int) []int {
	visited := make([]bool, g.NumNodes())
	order := make([]int, 0, g.NumNodes())

	var dfs func(int)
	dfs = func(n int) {
		visited[n] = true
		for _, s := range g.Successors(n) {
			if !visited[s] {
				dfs(s)
			}
		}
		order = append(order, n)
	}
	dfs(start)

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
