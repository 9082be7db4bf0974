package funcgraph

import (
	"testing"

	"github.com/nikomatsakis/borrowck/internal/ir"
)

func simpleFunction() *ir.Function {
	return &ir.Function{
		Regions: []ir.RegionName{"a"},
		Blocks: []ir.BasicBlock{
			{Name: ir.StartBlock, Actions: []ir.Action{{Kind: ir.NoopAction{}}}, Successors: nil},
		},
	}
}

func TestBuildRequiresStartBlock(t *testing.T) {
	fn := &ir.Function{Blocks: []ir.BasicBlock{{Name: "notstart"}}}
	if _, err := Build(fn); err == nil {
		t.Fatal("expected an error when START is missing")
	}
}

func TestBuildWiresSkolemizedEndAsSink(t *testing.T) {
	fn := simpleFunction()
	g, err := Build(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.NumNodes() != 2 {
		t.Fatalf("expected 2 nodes (START + END(a)), got %d", g.NumNodes())
	}
	endIdx, ok := g.SkolemizedEnd("a")
	if !ok {
		t.Fatal("expected a skolemized-end node for region a")
	}
	startIdx := g.StartNode()
	succs := g.Successors(startIdx)
	if len(succs) != 1 || succs[0] != endIdx {
		t.Fatalf("expected START's only successor to be END(a), got %v", succs)
	}
}

func TestBuildRejectsUndeclaredSuccessor(t *testing.T) {
	fn := &ir.Function{
		Blocks: []ir.BasicBlock{
			{Name: ir.StartBlock, Successors: []ir.BlockName{"ghost"}},
		},
	}
	if _, err := Build(fn); err == nil {
		t.Fatal("expected an error for an undeclared successor block")
	}
}

func TestBuildWiresOutlivesEdgeBetweenSkolemizedEnds(t *testing.T) {
	fn := &ir.Function{
		Regions: []ir.RegionName{"a", "b"},
		Outlives: []ir.OutlivesConstraint{
			{Sup: "a", Sub: "b"},
		},
		Blocks: []ir.BasicBlock{
			{Name: ir.StartBlock},
		},
	}
	g, err := Build(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bEnd, _ := g.SkolemizedEnd("b")
	aEnd, _ := g.SkolemizedEnd("a")
	found := false
	for _, s := range g.Successors(bEnd) {
		if s == aEnd {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an edge from END(b) to END(a) for the 'a: 'b clause")
	}
}

func TestComputeSkolemizedRootsHandlesCycle(t *testing.T) {
	roots, err := computeSkolemizedRoots(
		[]ir.RegionName{"a", "b"},
		[]ir.OutlivesConstraint{{Sup: "a", Sub: "b"}, {Sup: "b", Sub: "a"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("expected the mutual cycle to collapse to exactly one representative root, got %v", roots)
	}
}
