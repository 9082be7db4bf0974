package env

import (
	"testing"

	"github.com/nikomatsakis/borrowck/internal/ir"
)

func basicFunction() *ir.Function {
	return &ir.Function{
		Decls: []ir.VariableDecl{
			{Var: "x", Ty: ir.UnitType{}},
			{Var: "y", Ty: ir.RefType{Region: ir.FreeRegion("a"), Kind: ir.Shared, Referent: ir.UnitType{}}},
		},
		Regions: []ir.RegionName{"a"},
		Blocks: []ir.BasicBlock{
			{
				Name: ir.StartBlock,
				Actions: []ir.Action{
					{Kind: ir.BorrowAction{Dest: ir.NewVar("y"), Region: "a", Kind: ir.Shared, Source: ir.NewVar("x")}},
					{Kind: ir.UseAction{Path: ir.NewVar("y")}},
				},
			},
		},
	}
}

func TestStartAndEndPoints(t *testing.T) {
	fn := basicFunction()
	e, err := New(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.StartPoint(ir.StartBlock).Action != 0 {
		t.Fatal("expected start point action index 0")
	}
	if e.EndPoint(ir.StartBlock).Action != 2 {
		t.Fatalf("expected terminator at action index 2, got %d", e.EndPoint(ir.StartBlock).Action)
	}
}

func TestSuccessorPointsWithinAndAcrossBlocks(t *testing.T) {
	fn := basicFunction()
	e, err := New(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mid := ir.Point{Block: ir.StartBlock, Action: 0}
	succs := e.SuccessorPoints(mid)
	if len(succs) != 1 || succs[0].Action != 1 {
		t.Fatalf("expected single successor at action 1, got %v", succs)
	}

	term := e.EndPoint(ir.StartBlock)
	termSuccs := e.SuccessorPoints(term)
	if len(termSuccs) != 1 {
		t.Fatalf("expected one successor from terminator (the region's skolemized end), got %v", termSuccs)
	}
}

func TestPathTyThroughDeref(t *testing.T) {
	fn := basicFunction()
	e, err := New(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	derefY := ir.NewVar("y").Extend(ir.DerefField)
	ty, err := e.PathTy(derefY)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ty.(ir.UnitType); !ok {
		t.Fatalf("expected Unit referent type, got %T", ty)
	}
}

func TestSupportingPrefixesStopsAtSharedDeref(t *testing.T) {
	fn := basicFunction()
	e, err := New(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	derefY := ir.NewVar("y").Extend(ir.DerefField)
	prefixes, err := e.SupportingPrefixes(derefY)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prefixes) != 1 {
		t.Fatalf("expected recursion to stop right after the shared deref, got %d prefixes", len(prefixes))
	}
}

func TestSupportingPrefixesContinuesPastMutDeref(t *testing.T) {
	fn := &ir.Function{
		Decls: []ir.VariableDecl{
			{Var: "x", Ty: ir.UnitType{}},
			{Var: "y", Ty: ir.RefType{Region: ir.FreeRegion("a"), Kind: ir.Mut, Referent: ir.UnitType{}}},
		},
		Regions: []ir.RegionName{"a"},
		Blocks:  []ir.BasicBlock{{Name: ir.StartBlock}},
	}
	e, err := New(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	derefY := ir.NewVar("y").Extend(ir.DerefField)
	prefixes, err := e.SupportingPrefixes(derefY)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prefixes) != 2 {
		t.Fatalf("expected recursion to continue past a mutable deref to the base variable, got %d", len(prefixes))
	}
}
