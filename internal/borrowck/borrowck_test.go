package borrowck

import (
	"testing"

	"github.com/nikomatsakis/borrowck/internal/env"
	"github.com/nikomatsakis/borrowck/internal/infer"
	"github.com/nikomatsakis/borrowck/internal/ir"
	"github.com/nikomatsakis/borrowck/internal/liveness"
	"github.com/nikomatsakis/borrowck/internal/loans"
)

func run(t *testing.T, fn *ir.Function) []*Error {
	t.Helper()
	e, err := env.New(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l, err := liveness.Compute(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, err := infer.Populate(e, l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if errs := ctx.Solve(e); len(errs) != 0 {
		t.Fatalf("unexpected inference errors: %v", errs)
	}
	ls := loans.Compute(e, ctx)
	return Check(e, ls)
}

// scenario 2: simple shared borrow, no conflict expected.
func TestSharedBorrowNoConflict(t *testing.T) {
	fn := &ir.Function{
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
					{Kind: ir.UseAction{Path: ir.NewVar("x")}},
				},
			},
		},
	}
	if errs := run(t, fn); len(errs) != 0 {
		t.Fatalf("expected no borrow errors, got %v", errs)
	}
}

// scenario 3: mut-borrow conflict -- use(x) while y = &mut'a x is live.
func TestMutBorrowConflict(t *testing.T) {
	fn := &ir.Function{
		Decls: []ir.VariableDecl{
			{Var: "x", Ty: ir.UnitType{}},
			{Var: "y", Ty: ir.RefType{Region: ir.FreeRegion("a"), Kind: ir.Mut, Referent: ir.UnitType{}}},
		},
		Regions: []ir.RegionName{"a"},
		Blocks: []ir.BasicBlock{
			{
				Name: ir.StartBlock,
				Actions: []ir.Action{
					{Kind: ir.BorrowAction{Dest: ir.NewVar("y"), Region: "a", Kind: ir.Mut, Source: ir.NewVar("x")}},
					{Kind: ir.UseAction{Path: ir.NewVar("x")}},
					{Kind: ir.UseAction{Path: ir.NewVar("y")}},
				},
			},
		},
	}
	errs := run(t, fn)
	if len(errs) == 0 {
		t.Fatal("expected a write/read conflict between the mutable borrow and the use of x")
	}
	found := false
	for _, e := range errs {
		if e.Kind == ReadConflict && e.LoanPath.Equal(ir.NewVar("x")) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a read-conflict on x's mutable loan, got %v", errs)
	}
}

// scenario 5: drop with may_dangle should succeed, even with r read
// again right after -- so the loan genuinely remains in scope across
// the drop (not merely out of scope because r went unused).
func TestDropWithMayDangleSucceeds(t *testing.T) {
	fn := &ir.Function{
		Decls: []ir.VariableDecl{
			{Var: "v", Ty: ir.StructType{
				Name:   "Vec",
				Params: []ir.TypeParam{ir.RegionParam(ir.FreeRegion("a"))},
			}},
			{Var: "r", Ty: ir.RefType{Region: ir.FreeRegion("a"), Kind: ir.Mut, Referent: ir.UnitType{}}},
		},
		Regions: []ir.RegionName{"a"},
		Structs: []ir.StructDecl{
			{
				Name:       "Vec",
				Parameters: []ir.StructParameter{{Kind: ir.KindRegion, Variance: ir.Covariant, MayDangle: true}},
				Fields: []ir.FieldDecl{
					{Name: "ptr", Ty: ir.RefType{Region: ir.BoundRegion(0), Kind: ir.Mut, Referent: ir.UnitType{}}},
				},
			},
		},
		Blocks: []ir.BasicBlock{
			{
				Name: ir.StartBlock,
				Actions: []ir.Action{
					{Kind: ir.BorrowAction{
						Dest:   ir.NewVar("r"),
						Region: "a",
						Kind:   ir.Mut,
						Source: ir.NewVar("v").Extend("ptr").Extend(ir.DerefField),
					}},
					{Kind: ir.DropAction{Path: ir.NewVar("v")}},
					{Kind: ir.UseAction{Path: ir.NewVar("r")}},
				},
			},
		},
	}
	errs := run(t, fn)
	for _, e := range errs {
		if e.Kind == DropConflict {
			t.Fatalf("expected drop to succeed under may_dangle, got %v", errs)
		}
	}
}
