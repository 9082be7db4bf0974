package driver

import (
	"fmt"

	"github.com/nikomatsakis/borrowck/internal/env"
	"github.com/nikomatsakis/borrowck/internal/infer"
	"github.com/nikomatsakis/borrowck/internal/ir"
	"github.com/nikomatsakis/borrowck/internal/liveness"
)

// checkAssertions evaluates every assertion declared on fn against the
// settled inference and liveness results, run only after a clean
// borrow-check (per SPEC_FULL.md's propagation policy: assertion
// failures are a distinct, final error surface).
func checkAssertions(fn *ir.Function, e *env.Environment, l *liveness.Liveness, ctx *infer.Context) []Diagnostic {
	var out []Diagnostic
	fail := func(p ir.Point, format string, args ...any) {
		out = append(out, Diagnostic{Kind: KindAssertion, Point: p, Message: fmt.Sprintf(format, args...)})
	}

	for _, a := range fn.Assertions {
		switch as := a.(type) {
		case ir.RegionEqAssertion:
			v := ctx.Lookup(as.Region)
			want := map[ir.Point]bool{}
			for _, p := range as.Literal {
				want[p] = true
			}
			got := ctx.Region(v)
			if !pointSetsEqual(want, got) {
				fail(ir.Point{}, "region %s: expected value %v, got %v", as.Region, as.Literal, sortedPoints(got))
			}
		case ir.RegionInAssertion:
			v := ctx.Lookup(as.Region)
			if !ctx.Contains(v, as.Point) {
				fail(as.Point, "region %s does not contain %s", as.Region, as.Point)
			}
		case ir.RegionNotInAssertion:
			v := ctx.Lookup(as.Region)
			if ctx.Contains(v, as.Point) {
				fail(as.Point, "region %s unexpectedly contains %s", as.Region, as.Point)
			}
		case ir.VarLiveAssertion:
			node, ok := e.Graph.IndexOf(as.Block)
			if !ok {
				fail(ir.Point{}, "block %s is not declared", as.Block)
				continue
			}
			if !l.VarLiveOnEntry(as.Var, node) {
				fail(e.StartPoint(as.Block), "%s is not live on entry to %s", as.Var, as.Block)
			}
		case ir.VarNotLiveAssertion:
			node, ok := e.Graph.IndexOf(as.Block)
			if !ok {
				fail(ir.Point{}, "block %s is not declared", as.Block)
				continue
			}
			if l.VarLiveOnEntry(as.Var, node) {
				fail(e.StartPoint(as.Block), "%s is unexpectedly live on entry to %s", as.Var, as.Block)
			}
		case ir.RegionLiveAssertion:
			node, ok := e.Graph.IndexOf(as.Block)
			if !ok {
				fail(ir.Point{}, "block %s is not declared", as.Block)
				continue
			}
			live, err := l.RegionLiveOnEntry(as.Region, node)
			if err != nil {
				fail(e.StartPoint(as.Block), "%v", err)
				continue
			}
			if !live {
				fail(e.StartPoint(as.Block), "region %s is not live on entry to %s", as.Region, as.Block)
			}
		case ir.RegionNotLiveAssertion:
			node, ok := e.Graph.IndexOf(as.Block)
			if !ok {
				fail(ir.Point{}, "block %s is not declared", as.Block)
				continue
			}
			live, err := l.RegionLiveOnEntry(as.Region, node)
			if err != nil {
				fail(e.StartPoint(as.Block), "%v", err)
				continue
			}
			if live {
				fail(e.StartPoint(as.Block), "region %s is unexpectedly live on entry to %s", as.Region, as.Block)
			}
		}
	}
	return out
}

func pointSetsEqual(a, b map[ir.Point]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for p := range a {
		if !b[p] {
			return false
		}
	}
	return true
}

func sortedPoints(m map[ir.Point]bool) []ir.Point {
	out := make([]ir.Point, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func less(a, b ir.Point) bool {
	if a.Block != b.Block {
		return a.Block < b.Block
	}
	return a.Action < b.Action
}
