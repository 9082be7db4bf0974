// Package loans computes, for each program point, the set of borrows
// ("loans") currently in scope: forward dataflow seeded from each
// Borrow action, kept alive while the loan's inferred region still
// contains the current point, and cancelled once an overwriting action
// targets a prefix of the loan's source path.
package loans

import (
	"github.com/nikomatsakis/borrowck/internal/bitset"
	"github.com/nikomatsakis/borrowck/internal/env"
	"github.com/nikomatsakis/borrowck/internal/infer"
	"github.com/nikomatsakis/borrowck/internal/ir"
)

// Loan records one Borrow action: where it was issued, the path it
// borrowed from, its kind, and the region variable tracking its extent.
type Loan struct {
	Point  ir.Point
	Path   *ir.Path
	Kind   ir.BorrowKind
	Region infer.RegionVariable
}

// LoansInScope holds the settled forward dataflow result.
type LoansInScope struct {
	env   *env.Environment
	ctx   *infer.Context
	loans []Loan

	bits *bitset.Set
}

// Compute collects one Loan per Borrow action (in RPO order, for
// determinism) and runs the forward fixed-point dataflow.
func Compute(e *env.Environment, ctx *infer.Context) *LoansInScope {
	ls := &LoansInScope{env: e, ctx: ctx}

	for _, node := range e.RPO {
		blockName := e.Graph.BlockName(node)
		for i, a := range e.Graph.Actions(node) {
			if k, ok := a.Kind.(ir.BorrowAction); ok {
				ls.loans = append(ls.loans, Loan{
					Point:  ir.Point{Block: blockName, Action: i},
					Path:   k.Source,
					Kind:   k.Kind,
					Region: ctx.Lookup(k.Region),
				})
			}
		}
	}

	ls.bits = bitset.NewSet(e.Graph.NumNodes(), len(ls.loans))
	ls.compute()
	return ls
}

// Loans returns every loan collected for this function, in the order
// they were issued (RPO order of their borrow point).
func (ls *LoansInScope) Loans() []Loan { return ls.loans }

func (ls *LoansInScope) loansNotInScopeAt(p ir.Point) []int {
	var out []int
	for i, l := range ls.loans {
		if !ls.ctx.Contains(l.Region, p) {
			out = append(out, i)
		}
	}
	return out
}

func overwrites(a ir.Action) *ir.Path {
	switch k := a.Kind.(type) {
	case ir.BorrowAction:
		return k.Dest
	case ir.InitAction:
		return k.Dest
	case ir.AssignAction:
		return k.Dest
	default:
		return nil
	}
}

func (ls *LoansInScope) loansKilledByWriteTo(path *ir.Path) []int {
	var out []int
	for i, l := range ls.loans {
		for _, prefix := range l.Path.Prefixes() {
			if prefix.Equal(path) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// computeBlock runs a forward pass over node's actions, seeding buf
// from the union of every predecessor's stored exit bits (the correct
// direction for a forward dataflow problem: a loan only becomes visible
// once control flow has actually passed its creation point), invoking
// callback (if non-nil) with the in-scope set before each action and at
// the terminator, and leaves buf holding the block's own exit bits.
func (ls *LoansInScope) computeBlock(node int, buf bitset.Buf, callback func(ir.Point, *ir.Action, bitset.Slice)) {
	buf.Clear()
	for _, pred := range ls.env.Graph.Predecessors(node) {
		buf.UnionFrom(ls.bits.Bits(pred))
	}

	blockName := ls.env.Graph.BlockName(node)
	actions := ls.env.Graph.Actions(node)

	for i, a := range actions {
		p := ir.Point{Block: blockName, Action: i}
		for _, dead := range ls.loansNotInScopeAt(p) {
			buf.Kill(dead)
		}
		if callback != nil {
			callback(p, &actions[i], buf.AsSlice())
		}
		if k, ok := a.Kind.(ir.BorrowAction); ok {
			for li, l := range ls.loans {
				if l.Point == p && l.Path.Equal(k.Source) {
					buf.Set(li)
				}
			}
		}
		if target := overwrites(a); target != nil {
			for _, dead := range ls.loansKilledByWriteTo(target) {
				buf.Kill(dead)
			}
		}
	}

	term := ir.Point{Block: blockName, Action: len(actions)}
	for _, dead := range ls.loansNotInScopeAt(term) {
		buf.Kill(dead)
	}
	if callback != nil {
		callback(term, nil, buf.AsSlice())
	}
}

func (ls *LoansInScope) compute() {
	if len(ls.loans) == 0 {
		return
	}
	buf := ls.bits.EmptyBuf()
	changed := true
	for changed {
		changed = false
		for _, node := range ls.env.RPO {
			ls.computeBlock(node, buf, nil)
			if ls.bits.UnionFromSlice(node, buf.AsSlice()) {
				changed = true
			}
		}
	}
}

// Walk re-runs the settled dataflow once more, invoking callback with
// the list of loans in scope before every action (and at the
// terminator) of every block.
func (ls *LoansInScope) Walk(callback func(ir.Point, *ir.Action, []Loan)) {
	if len(ls.loans) == 0 {
		for _, node := range ls.env.RPO {
			blockName := ls.env.Graph.BlockName(node)
			actions := ls.env.Graph.Actions(node)
			for i := range actions {
				callback(ir.Point{Block: blockName, Action: i}, &actions[i], nil)
			}
			callback(ir.Point{Block: blockName, Action: len(actions)}, nil, nil)
		}
		return
	}
	buf := ls.bits.EmptyBuf()
	for _, node := range ls.env.RPO {
		ls.computeBlock(node, buf, func(p ir.Point, a *ir.Action, bits bitset.Slice) {
			var active []Loan
			for i, l := range ls.loans {
				if bits.Get(i) {
					active = append(active, l)
				}
			}
			callback(p, a, active)
		})
	}
}
