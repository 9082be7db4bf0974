// Package liveness computes backward dataflow over three bit kinds --
// variable-used, variable-drop, and free-region -- and exposes a
// separate derived query mapping a settled bit set to the free regions
// it implies are live, honoring the may_dangle mask on struct
// parameters for drop-liveness.
package liveness

import (
	"github.com/nikomatsakis/borrowck/internal/bitset"
	"github.com/nikomatsakis/borrowck/internal/env"
	"github.com/nikomatsakis/borrowck/internal/ir"
)

// Liveness holds the settled per-block entry bit sets plus the bit
// layout needed to interpret them.
type Liveness struct {
	env *env.Environment

	usedBit   map[ir.Variable]int
	dropBit   map[ir.Variable]int
	regionBit map[ir.RegionName]int

	bits    *bitset.Set
	numBits int
}

// Compute runs the backward fixed-point liveness dataflow over e's
// function graph.
func Compute(e *env.Environment) (*Liveness, error) {
	l := &Liveness{
		env:       e,
		usedBit:   map[ir.Variable]int{},
		dropBit:   map[ir.Variable]int{},
		regionBit: map[ir.RegionName]int{},
	}

	bit := 0
	for _, d := range e.Fn.Decls {
		l.usedBit[d.Var] = bit
		bit++
	}
	for _, d := range e.Fn.Decls {
		l.dropBit[d.Var] = bit
		bit++
	}
	for _, r := range e.Fn.Regions {
		l.regionBit[r] = bit
		bit++
	}
	l.numBits = bit

	l.bits = bitset.NewSet(e.Graph.NumNodes(), l.numBits)
	l.compute()
	return l, nil
}

func (l *Liveness) kill(buf bitset.Buf, v ir.Variable) {
	buf.Kill(l.usedBit[v])
	buf.Kill(l.dropBit[v])
}

func (l *Liveness) transfer(buf bitset.Buf, a ir.Action) {
	switch k := a.Kind.(type) {
	case ir.BorrowAction:
		l.kill(buf, k.Dest.Base())
		buf.Set(l.usedBit[k.Source.Base()])
	case ir.InitAction:
		if v, ok := k.Dest.WriteDef(); ok {
			l.kill(buf, v)
		} else if v, ok := k.Dest.WriteUse(); ok {
			buf.Set(l.usedBit[v])
		}
		for _, s := range k.Sources {
			buf.Set(l.usedBit[s.Base()])
		}
	case ir.AssignAction:
		if v, ok := k.Dest.WriteDef(); ok {
			l.kill(buf, v)
		} else if v, ok := k.Dest.WriteUse(); ok {
			buf.Set(l.usedBit[v])
		}
		buf.Set(l.usedBit[k.Source.Base()])
	case ir.UseAction:
		buf.Set(l.usedBit[k.Path.Base()])
	case ir.DropAction:
		buf.Set(l.dropBit[k.Path.Base()])
	case ir.SkolemizedEndAction:
		buf.Set(l.regionBit[k.Region])
	default:
		// ConstraintAction, StorageDeadAction, NoopAction: no liveness effect.
	}
}

// simulateBlock runs node's actions backward, seeding buf from the
// union of every successor's stored entry bits, invoking callback (if
// non-nil) with the live set on entry to each action and the
// terminator, and leaves buf holding the block's own entry bits.
func (l *Liveness) simulateBlock(node int, buf bitset.Buf, callback func(ir.Point, *ir.Action, bitset.Slice)) {
	buf.Clear()
	for _, succ := range l.env.Graph.Successors(node) {
		buf.UnionFrom(l.bits.Bits(succ))
	}

	blockName := l.env.Graph.BlockName(node)
	actions := l.env.Graph.Actions(node)

	if callback != nil {
		callback(ir.Point{Block: blockName, Action: len(actions)}, nil, buf.AsSlice())
	}
	for i := len(actions) - 1; i >= 0; i-- {
		l.transfer(buf, actions[i])
		if callback != nil {
			callback(ir.Point{Block: blockName, Action: i}, &actions[i], buf.AsSlice())
		}
	}
}

func (l *Liveness) compute() {
	buf := l.bits.EmptyBuf()
	changed := true
	for changed {
		changed = false
		for i := len(l.env.RPO) - 1; i >= 0; i-- {
			node := l.env.RPO[i]
			l.simulateBlock(node, buf, nil)
			if l.bits.SetFromIfChanged(node, buf.AsSlice()) {
				changed = true
			}
		}
	}
}

// Walk re-runs the settled dataflow once more, invoking callback with
// the live set on entry to every action (and the terminator) of every
// block, in an unspecified order.
func (l *Liveness) Walk(callback func(ir.Point, *ir.Action, bitset.Slice)) {
	buf := l.bits.EmptyBuf()
	for _, node := range l.env.RPO {
		l.simulateBlock(node, buf, callback)
	}
}

// VarLiveOnEntry reports whether v is live (for either a future read or
// a future drop) on entry to node.
func (l *Liveness) VarLiveOnEntry(v ir.Variable, node int) bool {
	bits := l.bits.Bits(node)
	return bits.Get(l.usedBit[v]) || bits.Get(l.dropBit[v])
}

// RegionLiveOnEntry reports whether r is among the derived live regions
// on entry to node.
func (l *Liveness) RegionLiveOnEntry(r ir.RegionName, node int) (bool, error) {
	live, err := l.LiveRegionsAt(node)
	if err != nil {
		return false, err
	}
	for _, x := range live {
		if x == r {
			return true, nil
		}
	}
	return false, nil
}

// LiveRegionsAt derives the set of free regions live on entry to node
// from the settled Used/Drop/FreeRegion bits: a live Used(v) contributes
// every region reachable by walking v's type; a live Drop(v) contributes
// the same walk with the may_dangle mask applied; a live FreeRegion(r)
// contributes r directly.
func (l *Liveness) LiveRegionsAt(node int) ([]ir.RegionName, error) {
	return l.liveRegionsFromBits(l.bits.Bits(node), true)
}

// WalkLiveVariableRegions invokes callback with the free regions live
// at every point (entry to each action and the terminator) of every
// block, replaying the settled dataflow point by point the way Walk
// does. This is the seed infer.Populate grows a region's value from:
// seeding only at block entry (node granularity) would miss every
// region a variable needs mid-block, so the minimal inferred value
// depends on this point-level replay, not the coarser per-block query
// above.
//
// Unlike LiveRegionsAt, this excludes the FreeRegion bit itself: that
// bit tracks whether a region's own skolemized end is reachable, which
// is exactly what the inference cap already certifies, not a liveness
// fact about the variables that carry the region. Feeding it into
// Populate's seed would make a region's inferred value span every
// point from which its own end is reachable -- in practice almost the
// entire function for a single-region straight-line or loop body --
// which keeps loans alive long after a variable's last use and
// produces borrow-check false positives. RegionLiveOnEntry (the
// `'r live_at b` / `'r not_live_at b` assertion forms) still wants the
// FreeRegion bit, since those assertions ask a reachability question,
// not a "what does the inferred value contain" question.
func (l *Liveness) WalkLiveVariableRegions(callback func(ir.Point, []ir.RegionName)) error {
	var walkErr error
	l.Walk(func(p ir.Point, _ *ir.Action, bits bitset.Slice) {
		if walkErr != nil {
			return
		}
		regions, err := l.liveRegionsFromBits(bits, false)
		if err != nil {
			walkErr = err
			return
		}
		callback(p, regions)
	})
	return walkErr
}

func (l *Liveness) liveRegionsFromBits(bits bitset.Slice, includeFreeRegionBit bool) ([]ir.RegionName, error) {
	seen := map[ir.RegionName]bool{}
	var out []ir.RegionName
	add := func(r ir.RegionName) {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}

	for v, b := range l.usedBit {
		if !bits.Get(b) {
			continue
		}
		ty, err := l.env.VarTy(v)
		if err != nil {
			return nil, err
		}
		ir.WalkRegions(ty, add)
	}
	for v, b := range l.dropBit {
		if !bits.Get(b) {
			continue
		}
		ty, err := l.env.VarTy(v)
		if err != nil {
			return nil, err
		}
		if err := l.walkDropRegions(ty, add); err != nil {
			return nil, err
		}
	}
	if includeFreeRegionBit {
		for r, b := range l.regionBit {
			if bits.Get(b) {
				add(r)
			}
		}
	}
	return out, nil
}

// walkDropRegions walks ty the way WalkRegions does, but entirely skips
// any struct parameter marked may_dangle, along with everything
// reachable through it: the destructor is guaranteed never to access
// that parameter's value, so none of it needs to be kept live purely
// to satisfy a drop.
func (l *Liveness) walkDropRegions(ty ir.Type, yield func(ir.RegionName)) error {
	switch t := ty.(type) {
	case ir.UnitType:
		return nil
	case ir.RefType:
		if !t.Region.IsBound() {
			yield(t.Region.Name())
		}
		return l.walkDropRegions(t.Referent, yield)
	case ir.StructType:
		decl, err := l.env.StructDecl(t.Name)
		if err != nil {
			return err
		}
		for i, p := range t.Params {
			param := decl.Parameters[i]
			if param.MayDangle {
				// The destructor is guaranteed never to touch this
				// parameter's value, so nothing reachable through it --
				// including its own region, if it has one -- is kept
				// live purely to satisfy the drop.
				continue
			}
			if p.IsRegion() {
				if !p.Region.IsBound() {
					yield(p.Region.Name())
				}
			} else {
				ir.WalkRegions(p.Ty, yield)
			}
		}
		return nil
	default:
		return nil
	}
}
