// Package infer computes region variable values: one variable per
// declared free region, seeded by liveness and grown by outlives
// constraints propagated forward along control flow to a fixed point.
// Free regions are capped at creation (spec: each declared region maps
// to exactly one variable, with no anonymous inference-only variables),
// so any constraint that would grow one beyond its capped value is
// reported rather than silently applied.
package infer

import (
	"fmt"

	"github.com/nikomatsakis/borrowck/internal/env"
	"github.com/nikomatsakis/borrowck/internal/ir"
	"github.com/nikomatsakis/borrowck/internal/liveness"
)

// RegionVariable is an opaque handle into a Context's region variable
// table.
type RegionVariable int

type regionVarState struct {
	name ir.RegionName
	// points is the inferred value: minimal, seeded by liveness and
	// grown only by constraint propagation.
	points map[ir.Point]bool
	// ceiling is the declared cap: the maximal set points may ever
	// grow into. Not part of the value itself.
	ceiling map[ir.Point]bool
	capped  bool
}

type constraint struct {
	sup, sub RegionVariable
	point    ir.Point
}

// CapError reports that a capped region variable was forced to grow by
// a constraint it could not satisfy.
type CapError struct {
	Region ir.RegionName
	Point  ir.Point
}

func (e *CapError) Error() string {
	return fmt.Sprintf("region %s: required to extend to %s past its declared bound", e.Region, e.Point)
}

// Context holds the region variables and outlives constraints collected
// for one function, and solves them to a fixed point.
type Context struct {
	env     *env.Environment
	vars    []regionVarState
	byName  map[ir.RegionName]RegionVariable
	constraints []constraint
	errors  []error
}

// NewContext creates an empty inference context over e.
func NewContext(e *env.Environment) *Context {
	return &Context{env: e, byName: map[ir.RegionName]RegionVariable{}}
}

// AddVar registers a new region variable for name.
func (c *Context) AddVar(name ir.RegionName) RegionVariable {
	v := RegionVariable(len(c.vars))
	c.vars = append(c.vars, regionVarState{name: name, points: map[ir.Point]bool{}})
	c.byName[name] = v
	return v
}

// Lookup returns the region variable for a declared free region name.
func (c *Context) Lookup(name ir.RegionName) RegionVariable {
	v, ok := c.byName[name]
	if !ok {
		panic(fmt.Sprintf("infer: no region variable registered for %s", name))
	}
	return v
}

// Region returns v's current inferred point set.
func (c *Context) Region(v RegionVariable) map[ir.Point]bool {
	return c.vars[v].points
}

// Contains reports whether p is currently in v's inferred value.
func (c *Context) Contains(v RegionVariable, p ir.Point) bool {
	return c.vars[v].points[p]
}

// transitivelyOutlives returns every region name reachable from name by
// following `'a: 'b` (a outlives b) declared clauses, i.e. every region
// whose skolemized end must also lie within name's extent.
func transitivelyOutlives(name ir.RegionName, outlives []ir.OutlivesConstraint) []ir.RegionName {
	adj := map[ir.RegionName][]ir.RegionName{}
	for _, c := range outlives {
		adj[c.Sup] = append(adj[c.Sup], c.Sub)
	}
	seen := map[ir.RegionName]bool{}
	var out []ir.RegionName
	var dfs func(ir.RegionName)
	dfs = func(n ir.RegionName) {
		for _, m := range adj[n] {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
				dfs(m)
			}
		}
	}
	dfs(name)
	return out
}

// CapVar computes v's ceiling -- every program point in fn, plus its
// own skolemized-end point and the skolemized-end points of every
// region it transitively outlives -- and marks v capped: any later
// attempt to grow v's value past this ceiling is an error. The
// ceiling is a bound on the value, not the value itself; v's value
// starts empty and is seeded and grown separately.
func (c *Context) CapVar(v RegionVariable, fn *ir.Function) {
	name := c.vars[v].name
	ceiling := map[ir.Point]bool{}
	for _, b := range fn.Blocks {
		for i := 0; i <= len(b.Actions); i++ {
			ceiling[ir.Point{Block: b.Name, Action: i}] = true
		}
	}
	ceiling[ir.Point{Block: ir.SkolemizedEndBlockName(name), Action: 0}] = true
	for _, dep := range transitivelyOutlives(name, fn.Outlives) {
		ceiling[ir.Point{Block: ir.SkolemizedEndBlockName(dep), Action: 0}] = true
	}
	c.vars[v].ceiling = ceiling
	c.vars[v].capped = true
}

// AddLivePoint seeds v's value with p.
func (c *Context) AddLivePoint(v RegionVariable, p ir.Point) {
	c.addPointAt(v, p, p)
}

// AddOutlives records that, starting from p, sup must contain every
// point sub contains (propagated forward along control flow during
// Solve).
func (c *Context) AddOutlives(sup, sub RegionVariable, p ir.Point) {
	c.constraints = append(c.constraints, constraint{sup: sup, sub: sub, point: p})
}

func decrementPoint(p ir.Point) ir.Point {
	if p.Action == 0 {
		return p
	}
	return ir.Point{Block: p.Block, Action: p.Action - 1}
}

// addPointAt adds p to v's value. If v is capped and p lies outside
// its ceiling, it instead records a CapError at errPoint (decremented
// by one action, clamped at zero, since constraints are always tagged
// with the point *after* the action that produced them) and leaves v
// unchanged.
func (c *Context) addPointAt(v RegionVariable, p ir.Point, errPoint ir.Point) bool {
	state := &c.vars[v]
	if state.points[p] {
		return false
	}
	if state.capped && !state.ceiling[p] {
		c.errors = append(c.errors, &CapError{Region: state.name, Point: decrementPoint(errPoint)})
		return false
	}
	state.points[p] = true
	return true
}

// Populate seeds every declared free region's value from the derived
// live-variable-regions query at every program point -- not just block
// entry, since a variable can come alive or die mid-block -- and then
// walks every action in RPO order adding the population constraints
// the action implies.
func Populate(e *env.Environment, live *liveness.Liveness) (*Context, error) {
	ctx := NewContext(e)
	for _, r := range e.Fn.Regions {
		v := ctx.AddVar(r)
		ctx.CapVar(v, e.Fn)
	}

	realBlocks := map[ir.BlockName]bool{}
	for _, b := range e.Fn.Blocks {
		realBlocks[b.Name] = true
	}
	// Synthetic skolemized-end points are excluded from direct seeding:
	// a region reaching its own declared end is what the cap/ceiling
	// already certifies, not an additional liveness fact to seed.
	if err := live.WalkLiveVariableRegions(func(p ir.Point, regions []ir.RegionName) {
		if !realBlocks[p.Block] {
			return
		}
		for _, r := range regions {
			ctx.AddLivePoint(ctx.Lookup(r), p)
		}
	}); err != nil {
		return nil, err
	}

	for _, node := range e.RPO {
		blockName := e.Graph.BlockName(node)
		actions := e.Graph.Actions(node)
		for i, a := range actions {
			p := ir.Point{Block: blockName, Action: i}
			pPlus := ir.Point{Block: blockName, Action: i + 1}
			if err := populateAction(ctx, e, a, p, pPlus); err != nil {
				return nil, err
			}
		}
	}

	return ctx, nil
}

func populateAction(ctx *Context, e *env.Environment, a ir.Action, p, pPlus ir.Point) error {
	switch k := a.Kind.(type) {
	case ir.BorrowAction:
		sourceTy, err := e.PathTy(k.Source)
		if err != nil {
			return err
		}
		destTy, err := e.PathTy(k.Dest)
		if err != nil {
			return err
		}
		// A loan's own introduction point always lies in its region,
		// independent of whatever liveness later keeps it alive for.
		ctx.AddLivePoint(ctx.Lookup(k.Region), p)

		borrowedRefTy := ir.RefType{Region: ir.FreeRegion(k.Region), Kind: k.Kind, Referent: sourceTy}
		if err := relate(ctx, ir.Covariant, borrowedRefTy, destTy, pPlus); err != nil {
			return err
		}

		prefixes, err := e.SupportingPrefixes(k.Source)
		if err != nil {
			return err
		}
		for _, prefix := range prefixes {
			if prefix.IsBase() || !prefix.Field().IsDeref() {
				continue
			}
			parentTy, err := e.PathTy(prefix.Parent())
			if err != nil {
				return err
			}
			ref, ok := parentTy.(ir.RefType)
			if !ok || ref.Region.IsBound() {
				continue
			}
			ctx.AddOutlives(ctx.Lookup(ref.Region.Name()), ctx.Lookup(k.Region), pPlus)
		}

	case ir.AssignAction:
		sourceTy, err := e.PathTy(k.Source)
		if err != nil {
			return err
		}
		destTy, err := e.PathTy(k.Dest)
		if err != nil {
			return err
		}
		if err := relate(ctx, ir.Covariant, sourceTy, destTy, pPlus); err != nil {
			return err
		}

	case ir.ConstraintAction:
		// Tagged at pPlus, not p, so addPointAt's unconditional
		// decrement (correct for every other action kind) reports a
		// cap violation at the constraint's own point rather than one
		// action early.
		ctx.AddOutlives(ctx.Lookup(k.Constraint.Sup), ctx.Lookup(k.Constraint.Sub), pPlus)
	}
	return nil
}

// relate imposes variance-composed outlives constraints making sub a
// subtype of sup at point, per the structural type relation.
func relate(ctx *Context, variance ir.Variance, sub, sup ir.Type, point ir.Point) error {
	switch supT := sup.(type) {
	case ir.UnitType:
		if _, ok := sub.(ir.UnitType); !ok {
			return fmt.Errorf("infer: cannot relate %T to Unit", sub)
		}
		return nil
	case ir.RefType:
		subT, ok := sub.(ir.RefType)
		if !ok {
			return fmt.Errorf("infer: cannot relate %T to a reference type", sub)
		}
		if err := relateRegion(ctx, variance.Invert(), subT.Region, supT.Region, point); err != nil {
			return err
		}
		return relate(ctx, variance.Compose(supT.Kind.Variance()), subT.Referent, supT.Referent, point)
	case ir.StructType:
		subT, ok := sub.(ir.StructType)
		if !ok || subT.Name != supT.Name {
			return fmt.Errorf("infer: cannot relate %T to struct %s", sub, supT.Name)
		}
		decl, err := ctx.env.StructDecl(supT.Name)
		if err != nil {
			return err
		}
		for i := range supT.Params {
			paramVariance := variance.Compose(decl.Parameters[i].Variance)
			if supT.Params[i].IsRegion() {
				if err := relateRegion(ctx, paramVariance, subT.Params[i].Region, supT.Params[i].Region, point); err != nil {
					return err
				}
			} else {
				if err := relate(ctx, paramVariance, subT.Params[i].Ty, supT.Params[i].Ty, point); err != nil {
					return err
				}
			}
		}
		return nil
	case ir.BoundType:
		return fmt.Errorf("infer: encountered an unsubstituted bound type during relation")
	default:
		return fmt.Errorf("infer: unknown type case %T", sup)
	}
}

// relateRegion imposes the outlives constraints variance implies
// between a (the "sub" side) and b (the "sup" side): covariant adds
// a ⊆ b, contravariant adds a ⊇ b, invariant adds both.
func relateRegion(ctx *Context, variance ir.Variance, a, b ir.Region, point ir.Point) error {
	if a.IsBound() || b.IsBound() {
		return fmt.Errorf("infer: encountered an unsubstituted bound region during relation")
	}
	av, bv := ctx.Lookup(a.Name()), ctx.Lookup(b.Name())
	switch variance {
	case ir.Covariant:
		ctx.AddOutlives(bv, av, point)
	case ir.Contravariant:
		ctx.AddOutlives(av, bv, point)
	default:
		ctx.AddOutlives(bv, av, point)
		ctx.AddOutlives(av, bv, point)
	}
	return nil
}

// Solve propagates every recorded constraint to a fixed point and
// returns every accumulated cap violation. Relation errors are not
// accumulated here; Populate returns them directly.
func (c *Context) Solve(e *env.Environment) []error {
	changed := true
	for changed {
		changed = false
		for _, cons := range c.constraints {
			if c.propagate(e, cons) {
				changed = true
			}
		}
	}
	return c.errors
}

// propagate runs a DFS from cons.point forward along successor_points,
// following only points already present in sub's value, adding each to
// sup's value. When the DFS reaches a sink (no successors), it also
// adds the skolemized-end point of every declared free region to sup,
// matching the rule that flow reaching a true end of the function
// passes every region's extent.
func (c *Context) propagate(e *env.Environment, cons constraint) bool {
	changedAny := false
	visited := map[ir.Point]bool{}
	var dfs func(ir.Point)
	dfs = func(p ir.Point) {
		if visited[p] {
			return
		}
		visited[p] = true
		if !c.Contains(cons.sub, p) {
			return
		}
		if c.addPointAt(cons.sup, p, cons.point) {
			changedAny = true
		}
		succs := e.SuccessorPoints(p)
		if len(succs) == 0 {
			for _, r := range e.Fn.Regions {
				end := ir.Point{Block: ir.SkolemizedEndBlockName(r), Action: 0}
				if c.addPointAt(cons.sup, end, cons.point) {
					changedAny = true
				}
			}
			return
		}
		for _, s := range succs {
			dfs(s)
		}
	}
	dfs(cons.point)
	return changedAny
}
