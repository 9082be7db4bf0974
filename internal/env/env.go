// Package env bundles the memoized graph views (reverse post-order,
// dominators, reachability, loop tree) and the path/type resolution
// queries every downstream pass (liveness, inference, loans, borrowck)
// reads against a single analyzed function. Grounded on the teacher's
// model.go, which bundles several precomputed views behind one struct
// the rest of the pipeline treats as read-only.
package env

import (
	"fmt"

	"github.com/nikomatsakis/borrowck/internal/funcgraph"
	"github.com/nikomatsakis/borrowck/internal/graph"
	"github.com/nikomatsakis/borrowck/internal/ir"
)

// Environment is the read-only context shared by every analysis pass
// over one function.
type Environment struct {
	Fn         *ir.Function
	Graph      *funcgraph.FuncGraph
	RPO        []int
	Dominators *graph.Dominators
	DomTree    *graph.DominatorTree
	Reach      *graph.Reachability
	LoopTree   *graph.LoopTree

	varDecls    map[ir.Variable]ir.Type
	structDecls map[ir.StructName]*ir.StructDecl
}

// New builds the Environment for fn, running every graph pass once.
func New(fn *ir.Function) (*Environment, error) {
	fg, err := funcgraph.Build(fn)
	if err != nil {
		return nil, err
	}

	rpo := graph.ReversePostOrder(fg, fg.StartNode())
	dom := graph.ComputeDominatorsFromRPO(fg, rpo)
	domTree := dom.DominatorTree()
	reach := graph.ComputeReachability(fg)
	loopTree, err := graph.ComputeLoopTree(fg, dom)
	if err != nil {
		return nil, err
	}

	varDecls := make(map[ir.Variable]ir.Type, len(fn.Decls))
	for _, d := range fn.Decls {
		varDecls[d.Var] = d.Ty
	}
	structDecls := make(map[ir.StructName]*ir.StructDecl, len(fn.Structs))
	for i := range fn.Structs {
		structDecls[fn.Structs[i].Name] = &fn.Structs[i]
	}

	return &Environment{
		Fn:          fn,
		Graph:       fg,
		RPO:         rpo,
		Dominators:  dom,
		DomTree:     domTree,
		Reach:       reach,
		LoopTree:    loopTree,
		varDecls:    varDecls,
		structDecls: structDecls,
	}, nil
}

// StartPoint returns block b's entry point.
func (e *Environment) StartPoint(b ir.BlockName) ir.Point {
	return ir.Point{Block: b, Action: 0}
}

// EndPoint returns block b's terminator point.
func (e *Environment) EndPoint(b ir.BlockName) ir.Point {
	idx, ok := e.Graph.IndexOf(b)
	if !ok {
		panic(fmt.Sprintf("env: EndPoint of undeclared block %s", b))
	}
	return ir.Point{Block: b, Action: len(e.Graph.Actions(idx))}
}

// SuccessorPoints returns the points immediately reachable from p: the
// next action in the same block if p is not yet the terminator, or
// otherwise the start points of every CFG successor block.
func (e *Environment) SuccessorPoints(p ir.Point) []ir.Point {
	idx, ok := e.Graph.IndexOf(p.Block)
	if !ok {
		panic(fmt.Sprintf("env: SuccessorPoints of undeclared block %s", p.Block))
	}
	if p.Action < len(e.Graph.Actions(idx)) {
		return []ir.Point{{Block: p.Block, Action: p.Action + 1}}
	}
	succs := e.Graph.Successors(idx)
	out := make([]ir.Point, len(succs))
	for i, s := range succs {
		out[i] = e.StartPoint(e.Graph.BlockName(s))
	}
	return out
}

// VarTy returns v's declared type.
func (e *Environment) VarTy(v ir.Variable) (ir.Type, error) {
	ty, ok := e.varDecls[v]
	if !ok {
		return nil, fmt.Errorf("env: undeclared variable %s", v)
	}
	return ty, nil
}

// StructDecl looks up a struct declaration by name.
func (e *Environment) StructDecl(name ir.StructName) (*ir.StructDecl, error) {
	d, ok := e.structDecls[name]
	if !ok {
		return nil, fmt.Errorf("env: undeclared struct %s", name)
	}
	return d, nil
}

// PathTy resolves the type of a path by recursively resolving its
// parent's type and then projecting through the final field.
func (e *Environment) PathTy(p *ir.Path) (ir.Type, error) {
	if p.IsBase() {
		return e.VarTy(p.Base())
	}
	parentTy, err := e.PathTy(p.Parent())
	if err != nil {
		return nil, err
	}
	return e.FieldTy(parentTy, p.Field())
}

// FieldTy projects baseTy through field f: dereferencing a reference's
// DerefField yields its referent; projecting a named field of a struct
// yields that field's declared type, substituted with the struct's
// concrete parameters.
func (e *Environment) FieldTy(baseTy ir.Type, f ir.FieldName) (ir.Type, error) {
	switch t := baseTy.(type) {
	case ir.RefType:
		if !f.IsDeref() {
			return nil, fmt.Errorf("env: field %q projected from a reference type, expected a dereference", f)
		}
		return t.Referent, nil
	case ir.StructType:
		if f.IsDeref() {
			return nil, fmt.Errorf("env: dereference projected from struct type %s", t.Name)
		}
		decl, err := e.StructDecl(t.Name)
		if err != nil {
			return nil, err
		}
		field, ok := decl.FieldByName(f)
		if !ok {
			return nil, fmt.Errorf("env: struct %s has no field %q", t.Name, f)
		}
		return ir.SubstType(field.Ty, t.Params), nil
	default:
		return nil, fmt.Errorf("env: cannot project field %q from type %T", f, baseTy)
	}
}

// SupportingPrefixes returns the prefixes of path that must remain
// valid for path itself to remain valid. Recursion stops once it has
// included the dereference of a *shared* reference (a copy could
// always be taken of what it points to); it continues past the
// dereference of a *mutable* reference, and always continues past a
// struct field projection.
func (e *Environment) SupportingPrefixes(path *ir.Path) ([]*ir.Path, error) {
	var out []*ir.Path
	cur := path
	for {
		out = append(out, cur)
		if cur.IsBase() {
			return out, nil
		}
		parentTy, err := e.PathTy(cur.Parent())
		if err != nil {
			return nil, err
		}
		if ref, ok := parentTy.(ir.RefType); ok && cur.Field().IsDeref() {
			if ref.Kind == ir.Shared {
				return out, nil
			}
			cur = cur.Parent()
			continue
		}
		// Struct projection (or any other extension): always continue.
		cur = cur.Parent()
	}
}
