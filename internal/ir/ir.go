// Package ir defines the data model for the analyzed program: variables,
// regions, paths, types, struct declarations, actions, and assertions.
// The tagged unions (Type, ActionKind, Assertion) follow the interface
// plus type-switch idiom the pack uses for go/types-shaped values rather
// than a single discriminated struct, matching the newtype-ID and
// iota-enum conventions seen in the corpus's own borrow-tracking code.
package ir

import "fmt"

// Variable names a declared local variable.
type Variable string

// RegionName names a declared free region.
type RegionName string

// FieldName names a struct field, or the distinguished dereference
// pseudo-field.
type FieldName string

// DerefField is the field name used for path extensions that dereference
// a reference-typed path (written `*` in surface syntax).
const DerefField FieldName = "*"

// IsDeref reports whether f denotes a dereference rather than a named
// field.
func (f FieldName) IsDeref() bool { return f == DerefField }

// StructName names a declared struct type.
type StructName string

// BlockName names a basic block.
type BlockName string

// StartBlock is the name every function's entry block must carry.
const StartBlock BlockName = "START"

// Kind distinguishes region parameters from type parameters on a struct.
type Kind int

const (
	KindRegion Kind = iota
	KindType
)

// Variance classifies how a type parameter's substitution affects
// subtyping of the enclosing type.
type Variance int

const (
	Covariant Variance = iota
	Contravariant
	Invariant
)

// Invert flips covariant and contravariant; invariant is a fixed point.
func (v Variance) Invert() Variance {
	switch v {
	case Covariant:
		return Contravariant
	case Contravariant:
		return Covariant
	default:
		return Invariant
	}
}

// Compose combines an outer variance with an inner one, the way variance
// composes across a nested type position (e.g. a struct field inside a
// reference referent).
func (v Variance) Compose(inner Variance) Variance {
	if v == Invariant || inner == Invariant {
		return Invariant
	}
	if v == inner {
		return Covariant
	}
	return Contravariant
}

func (v Variance) String() string {
	switch v {
	case Covariant:
		return "co"
	case Contravariant:
		return "contra"
	default:
		return "invariant"
	}
}

// BorrowKind distinguishes shared from mutable borrows.
type BorrowKind int

const (
	Shared BorrowKind = iota
	Mut
)

// Variance returns the variance a borrow of this kind imposes on its
// referent: a shared borrow lets the referent vary covariantly (a copy
// could always be taken), a mutable borrow requires invariance.
func (k BorrowKind) Variance() Variance {
	if k == Shared {
		return Covariant
	}
	return Invariant
}

func (k BorrowKind) String() string {
	if k == Shared {
		return "shared"
	}
	return "mut"
}

// Region is either a free (named) region or a bound (unsubstituted,
// de-Bruijn-indexed) region parameter placeholder.
type Region struct {
	bound bool
	name  RegionName
	depth int
}

// FreeRegion constructs a named, free region.
func FreeRegion(name RegionName) Region { return Region{name: name} }

// BoundRegion constructs an unsubstituted bound region placeholder at
// the given de Bruijn depth.
func BoundRegion(depth int) Region { return Region{bound: true, depth: depth} }

// IsBound reports whether this is an unsubstituted placeholder.
func (r Region) IsBound() bool { return r.bound }

// Name returns the free region's name. Panics if the region is bound.
func (r Region) Name() RegionName {
	if r.bound {
		panic("ir: Name() of a bound region")
	}
	return r.name
}

// Depth returns the bound region's de Bruijn depth. Panics if the
// region is free.
func (r Region) Depth() int {
	if !r.bound {
		panic("ir: Depth() of a free region")
	}
	return r.depth
}

func (r Region) String() string {
	if r.bound {
		return fmt.Sprintf("^%d", r.depth)
	}
	return string(r.name)
}
