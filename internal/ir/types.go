package ir

import "fmt"

// Type is the tagged union of type forms the analysis relates. Concrete
// cases are UnitType, RefType, StructType, and BoundType.
type Type interface {
	isType()
}

// UnitType is the trivial unit type, carrying no regions.
type UnitType struct{}

func (UnitType) isType() {}

// RefType is a reference with a region, a borrow kind, and a referent
// type.
type RefType struct {
	Region   Region
	Kind     BorrowKind
	Referent Type
}

func (RefType) isType() {}

// StructType instantiates a declared struct with concrete region/type
// parameters.
type StructType struct {
	Name   StructName
	Params []TypeParam
}

func (StructType) isType() {}

// BoundType is an unsubstituted generic type placeholder; it must never
// reach the relation or liveness logic un-substituted.
type BoundType struct {
	Depth int
}

func (BoundType) isType() {}

// TypeParam is one substituted struct parameter: either a region or a
// type, never both.
type TypeParam struct {
	Region Region
	Ty     Type
}

// RegionParam constructs a region-kinded parameter.
func RegionParam(r Region) TypeParam { return TypeParam{Region: r} }

// TypeParamTy constructs a type-kinded parameter.
func TypeParamTy(t Type) TypeParam { return TypeParam{Ty: t} }

// IsRegion reports whether this parameter carries a region rather than
// a type.
func (p TypeParam) IsRegion() bool { return p.Ty == nil }

func (p TypeParam) String() string {
	if p.IsRegion() {
		return p.Region.String()
	}
	return fmt.Sprintf("%v", p.Ty)
}

// StructParameter declares one parameter slot of a struct: its kind,
// its declared variance, and whether values under it may be dangling
// references at drop time.
type StructParameter struct {
	Kind      Kind
	Variance  Variance
	MayDangle bool
}

// FieldDecl declares one field of a struct, with its type expressed in
// terms of the struct's own (unsubstituted) parameters.
type FieldDecl struct {
	Name FieldName
	Ty   Type
}

// StructDecl declares a struct type: its parameter slots and its
// fields.
type StructDecl struct {
	Name       StructName
	Parameters []StructParameter
	Fields     []FieldDecl
}

// FieldByName looks up a field declaration by name.
func (d *StructDecl) FieldByName(name FieldName) (FieldDecl, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDecl{}, false
}

// SubstParam substitutes de Bruijn-indexed bound regions/types in p
// using params, where params[len(params)-1-depth] is the depth-th
// bound slot (innermost-first addressing, so index 0 is the innermost
// binder).
func SubstParam(p TypeParam, params []TypeParam) TypeParam {
	if p.IsRegion() {
		return RegionParam(SubstRegion(p.Region, params))
	}
	return TypeParamTy(SubstType(p.Ty, params))
}

// SubstRegion substitutes a bound region reference using params; a
// free region is returned unchanged.
func SubstRegion(r Region, params []TypeParam) Region {
	if !r.IsBound() {
		return r
	}
	idx := len(params) - 1 - r.Depth()
	if idx < 0 || idx >= len(params) {
		panic("ir: bound region depth out of range during substitution")
	}
	slot := params[idx]
	if !slot.IsRegion() {
		panic("ir: substituting a type parameter into a region position")
	}
	return slot.Region
}

// SubstType substitutes every bound type/region in t using params; free
// regions and already-concrete types are returned unchanged.
func SubstType(t Type, params []TypeParam) Type {
	switch v := t.(type) {
	case UnitType:
		return v
	case RefType:
		return RefType{
			Region:   SubstRegion(v.Region, params),
			Kind:     v.Kind,
			Referent: SubstType(v.Referent, params),
		}
	case StructType:
		substituted := make([]TypeParam, len(v.Params))
		for i, p := range v.Params {
			substituted[i] = SubstParam(p, params)
		}
		return StructType{Name: v.Name, Params: substituted}
	case BoundType:
		idx := len(params) - 1 - v.Depth
		if idx < 0 || idx >= len(params) {
			panic("ir: bound type depth out of range during substitution")
		}
		slot := params[idx]
		if slot.IsRegion() {
			panic("ir: substituting a region parameter into a type position")
		}
		return slot.Ty
	default:
		panic(fmt.Sprintf("ir: unknown Type case %T", t))
	}
}

// WalkRegions calls yield for every free region reachable by structurally
// descending into t. It panics on an unsubstituted BoundType, since by
// the time liveness or inference walks a variable's type every bound
// parameter must already have been substituted away.
func WalkRegions(t Type, yield func(RegionName)) {
	switch v := t.(type) {
	case UnitType:
	case RefType:
		if v.Region.IsBound() {
			panic("ir: WalkRegions encountered an unsubstituted bound region")
		}
		yield(v.Region.Name())
		WalkRegions(v.Referent, yield)
	case StructType:
		for _, p := range v.Params {
			if p.IsRegion() {
				if p.Region.IsBound() {
					panic("ir: WalkRegions encountered an unsubstituted bound region")
				}
				yield(p.Region.Name())
			} else {
				WalkRegions(p.Ty, yield)
			}
		}
	case BoundType:
		panic("ir: WalkRegions encountered an unsubstituted bound type")
	default:
		panic(fmt.Sprintf("ir: unknown Type case %T", t))
	}
}
