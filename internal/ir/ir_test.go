package ir

import "testing"

func TestVarianceComposeAndInvert(t *testing.T) {
	if Covariant.Invert() != Contravariant {
		t.Fatal("co should invert to contra")
	}
	if Invariant.Invert() != Invariant {
		t.Fatal("invariant should invert to itself")
	}
	if Covariant.Compose(Contravariant) != Contravariant {
		t.Fatal("co composed with contra should be contra")
	}
	if Contravariant.Compose(Contravariant) != Covariant {
		t.Fatal("contra composed with contra should be co")
	}
	if Invariant.Compose(Covariant) != Invariant {
		t.Fatal("invariant composed with anything is invariant")
	}
}

func TestPathPrefixesAndEquality(t *testing.T) {
	a := NewVar("a")
	deref := a.Extend(DerefField)
	field := deref.Extend("f")

	prefixes := field.Prefixes()
	if len(prefixes) != 3 {
		t.Fatalf("expected 3 prefixes, got %d", len(prefixes))
	}
	if !prefixes[0].Equal(field) || !prefixes[2].Equal(a) {
		t.Fatal("expected longest-first ordering ending at the base variable")
	}

	other := NewVar("a").Extend(DerefField).Extend("f")
	if !field.Equal(other) {
		t.Fatal("structurally identical paths built independently should be equal")
	}

	differentField := deref.Extend("g")
	if field.Equal(differentField) {
		t.Fatal("paths differing in their final field must not be equal")
	}
}

func TestPathWriteDefAndUse(t *testing.T) {
	base := NewVar("x")
	if v, ok := base.WriteDef(); !ok || v != "x" {
		t.Fatal("a bare variable path should be a write-def")
	}
	if _, ok := base.WriteUse(); ok {
		t.Fatal("a bare variable path is not a write-use")
	}

	proj := base.Extend("f")
	if _, ok := proj.WriteDef(); ok {
		t.Fatal("a projected path should not be a write-def")
	}
	if v, ok := proj.WriteUse(); !ok || v != "x" {
		t.Fatal("a projected path should be a write-use of its base")
	}
}

func TestSubstTypeSubstitutesBoundRegionAndType(t *testing.T) {
	// struct Decl<'a, T> { field: Ref('a, shared, T) }
	// instantiated with params = ['x, Unit]
	declaredFieldTy := RefType{Region: BoundRegion(1), Kind: Shared, Referent: BoundType{Depth: 0}}
	params := []TypeParam{RegionParam(FreeRegion("x")), TypeParamTy(UnitType{})}

	got := SubstType(declaredFieldTy, params)
	ref, ok := got.(RefType)
	if !ok {
		t.Fatalf("expected RefType, got %T", got)
	}
	if ref.Region.IsBound() || ref.Region.Name() != "x" {
		t.Fatalf("expected region 'x substituted in, got %v", ref.Region)
	}
	if _, ok := ref.Referent.(UnitType); !ok {
		t.Fatalf("expected Unit referent substituted in, got %T", ref.Referent)
	}
}

func TestWalkRegionsCollectsFreeRegionsOnly(t *testing.T) {
	ty := StructType{
		Name: "Pair",
		Params: []TypeParam{
			RegionParam(FreeRegion("a")),
			TypeParamTy(RefType{Region: FreeRegion("b"), Kind: Mut, Referent: UnitType{}}),
		},
	}
	var seen []RegionName
	WalkRegions(ty, func(r RegionName) { seen = append(seen, r) })
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("expected [a b], got %v", seen)
	}
}

func TestWalkRegionsPanicsOnUnsubstitutedBound(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on an unsubstituted bound type")
		}
	}()
	WalkRegions(BoundType{Depth: 0}, func(RegionName) {})
}
