package borrowck

import "github.com/nikomatsakis/borrowck/internal/ir"

// mayDangle reports whether a loan on path q may dangle with respect to
// the value being dropped at path p: that is, whether q reaches p only
// through a chain of struct projections that are all marked
// may_dangle, down to the nearest dereference below p.
//
// The rule considers only the single deref closest to p (the shallowest
// one in q's prefix chain below p); every struct hop between p and that
// deref must have its relevant parameter (identified by the bound
// depth the field's declared type carries) marked may_dangle in that
// hop's own struct declaration. A hop whose declared field type carries
// no bound placeholder at all is not generic over anything the
// destructor could be masked from, so it does not participate in (and
// cannot defeat) the may_dangle chain.
//
// Multi-hop resolution (more than one struct projection between p and
// the nearest deref) is this implementation's own extrapolation beyond
// the spec's single worked example: each hop is resolved independently
// against its own struct declaration rather than threading one
// parameter through every hop. See DESIGN.md.
func (c *checker) mayDangle(q, p *ir.Path) (bool, error) {
	prefixes := q.Prefixes() // q, ..., base (longest first)

	// Find the shallowest dereference in q's chain -- the last one
	// walking from q down toward the base, i.e. the first one
	// encountered walking from the base upward.
	derefIdx := -1
	for i := len(prefixes) - 1; i >= 0; i-- {
		if !prefixes[i].IsBase() && prefixes[i].Field().IsDeref() {
			derefIdx = i
			break
		}
	}
	if derefIdx == -1 {
		return false, nil
	}
	loc := prefixes[derefIdx].Parent()

	locTy, err := c.env.PathTy(loc)
	if err != nil {
		return false, err
	}
	if _, ok := locTy.(ir.RefType); !ok {
		return false, nil
	}

	// Find p's position in the prefix chain; p must be a strict
	// ancestor (further from q) of loc for there to be any struct hops
	// to check.
	pIdx := -1
	for i, prefix := range prefixes {
		if prefix.Equal(p) {
			pIdx = i
			break
		}
	}
	if pIdx == -1 || pIdx <= derefIdx {
		return false, nil
	}
	if prefixes[pIdx].Equal(loc) {
		return false, nil
	}

	// Walk each struct hop from p down to loc, loc included: each hop is
	// judged by its field's declaration in its parent struct, so loc's
	// hop checks the parameter of the struct that contains loc.
	for i := pIdx - 1; i >= derefIdx; i-- {
		hop := prefixes[i]
		if hop.IsBase() || hop.Field().IsDeref() {
			continue
		}
		parentTy, err := c.env.PathTy(hop.Parent())
		if err != nil {
			return false, err
		}
		structTy, ok := parentTy.(ir.StructType)
		if !ok {
			continue
		}
		decl, err := c.env.StructDecl(structTy.Name)
		if err != nil {
			return false, err
		}
		field, ok := decl.FieldByName(hop.Field())
		if !ok {
			return false, err
		}
		depth, ok := boundDepthOf(field.Ty)
		if !ok {
			continue
		}
		paramIdx := len(decl.Parameters) - 1 - depth
		if paramIdx < 0 || paramIdx >= len(decl.Parameters) {
			continue
		}
		if !decl.Parameters[paramIdx].MayDangle {
			return false, nil
		}
	}

	return true, nil
}

// boundDepthOf extracts the de Bruijn depth of an unsubstituted bound
// placeholder directly present in ty, either as the type itself or as
// the region of a reference type.
func boundDepthOf(ty ir.Type) (int, bool) {
	switch t := ty.(type) {
	case ir.BoundType:
		return t.Depth, true
	case ir.RefType:
		if t.Region.IsBound() {
			return t.Region.Depth(), true
		}
	}
	return 0, false
}
