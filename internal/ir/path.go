package ir

import "strings"

// Path is a projection chain rooted at a variable: either the bare
// variable itself, or an extension of a shorter path by one field (the
// distinguished DerefField denotes a dereference). Paths form a small
// immutable tree, so plain pointers are the natural representation --
// there is no ownership cycle here for an interner to help with.
type Path struct {
	parent *Path
	base   Variable
	field  FieldName
}

// NewVar constructs the bare-variable path for v.
func NewVar(v Variable) *Path {
	return &Path{base: v}
}

// Extend returns the path formed by projecting p through field f.
func (p *Path) Extend(f FieldName) *Path {
	return &Path{parent: p, field: f}
}

// IsBase reports whether p is a bare variable (no projection).
func (p *Path) IsBase() bool {
	return p.parent == nil
}

// Base returns the variable this path is rooted at.
func (p *Path) Base() Variable {
	cur := p
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur.base
}

// Field returns the field this path was extended by. Panics if p is a
// base path.
func (p *Path) Field() FieldName {
	if p.IsBase() {
		panic("ir: Field() of a base path")
	}
	return p.field
}

// Parent returns the path this one extends. Panics if p is a base path.
func (p *Path) Parent() *Path {
	if p.IsBase() {
		panic("ir: Parent() of a base path")
	}
	return p.parent
}

// Prefixes returns p and every path it extends, longest first (p comes
// first, the bare variable comes last).
func (p *Path) Prefixes() []*Path {
	var out []*Path
	for cur := p; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	return out
}

// Equal reports whether p and o denote the same projection chain.
func (p *Path) Equal(o *Path) bool {
	if p == o {
		return true
	}
	if p == nil || o == nil {
		return false
	}
	if p.IsBase() != o.IsBase() {
		return false
	}
	if p.IsBase() {
		return p.base == o.base
	}
	return p.field == o.field && p.parent.Equal(o.parent)
}

// WriteDef returns (v, true) when p is a bare variable, signalling a
// full redefinition of v rather than a read of its prior value.
func (p *Path) WriteDef() (Variable, bool) {
	if p.IsBase() {
		return p.base, true
	}
	return "", false
}

// WriteUse returns (v, true) when p is a projection, signalling that
// writing to p also reads v (its base) as part of addressing into it.
func (p *Path) WriteUse() (Variable, bool) {
	if p.IsBase() {
		return "", false
	}
	return p.Base(), true
}

func (p *Path) String() string {
	if p.IsBase() {
		return string(p.base)
	}
	var b strings.Builder
	b.WriteString(p.parent.String())
	if p.field.IsDeref() {
		b.WriteString(".*")
	} else {
		b.WriteByte('.')
		b.WriteString(string(p.field))
	}
	return b.String()
}
