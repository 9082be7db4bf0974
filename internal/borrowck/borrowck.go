// Package borrowck evaluates the per-action access rules (deep-read,
// deep-write, shallow-write, drop, storage-dead) against the
// loans-in-scope walk, producing one error per conflicting access.
package borrowck

import (
	"fmt"

	"github.com/nikomatsakis/borrowck/internal/env"
	"github.com/nikomatsakis/borrowck/internal/ir"
	"github.com/nikomatsakis/borrowck/internal/loans"
)

// ErrorKind classifies why an access was rejected.
type ErrorKind int

const (
	ReadConflict ErrorKind = iota
	WriteConflict
	DropConflict
	StorageDeadConflict
)

func (k ErrorKind) String() string {
	switch k {
	case ReadConflict:
		return "read conflict"
	case WriteConflict:
		return "write conflict"
	case DropConflict:
		return "drop conflict"
	case StorageDeadConflict:
		return "storage-dead conflict"
	default:
		return "conflict"
	}
}

// Error reports one rejected access.
type Error struct {
	Kind      ErrorKind
	Point     ir.Point
	Path      *ir.Path
	Var       ir.Variable
	LoanPath  *ir.Path
	LoanPoint ir.Point
}

func (e *Error) Error() string {
	subject := ""
	if e.Path != nil {
		subject = e.Path.String()
	} else {
		subject = string(e.Var)
	}
	return fmt.Sprintf("%s at %s: %s is borrowed (as %s) at %s", e.Kind, e.Point, subject, e.LoanPath, e.LoanPoint)
}

type checker struct {
	env    *env.Environment
	point  ir.Point
	loans  []loans.Loan
	errors []*Error
}

// Check drives the loans-in-scope walk, evaluating each action's access
// rules and returning every rejected access found, in walk order.
func Check(e *env.Environment, ls *loans.LoansInScope) []*Error {
	c := &checker{env: e}
	ls.Walk(func(p ir.Point, a *ir.Action, active []loans.Loan) {
		c.point = p
		c.loans = active
		if a == nil {
			return
		}
		c.checkAction(*a)
	})
	return c.errors
}

func (c *checker) checkAction(a ir.Action) {
	switch k := a.Kind.(type) {
	case ir.InitAction:
		c.shallowWrite(k.Dest)
		for _, s := range k.Sources {
			c.deepRead(s)
		}
	case ir.AssignAction:
		c.shallowWrite(k.Dest)
		c.deepRead(k.Source)
	case ir.BorrowAction:
		c.shallowWrite(k.Dest)
		if k.Kind == ir.Shared {
			c.deepRead(k.Source)
		} else {
			c.deepWrite(k.Source)
		}
	case ir.UseAction:
		c.deepRead(k.Path)
	case ir.DropAction:
		c.dropCheck(k.Path)
	case ir.StorageDeadAction:
		c.storageDead(k.Var)
	}
}

func (c *checker) fail(kind ErrorKind, path *ir.Path, v ir.Variable, loan loans.Loan) {
	c.errors = append(c.errors, &Error{
		Kind:      kind,
		Point:     c.point,
		Path:      path,
		Var:       v,
		LoanPath:  loan.Path,
		LoanPoint: loan.Point,
	})
}

// intersects reports whether a loan on loanPath conflicts with an
// access to p: either p extends (or equals) the loan path, or p is one
// of the loan path's supporting prefixes.
func (c *checker) intersects(loanPath, p *ir.Path) bool {
	for _, prefix := range p.Prefixes() {
		if prefix.Equal(loanPath) {
			return true
		}
	}
	supporting, err := c.env.SupportingPrefixes(loanPath)
	if err != nil {
		return false
	}
	for _, s := range supporting {
		if s.Equal(p) {
			return true
		}
	}
	return false
}

// frozenByBorrowOf walks path toward its base, collecting every
// intermediate path, stopping once (and including) the first point
// where the parent's type is a reference: a write to the reference
// itself does not touch what it points to.
func (c *checker) frozenByBorrowOf(path *ir.Path) ([]*ir.Path, error) {
	var out []*ir.Path
	cur := path
	for {
		out = append(out, cur)
		if cur.IsBase() {
			return out, nil
		}
		parentTy, err := c.env.PathTy(cur.Parent())
		if err != nil {
			return nil, err
		}
		if _, ok := parentTy.(ir.RefType); ok {
			return out, nil
		}
		cur = cur.Parent()
	}
}

// freezes reports whether a loan on loanPath prevents p from being
// overwritten: either loanPath is a prefix of p, or p is among the
// paths frozen by a borrow of loanPath.
func (c *checker) freezes(loanPath, p *ir.Path) bool {
	for _, prefix := range p.Prefixes() {
		if prefix.Equal(loanPath) {
			return true
		}
	}
	frozen, err := c.frozenByBorrowOf(loanPath)
	if err != nil {
		return false
	}
	for _, f := range frozen {
		if f.Equal(p) {
			return true
		}
	}
	return false
}

func (c *checker) deepRead(p *ir.Path) {
	for _, l := range c.loans {
		if l.Kind == ir.Mut && c.intersects(l.Path, p) {
			c.fail(ReadConflict, p, "", l)
		}
	}
}

func (c *checker) deepWrite(p *ir.Path) {
	for _, l := range c.loans {
		if c.intersects(l.Path, p) {
			c.fail(WriteConflict, p, "", l)
		}
	}
}

func (c *checker) shallowWrite(p *ir.Path) {
	for _, l := range c.loans {
		if c.freezes(l.Path, p) {
			c.fail(WriteConflict, p, "", l)
		}
	}
}

func (c *checker) dropCheck(p *ir.Path) {
	for _, l := range c.loans {
		if !c.intersects(l.Path, p) {
			continue
		}
		dangle, err := c.mayDangle(l.Path, p)
		if err == nil && dangle {
			continue
		}
		c.fail(DropConflict, p, "", l)
	}
}

func (c *checker) storageDead(v ir.Variable) {
	base := ir.NewVar(v)
	for _, l := range c.loans {
		if c.freezes(l.Path, base) {
			c.fail(StorageDeadConflict, nil, v, l)
		}
	}
}
