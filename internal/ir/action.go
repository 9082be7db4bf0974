package ir

import "fmt"

// ActionKind is the tagged union of statement forms a basic block's
// actions carry.
type ActionKind interface {
	isAction()
}

// InitAction initializes Dest from the given Sources (e.g. a struct
// literal or tuple construction reading several paths at once).
type InitAction struct {
	Dest    *Path
	Sources []*Path
}

func (InitAction) isAction() {}

// BorrowAction creates a loan of Source, tagged with Region and Kind,
// and stores a reference to it in Dest.
type BorrowAction struct {
	Dest   *Path
	Region RegionName
	Kind   BorrowKind
	Source *Path
}

func (BorrowAction) isAction() {}

// AssignAction copies Source into Dest.
type AssignAction struct {
	Dest   *Path
	Source *Path
}

func (AssignAction) isAction() {}

// ConstraintAction asserts a direct outlives relationship between two
// regions at this program point.
type ConstraintAction struct {
	Constraint OutlivesConstraint
}

func (ConstraintAction) isAction() {}

// UseAction reads Path without modifying it.
type UseAction struct {
	Path *Path
}

func (UseAction) isAction() {}

// DropAction runs Path's destructor.
type DropAction struct {
	Path *Path
}

func (DropAction) isAction() {}

// StorageDeadAction ends Var's storage, the point beyond which no
// access to it (or anything it owns) is permitted.
type StorageDeadAction struct {
	Var Variable
}

func (StorageDeadAction) isAction() {}

// SkolemizedEndAction is the sole action of a synthetic skolemized-end
// block, marking the end of Region.
type SkolemizedEndAction struct {
	Region RegionName
}

func (SkolemizedEndAction) isAction() {}

// NoopAction has no dataflow effect.
type NoopAction struct{}

func (NoopAction) isAction() {}

// OutlivesConstraint states that Sup outlives Sub: Sup's region value
// must be a superset of Sub's.
type OutlivesConstraint struct {
	Sup RegionName
	Sub RegionName
}

// Action is one statement in a basic block, paired with an optional
// expected-error marker parsed from a `//~ERROR` annotation.
type Action struct {
	Kind        ActionKind
	ExpectError *string
}

// Point is a (block, action-index) pair identifying a single program
// location. Action indexes range over 0..=len(actions), where
// len(actions) denotes the block's terminator point.
type Point struct {
	Block  BlockName
	Action int
}

func (p Point) String() string {
	return fmt.Sprintf("(%s/%d)", p.Block, p.Action)
}

// SkolemizedEndBlockName returns the name of the synthetic block
// representing the end of region r.
func SkolemizedEndBlockName(r RegionName) BlockName {
	return BlockName(fmt.Sprintf("END(%s)", r))
}
