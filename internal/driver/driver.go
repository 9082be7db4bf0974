// Package driver orchestrates one function through the analysis
// pipeline -- environment, liveness, inference, loans-in-scope, borrow
// checking -- and reconciles the observed diagnostics against the
// program's `//~ERROR` expectations.
package driver

import (
	"fmt"
	"strings"

	"github.com/nikomatsakis/borrowck/internal/borrowck"
	"github.com/nikomatsakis/borrowck/internal/env"
	"github.com/nikomatsakis/borrowck/internal/infer"
	"github.com/nikomatsakis/borrowck/internal/ir"
	"github.com/nikomatsakis/borrowck/internal/liveness"
	"github.com/nikomatsakis/borrowck/internal/loans"
)

// Kind classifies a reported diagnostic, per SPEC_FULL.md's error
// surfaces: structural errors abort the function outright; cap
// violations and borrow errors are accumulated and reconciled against
// expectations; assertion failures are reported only after a clean
// run.
type Kind int

const (
	KindStructural Kind = iota
	KindCapViolation
	KindBorrowCheck
	KindAssertion
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural error"
	case KindCapViolation:
		return "inference cap violation"
	case KindBorrowCheck:
		return "borrow error"
	case KindAssertion:
		return "assertion failure"
	default:
		return "error"
	}
}

// Diagnostic is one observed or expected error, normalized to a point
// and a message for reconciliation.
type Diagnostic struct {
	Kind    Kind
	Point   ir.Point
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s at %s: %s", d.Kind, d.Point, d.Message)
}

// Result is the outcome of checking one function: empty Failures means
// the function passed every borrow-check and assertion.
type Result struct {
	Failures []Diagnostic
}

// OK reports whether the function passed with no unreconciled errors.
func (r Result) OK() bool { return len(r.Failures) == 0 }

// Check runs the full pipeline against fn, threading an optional
// tracer for phase timing. A structural error (malformed graph,
// undeclared name) aborts immediately and is returned directly rather
// than folded into Result, since the remaining phases cannot run at
// all.
func Check(fn *ir.Function, tracer *Tracer) (Result, error) {
	tracer.phase("graph")
	e, err := env.New(fn)
	if err != nil {
		return Result{}, fmt.Errorf("driver: %w", err)
	}

	tracer.phase("liveness")
	l, err := liveness.Compute(e)
	if err != nil {
		return Result{}, fmt.Errorf("driver: %w", err)
	}

	tracer.phase("inference")
	ctx, err := infer.Populate(e, l)
	if err != nil {
		return Result{}, fmt.Errorf("driver: %w", err)
	}
	capErrs := ctx.Solve(e)
	tracer.countf("region variables", len(fn.Regions))

	tracer.phase("loans")
	ls := loans.Compute(e, ctx)
	tracer.countf("loans", len(ls.Loans()))

	tracer.phase("borrowck")
	borrowErrs := borrowck.Check(e, ls)

	var observed []Diagnostic
	for _, ce := range capErrs {
		if capErr, ok := ce.(*infer.CapError); ok {
			observed = append(observed, Diagnostic{
				Kind:    KindCapViolation,
				Point:   capErr.Point,
				Message: capErr.Error(),
			})
		}
	}
	for _, be := range borrowErrs {
		observed = append(observed, Diagnostic{
			Kind:    KindBorrowCheck,
			Point:   be.Point,
			Message: be.Error(),
		})
	}

	tracer.phase("reconcile")
	failures := reconcile(fn, observed)

	if len(failures) == 0 {
		tracer.phase("assertions")
		failures = append(failures, checkAssertions(fn, e, l, ctx)...)
	}

	return Result{Failures: failures}, nil
}

// reconcile matches each observed diagnostic against an expected
// `//~ERROR` marker at the same point whose message is a substring of
// the observed one. Unmatched observed diagnostics and unmatched
// expectations both surface as failures.
func reconcile(fn *ir.Function, observed []Diagnostic) []Diagnostic {
	expected := collectExpectations(fn)
	matchedExpectation := make([]bool, len(expected))

	var failures []Diagnostic
	for _, obs := range observed {
		matched := false
		for i, exp := range expected {
			if matchedExpectation[i] {
				continue
			}
			if exp.Point == obs.Point && strings.Contains(obs.Message, exp.Message) {
				matchedExpectation[i] = true
				matched = true
				break
			}
		}
		if !matched {
			failures = append(failures, obs)
		}
	}
	for i, exp := range expected {
		if !matchedExpectation[i] {
			failures = append(failures, Diagnostic{
				Kind:    KindAssertion,
				Point:   exp.Point,
				Message: fmt.Sprintf("expected error %q was never reported", exp.Message),
			})
		}
	}
	return failures
}

type expectation struct {
	Point   ir.Point
	Message string
}

func collectExpectations(fn *ir.Function) []expectation {
	var out []expectation
	for _, b := range fn.Blocks {
		for i, a := range b.Actions {
			if a.ExpectError != nil {
				out = append(out, expectation{Point: ir.Point{Block: b.Name, Action: i}, Message: *a.ExpectError})
			}
		}
	}
	return out
}
