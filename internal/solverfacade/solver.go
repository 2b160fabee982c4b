// Package solverfacade defines the incremental-SMT interface the engines
// drive (§6 of the design) and a concrete adapter backed by Z3's Go
// bindings.
package solverfacade

import (
	"github.com/pkg/errors"

	"github.com/rfielding/symcheck/internal/statevar"
	"github.com/rfielding/symcheck/internal/term"
)

// Sort is the SMT sort of a declared symbol.
type Sort int

const (
	SortBool Sort = iota
	SortInt
	SortReal
)

func fromType(t statevar.Type) Sort {
	switch t {
	case statevar.Int:
		return SortInt
	case statevar.Real:
		return SortReal
	default:
		return SortBool
	}
}

// CheckResult is the outcome of a check-sat query.
type CheckResult int

const (
	Unsat CheckResult = iota
	Sat
	Unknown
)

// Model answers valuation queries against the most recent Sat result.
type Model interface {
	// Eval returns the boolean value of t under the model, and whether t
	// was assigned a definite value at all.
	Eval(t *term.Term) (value bool, ok bool)
}

// ErrInterpolationUnsupported is returned by GetInterpolants on adapters
// whose backend does not expose Craig interpolation over its incremental
// API (notably the Z3 adapter in this module — see DESIGN.md).
var ErrInterpolationUnsupported = errors.New("solverfacade: backend does not support interpolation")

// Solver is the incremental SMT session both engines drive. Every method
// that can fail returns an error so a dropped solver process never panics
// the engine; the engine aborts the affected property (§7) on error.
type Solver interface {
	DeclareFun(name string, argSorts []Sort, ret Sort) error
	DefineFun(name string, argSorts []Sort, ret Sort, params []*term.Term, body *term.Term) error
	DeclareSort(name string, arity int) error

	Assert(t *term.Term) error

	Push() error
	Pop() error

	// CheckSatAssuming runs a check-sat query under the given assumption
	// terms (normally activation literals). Exactly one of ifSat/ifUnsat is
	// invoked before CheckSatAssuming returns, and before any later query
	// disturbs the solver state.
	CheckSatAssuming(assumptions []*term.Term, ifSat func(Model), ifUnsat func()) (CheckResult, error)

	// CheckSatAssumingAndGetValues additionally evaluates termsToEvaluate
	// in the model on a Sat result, handing the valuations to ifSat.
	CheckSatAssumingAndGetValues(assumptions []*term.Term, termsToEvaluate []*term.Term, ifSat func(map[*term.Term]bool), ifUnsat func()) (CheckResult, error)

	GetModel() (Model, error)

	// AssertNamedTerm asserts t and names the assertion, for later
	// inclusion in an unsat core or an interpolation partition.
	AssertNamedTerm(name string, t *term.Term) error

	// GetInterpolants retrieves, for a sequence of n named partitions
	// asserted via AssertNamedTerm, the n-1 intermediate interpolants.
	GetInterpolants(names []string) ([]*term.Term, error)
}
