// Package counter implements ts.TransitionSystem over small symbolic
// (I, T, V) systems, generalizing the teacher's KripkeStructure/
// CTLFormula/ModelChecker/examples.go demo triad (finite-graph CTL model
// checking over a handful of named scenarios) into symbolic term-layer
// formulas suitable for the unbounded SMT engines: the same "a few
// illustrative scenarios, runnable end to end" role, expressed as (I, T,
// V) instead of an explicit finite state graph.
package counter

import (
	"github.com/rfielding/symcheck/internal/solverfacade"
	"github.com/rfielding/symcheck/internal/statevar"
	"github.com/rfielding/symcheck/internal/term"
	"github.com/rfielding/symcheck/internal/ts"
)

// System is a boolean (I, T, V) transition system with no uninterpreted
// functions, generic enough to express every scenario in this package.
type System struct {
	store    *term.Store
	svars    []*statevar.StateVar
	initTmpl *term.Term // offset 0
	transTmpl *term.Term // offset 0 (current) / 1 (next)
	props    []ts.Property
}

func (s *System) InitOfBound(k int64) *term.Term { return s.store.BumpState(s.initTmpl, k) }

func (s *System) TransOfBound(k int64) *term.Term { return s.store.BumpState(s.transTmpl, k-1) }

func (s *System) PropsListOfBound(k int64) []ts.Property {
	out := make([]ts.Property, len(s.props))
	for i, p := range s.props {
		out[i] = ts.Property{Name: p.Name, Term: s.store.BumpState(p.Term, k)}
	}
	return out
}

func (s *System) Logic() string { return "QF_BOOL" }

func (s *System) StateVars() []*statevar.StateVar { return s.svars }

func (s *System) UninterpFuncs() []ts.UninterpFuncDecl { return nil }

// DefineAndDeclareOfBounds is a no-op: every state variable in this
// package is a plain boolean that the solver facade compiles lazily by
// qualified name, and none of these scenarios needs an uninterpreted
// function.
func (s *System) DefineAndDeclareOfBounds(lo, hi int64, declare func(string, []solverfacade.Sort, solverfacade.Sort), define func(ts.UninterpFuncDecl)) error {
	return nil
}

// PathFromModel reads off each state variable's valuation at every offset
// 0..k from model, building the materialized counterexample trace.
func (s *System) PathFromModel(model solverfacade.Model, k int64) *ts.Trace {
	trace := &ts.Trace{Steps: make([]map[*statevar.StateVar]interface{}, k+1)}
	for i := int64(0); i <= k; i++ {
		step := make(map[*statevar.StateVar]interface{}, len(s.svars))
		for _, sv := range s.svars {
			v := statevar.Var{SV: sv, At: statevar.Off(i)}
			val, ok := model.Eval(s.store.VarTerm(v))
			if ok {
				step[sv] = val
			}
		}
		trace.Steps[i] = step
	}
	return trace
}

func newBoolVar(store *term.Store, name string) (*statevar.StateVar, *term.Term, *term.Term) {
	sv := statevar.New(name, statevar.Scope{"counter"}, statevar.Bool, false, false)
	cur := store.VarTerm(statevar.At0(sv))
	next := store.VarTerm(statevar.Var{SV: sv, At: statevar.Off(1)})
	return sv, cur, next
}

// NewTriviallyTrue builds the §8 scenario where P holds unconditionally:
// no state variables, I = T = P = true, so both engines should prove it
// invariant without ever needing to query a bad cube.
func NewTriviallyTrue(store *term.Store) *System {
	return &System{
		store:     store,
		initTmpl:  store.True(),
		transTmpl: store.True(),
		props:     []ts.Property{{Name: "trivially_true", Term: store.True()}},
	}
}

// NewTriviallyFalse builds the §8 scenario where I is satisfiable but
// immediately violates P: a single bit that T holds constant, I says it's
// set, and P is the constant false.
func NewTriviallyFalse(store *term.Store) *System {
	sv, cur, next := newBoolVar(store, "flag")
	return &System{
		store:     store,
		svars:     []*statevar.StateVar{sv},
		initTmpl:  cur,
		transTmpl: store.Eq(next, cur),
		props:     []ts.Property{{Name: "trivially_false", Term: store.False()}},
	}
}

// NewTwoBitCounter builds the wraparound scenario: a 2-bit ripple counter
// (b1 is the high bit) starting at 0, incrementing mod 4 every step, with
// the property that it is never equal to 3. The property is genuinely
// false: the unconditional toggle walks (0,0)→(1,0)→(0,1)→(1,1), so the
// counter reaches 3 at exactly 3 steps from I. This is a real,
// concretizable counterexample, not merely one that k-induction's path
// compression happens to miss — an engine that actually proves I ⊨ AG P on
// this system has a bug.
func NewTwoBitCounter(store *term.Store) *System {
	b0, b0c, b0n := newBoolVar(store, "b0")
	b1, b1c, b1n := newBoolVar(store, "b1")

	trans := store.And(
		store.Eq(b0n, store.Not(b0c)),
		store.Eq(b1n, store.Not(store.Eq(b1c, b0c))), // b1' = b1 XOR b0, i.e. ripple carry
	)
	init := store.And(store.Not(b0c), store.Not(b1c))
	prop := store.Not(store.And(b0c, b1c)) // counter != 3

	return &System{
		store:     store,
		svars:     []*statevar.StateVar{b0, b1},
		initTmpl:  init,
		transTmpl: trans,
		props:     []ts.Property{{Name: "counter_never_three", Term: prop}},
	}
}

// NewSharedBuffer builds the §8 mutual-exclusion scenario: n clients
// contending for one shared buffer slot, each with a boolean "granted"
// state variable and a boolean "requesting" input. The transition relation
// itself bakes in the arbiter's safety discipline (never grant two clients
// at once, never grant a client that isn't asking), so the "at most one
// accept" property should need no refinement at all to prove invariant.
func NewSharedBuffer(store *term.Store, n int) *System {
	grants := make([]*statevar.StateVar, n)
	grantCur := make([]*term.Term, n)
	grantNext := make([]*term.Term, n)
	reqs := make([]*statevar.StateVar, n)
	reqNext := make([]*term.Term, n)

	for i := 0; i < n; i++ {
		g, gc, gn := newBoolVar(store, indexedName("grant", i))
		grants[i], grantCur[i], grantNext[i] = g, gc, gn
		r := statevar.New(indexedName("requesting", i), statevar.Scope{"counter"}, statevar.Bool, true, false)
		reqs[i] = r
		reqNext[i] = store.VarTerm(statevar.Var{SV: r, At: statevar.Off(1)})
	}

	var initTerms, transTerms, propTerms []*term.Term
	for i := 0; i < n; i++ {
		initTerms = append(initTerms, store.Not(grantCur[i]))
		transTerms = append(transTerms, store.Implies(grantNext[i], reqNext[i]))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			transTerms = append(transTerms, store.Not(store.And(grantNext[i], grantNext[j])))
			propTerms = append(propTerms, store.Not(store.And(grantCur[i], grantCur[j])))
		}
	}

	svars := append(append([]*statevar.StateVar{}, grants...), reqs...)
	return &System{
		store:     store,
		svars:     svars,
		initTmpl:  store.And(initTerms...),
		transTmpl: store.And(transTerms...),
		props:     []ts.Property{{Name: "at_most_one_accept", Term: store.And(propTerms...)}},
	}
}

func indexedName(base string, i int) string {
	const digits = "0123456789"
	if i < 10 {
		return base + string(digits[i])
	}
	return base + string(digits[i/10]) + string(digits[i%10])
}
