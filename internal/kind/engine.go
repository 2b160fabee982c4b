// Package kind implements the k-induction step engine described in §4.1:
// an inductive-step loop with activation literals, path compression,
// closure-based property splitting, and backtracking when concurrently
// falsified properties invalidate optimistic assumptions.
package kind

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rfielding/symcheck/internal/actlit"
	"github.com/rfielding/symcheck/internal/compress"
	"github.com/rfielding/symcheck/internal/event"
	"github.com/rfielding/symcheck/internal/metrics"
	"github.com/rfielding/symcheck/internal/solverfacade"
	"github.com/rfielding/symcheck/internal/term"
	"github.com/rfielding/symcheck/internal/ts"
)

// invariant tracks a single learned system-level invariant term and the
// highest offset at which it has been asserted unconditionally so far, so
// catch-up (for newly-learned invariants) and extension (for old ones, "bump
// to k") are the same operation: assert every offset in (maxAsserted, k].
type invariant struct {
	term        *term.Term
	maxAsserted int64
}

// Engine is the k-induction step engine's mutable state: the Context
// carried through the loop in §4.1 (trans, solver, k, invariants,
// optimistics, unknowns), plus the shared infrastructure it drives.
type Engine struct {
	trans      ts.TransitionSystem
	solver     solverfacade.Solver
	store      *term.Store
	actlits    *actlit.Registry
	compressor compress.Oracle
	bus        event.Bus
	log        *zap.Logger
	metrics    *metrics.Metrics

	k           int64
	invariants  []*invariant
	optimistics []ts.Property
	unknowns    []ts.Property

	// ConfirmSleep is the idle-sleep interval between event polls in the
	// confirmation phase (§5: "the k-induction confirmation loop may
	// idle-sleep briefly ... to avoid busy-waiting").
	ConfirmSleep time.Duration
}

// New creates a k-induction engine. Call Init before Run.
func New(trans ts.TransitionSystem, solver solverfacade.Solver, store *term.Store, bus event.Bus, compressor compress.Oracle, log *zap.Logger, m *metrics.Metrics) *Engine {
	e := &Engine{
		trans:        trans,
		solver:       solver,
		store:        store,
		bus:          bus,
		compressor:   compressor,
		log:          log,
		metrics:      m,
		ConfirmSleep: 5 * time.Millisecond,
	}
	e.actlits = actlit.NewRegistry(store, func(name string) {
		if err := solver.DeclareFun(name, nil, solverfacade.SortBool); err != nil {
			log.Warn("kind: failed to declare activation literal", zap.String("name", name), zap.Error(err))
		}
	})
	return e
}

// Init performs the initialization described in §4.1: declares the
// offset-0 state variables and uninterpreted function definitions, declares
// the canonical activation literal for every initial property, and seeds
// the Context with k=1, no invariants, no optimistics, and unknowns equal
// to the transition system's property list.
func (e *Engine) Init() error {
	if err := e.declareBounds(0, 0); err != nil {
		return errors.Wrap(err, "kind: init declarations")
	}
	e.k = 1
	e.invariants = nil
	e.optimistics = nil
	e.unknowns = e.trans.PropsListOfBound(0)
	for _, p := range e.unknowns {
		e.actlits.Canonical(p.Term)
	}
	return nil
}

// Run drives the main loop of §4.1 until every property has left both
// unknowns and optimistics (resolved by this engine or upstream), or until
// done reports true. done is polled between iterations rather than via
// context.Context to keep
// this package free of a hard dependency direction on cmd/symcheck's
// cancellation source; callers pass a closure over their own context.
func (e *Engine) Run(done func() bool) error {
	for {
		if done() {
			return nil
		}
		if err := e.Step(); err != nil {
			return err
		}
		if len(e.unknowns) == 0 {
			if len(e.optimistics) == 0 {
				return nil
			}
			finished, err := e.confirmPhase(done)
			if err != nil {
				return err
			}
			if finished {
				return nil
			}
		}
	}
}

// Step performs one "step iteration at k" (§4.1): poll events, drop
// resolved properties, either advance the transition relation and
// invariants and run split-closure, or (on concurrent falsification)
// backtrack by moving optimistics back into unknowns and decrementing k.
func (e *Engine) Step() error {
	events := e.bus.Recv()
	newInvariants, newValid, newFalsified := e.bus.UpdateTransSys(events)
	_ = newValid // valid/KTrue promotions are observed via StatusOf in confirmPhase
	e.addInvariants(newInvariants)
	e.dropResolved()

	if len(newFalsified) > 0 {
		e.log.Debug("kind: concurrent falsification, backtracking", zap.Int64("k", e.k), zap.Strings("falsified", newFalsified))
		if e.metrics != nil {
			e.metrics.Backtracks.Inc()
		}
		e.unknowns = append(e.unknowns, e.optimistics...)
		e.optimistics = nil
		e.k--
		if e.k < 1 {
			e.k = 1
		}
		return nil
	}

	if err := e.declareBounds(0, e.k); err != nil {
		return errors.Wrap(err, "kind: declare bounds")
	}
	if err := e.assertTransitionStep(); err != nil {
		return err
	}
	if err := e.assertInvariantsThrough(e.k); err != nil {
		return err
	}
	return e.splitAndAdvance()
}

func (e *Engine) addInvariants(terms []*term.Term) {
	for _, t := range terms {
		e.invariants = append(e.invariants, &invariant{term: t, maxAsserted: -1})
	}
}

// assertTransitionStep asserts T[k-1,k] unconditionally.
func (e *Engine) assertTransitionStep() error {
	t := e.trans.TransOfBound(e.k)
	if err := e.solver.Assert(t); err != nil {
		return errors.Wrapf(err, "kind: assert T[%d,%d]", e.k-1, e.k)
	}
	return nil
}

// assertInvariantsThrough asserts every learned invariant, unconditionally,
// at every offset it has not yet been asserted at up to and including k.
// For a brand-new invariant this catches it up from offset 0; for an
// already-caught-up invariant this is exactly the "bump old invariants to
// k" step of §4.1.
func (e *Engine) assertInvariantsThrough(k int64) error {
	for _, inv := range e.invariants {
		for off := inv.maxAsserted + 1; off <= k; off++ {
			bumped := e.store.BumpState(inv.term, off)
			if err := e.solver.Assert(bumped); err != nil {
				return errors.Wrapf(err, "kind: assert invariant@%d", off)
			}
		}
		if k > inv.maxAsserted {
			inv.maxAsserted = k
		}
	}
	return nil
}

// dropResolved filters unknowns and optimistics against the externally
// owned property status, removing anything that has become Invariant or
// False since it was last examined (§4.1 step 2).
func (e *Engine) dropResolved() {
	e.unknowns = e.filterResolved(e.unknowns)
	e.optimistics = e.filterResolved(e.optimistics)
}

func (e *Engine) filterResolved(props []ts.Property) []ts.Property {
	out := make([]ts.Property, 0, len(props))
	for _, p := range props {
		st := e.bus.StatusOf(p.Name)
		if st.Kind == ts.Invariant || st.Kind == ts.False {
			continue
		}
		out = append(out, p)
	}
	return out
}

// splitAndAdvance performs §4.1 steps 4-6: asserts the positive-actlit
// guarded implication for every unknown and optimistic property at offset
// k-1, runs split-closure, promotes the result into the new optimistics and
// unknowns sets, and advances k.
func (e *Engine) splitAndAdvance() error {
	all := make([]ts.Property, 0, len(e.unknowns)+len(e.optimistics))
	all = append(all, e.unknowns...)
	all = append(all, e.optimistics...)

	assumptions := make([]*term.Term, 0, len(all))
	for _, p := range all {
		lit := e.actlits.Canonical(p.Term)
		assumptions = append(assumptions, lit.Term)
		impl := e.store.Implies(lit.Term, e.store.BumpState(p.Term, e.k-1))
		if err := e.solver.Assert(impl); err != nil {
			return errors.Wrap(err, "kind: assert actlit-guarded property")
		}
	}

	unfalsifiable, falsifiable, err := e.splitClosure(e.unknowns, e.optimistics, e.k, assumptions)
	if err != nil {
		return err
	}
	e.optimistics = unfalsifiable
	e.unknowns = falsifiable
	e.k++
	return nil
}

// splitClosure implements the split-closure procedure of §4.1: repeatedly
// tighten the search with a fresh activation literal per iteration until
// either the query becomes unsat (L is wholly unfalsifiable) or L empties
// out because every remaining candidate has been falsified.
func (e *Engine) splitClosure(l, o []ts.Property, k int64, assumptions []*term.Term) (unfalsifiable, falsifiable []ts.Property, err error) {
	remaining := append([]ts.Property{}, l...)
	optTerms := make([]*term.Term, 0, len(o))
	for _, p := range o {
		optTerms = append(optTerms, e.store.BumpState(p.Term, k))
	}
	m := e.store.And(optTerms...)

	for len(remaining) > 0 {
		negTerms := make([]*term.Term, len(remaining))
		for i, p := range remaining {
			negTerms[i] = e.store.BumpState(p.Term, k)
		}
		n := e.store.Not(e.store.And(negTerms...))

		af := e.actlits.Fresh()
		if err := e.solver.Assert(e.store.Implies(af.Term, e.store.And(n, m))); err != nil {
			return nil, nil, errors.Wrap(err, "kind: assert split-closure guard")
		}
		assumeWithFresh := append(append([]*term.Term{}, assumptions...), af.Term)

		falsifiedNow, stop, err := e.closureRound(remaining, k, assumeWithFresh, af.Term)
		if err != nil {
			return nil, nil, err
		}
		if stop {
			unfalsifiable = append(unfalsifiable, remaining...)
			break
		}
		if len(falsifiedNow) == 0 {
			// Defensive guard (§9 design notes): a SAT result here must
			// falsify at least one conjunct of N; treat a spurious empty
			// result as an anomaly rather than looping forever.
			e.log.Warn("kind: split-closure sat with no falsified property after empty compression", zap.Int64("k", k))
			unfalsifiable = append(unfalsifiable, remaining...)
			break
		}
		falsifiable = append(falsifiable, falsifiedNow...)
		next := remaining[:0:0]
		falsifiedSet := make(map[string]bool, len(falsifiedNow))
		for _, p := range falsifiedNow {
			falsifiedSet[p.Name] = true
		}
		for _, p := range remaining {
			if !falsifiedSet[p.Name] {
				next = append(next, p)
			}
		}
		remaining = next
	}
	return unfalsifiable, falsifiable, nil
}

// closureRound runs one check-sat-assuming under assumeWithFresh and, on a
// SAT result, asserts the path-compression constraints once and re-checks;
// a SAT result after that (or an empty compression) is evaluated. It
// returns the properties in remaining that evaluated false in the final
// model, or stop=true if the query came back unsat. guard is the same
// fresh activation literal already guarding assumeWithFresh's extra
// conjunct: compression constraints are asserted behind it too, per
// compress.Oracle's contract that a SimplePathCompressor's output must
// never be asserted unconditionally.
func (e *Engine) closureRound(remaining []ts.Property, k int64, assumeWithFresh []*term.Term, guard *term.Term) (falsifiedNow []ts.Property, stop bool, err error) {
	if e.metrics != nil {
		e.metrics.SolverQueries.WithLabelValues("kind").Inc()
	}
	compressedThisRound := false
	for {
		evalTerms := make([]*term.Term, len(remaining))
		for i, p := range remaining {
			evalTerms[i] = e.store.BumpState(p.Term, k)
		}
		var vals map[*term.Term]bool
		res, err := e.solver.CheckSatAssumingAndGetValues(assumeWithFresh, evalTerms, func(v map[*term.Term]bool) {
			vals = v
		}, func() {})
		if err != nil {
			return nil, false, errors.Wrap(err, "kind: split-closure check-sat")
		}
		if res == solverfacade.Unsat {
			return nil, true, nil
		}

		var declareErr error
		var compressed []*term.Term
		if !compressedThisRound {
			compressed = e.compressor.Compress(e.trans.StateVars(), k, e.declareRaw(&declareErr))
		}
		if declareErr != nil {
			return nil, false, declareErr
		}
		if len(compressed) > 0 {
			compressedThisRound = true
			for _, c := range compressed {
				if err := e.solver.Assert(e.store.Implies(guard, c)); err != nil {
					return nil, false, errors.Wrap(err, "kind: assert compression constraint")
				}
			}
			continue
		}

		violated := make([]bool, len(remaining))
		for i := range remaining {
			v, ok := vals[evalTerms[i]]
			violated[i] = ok && !v
		}
		for {
			i := firstTrueIndex(len(violated), func(j int) bool { return violated[j] })
			if i < 0 {
				break
			}
			falsifiedNow = append(falsifiedNow, remaining[i])
			violated[i] = false
		}
		return falsifiedNow, false, nil
	}
}

// firstTrueIndex scans x[0:n] left to right and returns the least i with
// x(i) true, or -1 if every x(i) is false. closureRound uses it to pull the
// falsified properties out of a SAT model's valuation one at a time, rather
// than scanning the valuation map inline.
func firstTrueIndex(n int, x func(i int) bool) int {
	for i := 0; i < n; i++ {
		if x(i) {
			return i
		}
	}
	return -1
}

// confirmPhase implements the confirm phase described at the end of §4.1:
// poll events until every optimistic property is either dropped (falsified
// upstream) or has attained KTrue(k-1) from the companion BMC engine. On a
// fresh falsification it signals the caller to restart at the decremented
// step instead of confirming.
func (e *Engine) confirmPhase(done func() bool) (finished bool, err error) {
	for {
		if done() {
			return true, nil
		}
		events := e.bus.Recv()
		newInvariants, _, newFalsified := e.bus.UpdateTransSys(events)
		e.addInvariants(newInvariants)
		if err := e.assertInvariantsThrough(e.k - 1); err != nil {
			return false, err
		}

		if len(newFalsified) > 0 {
			if e.metrics != nil {
				e.metrics.Backtracks.Inc()
			}
			e.dropResolved()
			e.unknowns = append(e.unknowns, e.optimistics...)
			e.optimistics = nil
			e.k--
			if e.k < 1 {
				e.k = 1
			}
			return false, nil
		}

		remaining := e.optimistics[:0:0]
		for _, p := range e.optimistics {
			st := e.bus.StatusOf(p.Name)
			switch {
			case st.Kind == ts.Invariant:
				// already confirmed externally
			case st.Kind == ts.KTrue && st.K >= e.k-1:
				e.bus.PublishStatus(ts.Status{Kind: ts.Invariant}, p.Name)
				e.log.Info("kind: confirmed invariant", zap.String("property", p.Name), zap.Int64("k", e.k-1))
			default:
				remaining = append(remaining, p)
			}
		}
		e.optimistics = remaining
		if len(e.optimistics) == 0 {
			return true, nil
		}
		time.Sleep(e.ConfirmSleep)
	}
}

func (e *Engine) declareBounds(lo, hi int64) error {
	var err error
	derr := e.trans.DefineAndDeclareOfBounds(lo, hi, e.declareRaw(&err), e.defineRaw(&err))
	if derr != nil {
		return derr
	}
	return err
}

func (e *Engine) declareRaw(errp *error) func(name string, argSorts []solverfacade.Sort, ret solverfacade.Sort) {
	return func(name string, argSorts []solverfacade.Sort, ret solverfacade.Sort) {
		if *errp != nil {
			return
		}
		if err := e.solver.DeclareFun(name, argSorts, ret); err != nil {
			*errp = err
		}
	}
}

func (e *Engine) defineRaw(errp *error) func(decl ts.UninterpFuncDecl) {
	return func(decl ts.UninterpFuncDecl) {
		if *errp != nil {
			return
		}
		if decl.Body == nil {
			if err := e.solver.DeclareFun(decl.Name, decl.ArgSorts, decl.RetSort); err != nil {
				*errp = err
			}
			return
		}
		if err := e.solver.DefineFun(decl.Name, decl.ArgSorts, decl.RetSort, decl.Params, decl.Body); err != nil {
			*errp = err
		}
	}
}

// K returns the engine's current step index, for tests and metrics.
func (e *Engine) K() int64 { return e.k }

// Unknowns returns the current unknowns set, for tests.
func (e *Engine) Unknowns() []ts.Property { return e.unknowns }

// Optimistics returns the current optimistics set, for tests.
func (e *Engine) Optimistics() []ts.Property { return e.optimistics }
