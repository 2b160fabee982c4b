package ic3ia

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rfielding/symcheck/internal/actlit"
	"github.com/rfielding/symcheck/internal/metrics"
	"github.com/rfielding/symcheck/internal/solverfacade"
	"github.com/rfielding/symcheck/internal/term"
	"github.com/rfielding/symcheck/internal/ts"
)

// Outcome classifies what a Run call (or its internal Block/Propagate
// phases) concluded. It mirrors the tagged-result taxonomy of §7: these
// are return values, never exceptions.
type Outcome int

const (
	// Continue means neither phase had anything conclusive to report; the
	// main loop should extend the frame sequence and keep going.
	Continue Outcome = iota
	// Success means the property was proven invariant.
	Success
	// Failure means a genuine counterexample was found; Run's trace
	// return value is populated.
	Failure
	// InternalInconsistency means a solver-level contradiction was
	// detected (e.g. simulate and interpolate disagreeing on
	// satisfiability) and the engine cannot continue on this property.
	InternalInconsistency
)

// cube is a conjunction of abvar literals, represented as abvar-term ->
// polarity, matching how CheckSatAssumingAndGetValues reports valuations.
type cube map[*term.Term]bool

// Engine is one IC3IA run against a single property, per §4.2. Unlike the
// k-induction engine (one instance serving every unresolved property at
// once), IC3IA's frame sequence and abstraction are property-specific, so
// a process runs one Engine per property it pursues this way.
type Engine struct {
	store   *term.Store
	solver  solverfacade.Solver
	trans   ts.TransitionSystem
	actlits *actlit.Registry
	log     *zap.Logger
	metrics *metrics.Metrics

	property ts.Property
	iTerm    *term.Term
	pTerm    *term.Term

	abs    *Abstraction
	clones *CloneMap
	frames *FrameSeq
	pi     []*term.Term // the predicate set Π

	// seedPredicates are extra atoms an operator wants folded into Π
	// before the first block phase, beyond the mandatory I and P (§4.2's
	// config.IC3IA.SeedPredicates knob). Set via SetSeedPredicates before
	// Setup.
	seedPredicates []*term.Term

	// propagationBatchSize bounds how many of a frame's own clauses
	// propagate tests per call; 0 means unbounded (test them all). Set via
	// SetPropagationBatchSize before Run.
	propagationBatchSize int

	transTemplate *term.Term // the generic offset-0/1 two-state relation T

	declaredThrough int64
}

// New creates an IC3IA engine for property against trans. Call Setup
// before Run.
func New(trans ts.TransitionSystem, property ts.Property, solver solverfacade.Solver, store *term.Store, log *zap.Logger, m *metrics.Metrics) *Engine {
	e := &Engine{
		store:    store,
		solver:   solver,
		trans:    trans,
		log:      log,
		metrics:  m,
		property: property,
		iTerm:    trans.InitOfBound(0),
		pTerm:    property.Term,
		abs:      NewAbstraction(store),
	}
	e.actlits = actlit.NewRegistry(store, func(name string) {
		if err := solver.DeclareFun(name, nil, solverfacade.SortBool); err != nil {
			log.Warn("ic3ia: failed to declare activation literal", zap.String("name", name), zap.Error(err))
		}
	})
	return e
}

// SetSeedPredicates adds extra atoms to Π before Setup grows the abvar map
// over it, letting an operator hint at useful abstraction granularity up
// front rather than waiting for refinement to discover them. Call before
// Setup.
func (e *Engine) SetSeedPredicates(preds []*term.Term) {
	e.seedPredicates = preds
}

// SetPropagationBatchSize bounds how many of a frame's own clauses
// propagate tests per call; 0 (the default) tests all of them. Call before
// Run.
func (e *Engine) SetPropagationBatchSize(n int) {
	e.propagationBatchSize = n
}

// Setup performs §4.2's setup: seeds Π = {I, P}, grows the abvar map over
// their atoms, builds the clone map γ over every state variable of T, runs
// the initial I ∧ H ⊨ P check, and initializes the frame sequence. It
// returns Failure directly (with a single-step trace of the offset-0
// state) if the initial check
// itself already finds a violation, matching §8's trivially-false scenario.
func (e *Engine) Setup() (Outcome, *ts.Trace, error) {
	e.clones = NewCloneMap(e.store, e.trans.StateVars())
	e.transTemplate = e.trans.TransOfBound(1)

	e.pi = append([]*term.Term{e.iTerm, e.pTerm}, e.seedPredicates...)
	e.abs.Update(e.pi)

	if err := e.declareBounds(0, 1); err != nil {
		return 0, nil, errors.Wrap(err, "ic3ia: setup declarations")
	}

	absI := e.abs.Abstract(e.iTerm)
	absP := e.abs.Abstract(e.pTerm)
	H := e.abs.Coupling()

	assumptions, err := e.assertGuarded([]*term.Term{H, absI, e.store.Not(absP)})
	if err != nil {
		return 0, nil, err
	}
	var model solverfacade.Model
	res, err := e.solver.CheckSatAssuming(assumptions, func(m solverfacade.Model) { model = m }, func() {})
	if err != nil {
		return 0, nil, errors.Wrap(err, "ic3ia: initial I ^ H |= P check")
	}
	if res == solverfacade.Sat {
		return Failure, e.trans.PathFromModel(model, 0), nil
	}

	e.frames = NewFrameSeq(e.store, absI)
	return Continue, nil, nil
}

// Run drives the main loop of §4.2 until Success, Failure, or an
// InternalInconsistency, polling done between main-loop iterations.
func (e *Engine) Run(done func() bool) (Outcome, *ts.Trace, error) {
	for {
		if done() {
			return Continue, nil, nil
		}
		outcome, trace, err := e.block()
		if err != nil {
			return InternalInconsistency, nil, err
		}
		if outcome == Failure {
			return Failure, trace, nil
		}

		outcome, err = e.propagate()
		if err != nil {
			return InternalInconsistency, nil, err
		}
		if outcome == Success {
			e.log.Info("ic3ia: fixpoint reached", zap.String("property", e.property.Name), zap.Int("frames", e.frames.Top()+1))
			return Success, nil, nil
		}

		e.frames.ExtendTop()
		if e.metrics != nil {
			e.metrics.FrameSize.WithLabelValues(e.property.Name, fmt.Sprint(e.frames.Top())).Set(0)
			e.metrics.AbstractionAtoms.WithLabelValues(e.property.Name).Set(float64(e.abs.Size()))
		}
	}
}

// block implements §4.2.a: repeatedly query the top frame for a violation
// of P, recursively block whatever bad cube is found, and on a genuine
// counterexample path attempt interpolation-based refinement before
// retrying. It returns Continue once the top frame entails P outright.
func (e *Engine) block() (Outcome, *ts.Trace, error) {
	for {
		top := e.frames.Top()
		content := e.frames.ContentAt(top)
		if e.metrics != nil {
			e.metrics.SolverQueries.WithLabelValues("ic3ia").Inc()
		}
		sat, bad, err := e.queryBad(content)
		if err != nil {
			return 0, nil, err
		}
		if !sat {
			return Continue, nil, nil
		}

		cex, err := e.recBlock(bad, top)
		if err != nil {
			return 0, nil, err
		}
		if cex == nil {
			continue
		}

		trace, err := e.refine(cex)
		if err != nil {
			return 0, nil, err
		}
		if trace != nil {
			return Failure, trace, nil
		}
		if e.metrics != nil {
			e.metrics.RefinementRounds.WithLabelValues(e.property.Name).Inc()
		}
	}
}

// queryBad checks SAT(content ∧ H ∧ ¬α(P)) — a single-state query, no
// transition relation involved — and on Sat extracts the abvar valuation
// as a bad cube.
func (e *Engine) queryBad(content *term.Term) (bool, cube, error) {
	H := e.abs.Coupling()
	absP := e.abs.Abstract(e.pTerm)
	assumptions, err := e.assertGuarded([]*term.Term{content, H, e.store.Not(absP)})
	if err != nil {
		return false, nil, err
	}
	var vals map[*term.Term]bool
	res, err := e.solver.CheckSatAssumingAndGetValues(assumptions, e.abs.AbvarTerms(), func(v map[*term.Term]bool) { vals = v }, func() {})
	if err != nil {
		return false, nil, errors.Wrap(err, "ic3ia: block query")
	}
	if res != solverfacade.Sat {
		return false, nil, nil
	}
	return true, cube(vals), nil
}

// worklistItem is one pending recblock obligation: block cube at level,
// where rest holds the path established so far (head = most recently
// discovered, i.e. closest to I, per §3's Counterexample path data model).
type worklistItem struct {
	cube  cube
	level int
	rest  []cube
}

// recBlock is recblock (§4.2.a), rewritten as an explicit LIFO worklist per
// §9's design note rather than native recursion: pushing the continuation
// item before the deeper obligation reproduces the recursive control flow
// exactly (the deeper item is resolved first, then its parent is retried).
func (e *Engine) recBlock(bad cube, topLevel int) ([]cube, error) {
	stack := []worklistItem{{cube: bad, level: topLevel}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if it.level == 0 {
			return append([]cube{it.cube}, it.rest...), nil
		}

		j := it.level - 1
		content := e.frames.ContentAt(j)
		if e.metrics != nil {
			e.metrics.SolverQueries.WithLabelValues("ic3ia").Inc()
		}
		cti, err := e.absRelInd(content, it.cube)
		if err != nil {
			return nil, err
		}
		if cti == nil {
			g, err := e.generalize(it.cube, content)
			if err != nil {
				return nil, err
			}
			e.frames.AddClause(it.level, e.store.Not(cubeTerm(e.store, g)))
			continue
		}

		stack = append(stack, it)
		stack = append(stack, worklistItem{cube: cti, level: j, rest: append([]cube{it.cube}, it.rest...)})
	}
	return nil, nil
}

// absRelInd checks whether ¬c is relatively inductive w.r.t. content: SAT
// of content ∧ ¬c ∧ H ∧ H' ∧ T(γ) ∧ E_Π ∧ E_Π' ∧ c'. Unsat means inductive
// (no CTI, returns nil); Sat extracts the predecessor's abvar valuation as
// the new, deeper bad cube.
func (e *Engine) absRelInd(content *term.Term, c cube) (cube, error) {
	return e.absRelIndTerm(content, e.store.Not(cubeTerm(e.store, c)))
}

// absRelIndTerm is the clause-level form absRelInd and propagate share:
// it tests whether clause is relatively inductive w.r.t. content.
func (e *Engine) absRelIndTerm(content *term.Term, clause *term.Term) (cube, error) {
	H := e.abs.Coupling()
	Hp := e.store.BumpState(H, 1)
	Tg := e.clones.CloneTerm(e.transTemplate)
	EPi := e.couplingPi()
	EPip := e.store.BumpState(EPi, 1)
	clausePrime := e.store.BumpState(clause, 1)

	assumptions, err := e.assertGuarded([]*term.Term{content, clause, H, Hp, Tg, EPi, EPip, e.store.Not(clausePrime)})
	if err != nil {
		return nil, err
	}
	var vals map[*term.Term]bool
	res, err := e.solver.CheckSatAssumingAndGetValues(assumptions, e.abs.AbvarTerms(), func(v map[*term.Term]bool) { vals = v }, func() {})
	if err != nil {
		return nil, errors.Wrap(err, "ic3ia: relative induction check")
	}
	if res != solverfacade.Sat {
		return nil, nil
	}
	return cube(vals), nil
}

// generalize tries dropping literals from c one at a time (a single pass
// in map iteration order, no re-iteration to a further fixpoint): a literal
// is dropped when the cube without it is still relatively inductive and
// kept otherwise, producing the shortest blocking clause this pass can find.
func (e *Engine) generalize(c cube, content *term.Term) (cube, error) {
	g := make(cube, len(c))
	for k, v := range c {
		g[k] = v
	}
	for lit := range c {
		if len(g) <= 1 {
			break
		}
		trial := make(cube, len(g)-1)
		for k, v := range g {
			if k != lit {
				trial[k] = v
			}
		}
		cti, err := e.absRelInd(content, trial)
		if err != nil {
			return nil, err
		}
		if cti == nil {
			g = trial
		}
	}
	return g, nil
}

// propagate is partition_absrelind run bottom-up over every adjacent pair
// (§4.2.b): for frame i below the current top, each of its own clauses
// that is relatively inductive w.r.t. content(i) is pushed up into frame
// i+1 (content(i) unaffected, since it already included the clause via
// difference encoding; frame i+1 is strictly strengthened). If frame i's
// own store fully empties, F_i ≡ F_{i+1} ≡ ... and that is the fixpoint:
// F_i is itself inductive and implies P, so the property is invariant.
func (e *Engine) propagate() (Outcome, error) {
	top := e.frames.Top()
	for i := 0; i < top; i++ {
		content := e.frames.ContentAt(i)
		own := e.frames.Own(i)

		tested, deferred := own, []*term.Term(nil)
		if n := e.propagationBatchSize; n > 0 && len(own) > n {
			tested, deferred = own[:n], own[n:]
		}

		var kept []*term.Term
		for _, c := range tested {
			if e.metrics != nil {
				e.metrics.SolverQueries.WithLabelValues("ic3ia").Inc()
			}
			cti, err := e.absRelIndTerm(content, c)
			if err != nil {
				return 0, err
			}
			if cti == nil {
				e.frames.AddClause(i+1, c)
			} else {
				kept = append(kept, c)
			}
		}
		kept = append(kept, deferred...)
		e.frames.SetOwn(i, kept)
		if e.metrics != nil {
			e.metrics.FrameSize.WithLabelValues(e.property.Name, fmt.Sprint(i)).Set(float64(len(kept)))
		}
		if len(kept) == 0 {
			return Success, nil
		}
	}
	return Continue, nil
}

// refine runs the simulate-then-interpolate procedure described at the end
// of §4.2.a. A nil, nil return means the abstraction was grown and block
// should retry; a non-nil trace means the path was confirmed concrete.
func (e *Engine) refine(path []cube) (*ts.Trace, error) {
	k := int64(len(path) - 1)
	if err := e.declareBounds(0, k); err != nil {
		return nil, err
	}

	real, trace, err := e.simulate(path, k)
	if err != nil {
		return nil, err
	}
	if real {
		return trace, nil
	}
	return nil, e.interpolateAndGrow(path, k)
}

// simulate checks SAT of ⋀_i concretize(path_i)@i ∧ ⋀_i T@i ∧ ⋀_i H@i: is
// the abstract counterexample path realizable by a genuinely concrete run.
func (e *Engine) simulate(path []cube, k int64) (bool, *ts.Trace, error) {
	var conjuncts []*term.Term
	for i, c := range path {
		conjuncts = append(conjuncts, e.store.BumpState(e.abs.Concretize(cubeTerm(e.store, c)), int64(i)))
	}
	for i := int64(1); i <= k; i++ {
		conjuncts = append(conjuncts, e.trans.TransOfBound(i))
	}
	H := e.abs.Coupling()
	for i := int64(0); i <= k; i++ {
		conjuncts = append(conjuncts, e.store.BumpState(H, i))
	}

	assumptions, err := e.assertGuarded(conjuncts)
	if err != nil {
		return false, nil, err
	}
	var model solverfacade.Model
	res, err := e.solver.CheckSatAssuming(assumptions, func(m solverfacade.Model) { model = m }, func() {})
	if err != nil {
		return false, nil, errors.Wrap(err, "ic3ia: simulate")
	}
	if res == solverfacade.Sat {
		return true, e.trans.PathFromModel(model, k), nil
	}
	return false, nil, nil
}

// interpolateAndGrow builds the interpolation sequence A_0..A_k over a
// fresh push/pop scope, retrieves the k intermediate interpolants, drops
// any that are trivially ⊤ or ⊥ (logging an anomaly — §9's resolution of
// the spurious-interpolant open question), and grows Π and the abvar map
// with the rest.
func (e *Engine) interpolateAndGrow(path []cube, k int64) error {
	if err := e.solver.Push(); err != nil {
		return errors.Wrap(err, "ic3ia: interpolation push")
	}
	popErr := func() error { return e.solver.Pop() }

	names := make([]string, k+1)
	a0 := e.abs.Concretize(cubeTerm(e.store, path[0]))
	if err := e.solver.AssertNamedTerm("A0", a0); err != nil {
		popErr()
		return err
	}
	names[0] = "A0"
	for i := int64(1); i <= k; i++ {
		step := e.store.And(e.trans.TransOfBound(i), e.store.BumpState(e.abs.Concretize(cubeTerm(e.store, path[i])), i))
		name := fmt.Sprintf("A%d", i)
		if err := e.solver.AssertNamedTerm(name, step); err != nil {
			popErr()
			return err
		}
		names[i] = name
	}

	res, err := e.solver.CheckSatAssuming(nil, func(solverfacade.Model) {}, func() {})
	if err != nil {
		popErr()
		return errors.Wrap(err, "ic3ia: interpolation check")
	}
	if res != solverfacade.Unsat {
		popErr()
		return errors.New("ic3ia: simulate and interpolate disagree on satisfiability")
	}

	interpolants, err := e.solver.GetInterpolants(names)
	if perr := popErr(); err == nil {
		err = perr
	}
	if err != nil {
		return errors.Wrap(err, "ic3ia: get interpolants")
	}

	for i, j := range interpolants {
		ji := e.store.BumpState(j, -int64(i))
		if ji.Kind() == term.KindTrue || ji.Kind() == term.KindFalse {
			e.log.Warn("ic3ia: dropping trivial interpolant", zap.String("property", e.property.Name), zap.Int("index", i))
			if e.metrics != nil {
				e.metrics.Anomalies.WithLabelValues("trivial_interpolant").Inc()
			}
			continue
		}
		e.abs.Update([]*term.Term{ji})
		e.pi = append(e.pi, ji)
	}
	return nil
}

// couplingPi returns E_Π = ⋀{p ↔ γ(p) | p ∈ Π}, embedding the concrete
// transition relation's predicates alongside their clone-world copies.
func (e *Engine) couplingPi() *term.Term {
	eqs := make([]*term.Term, 0, len(e.pi))
	for _, p := range e.pi {
		eqs = append(eqs, e.store.Eq(p, e.clones.CloneTerm(p)))
	}
	return e.store.And(eqs...)
}

func cubeTerm(store *term.Store, c cube) *term.Term {
	lits := make([]*term.Term, 0, len(c))
	for v, val := range c {
		if val {
			lits = append(lits, v)
		} else {
			lits = append(lits, store.Not(v))
		}
	}
	return store.And(lits...)
}

// assertGuarded asserts each conjunct behind its own fresh activation
// literal and returns the literals as the assumption list for the
// following check-sat-assuming — the discipline used throughout so that
// none of these exploratory assertions need ever be popped.
func (e *Engine) assertGuarded(conjuncts []*term.Term) ([]*term.Term, error) {
	assumptions := make([]*term.Term, 0, len(conjuncts))
	for _, c := range conjuncts {
		af := e.actlits.Fresh()
		if err := e.solver.Assert(e.store.Implies(af.Term, c)); err != nil {
			return nil, errors.Wrap(err, "ic3ia: assert guarded conjunct")
		}
		assumptions = append(assumptions, af.Term)
	}
	return assumptions, nil
}

func (e *Engine) declareBounds(lo, hi int64) error {
	if hi <= e.declaredThrough && lo >= 0 {
		return nil
	}
	var err error
	derr := e.trans.DefineAndDeclareOfBounds(lo, hi, e.declareRaw(&err), e.defineRaw(&err))
	if derr != nil {
		return derr
	}
	if err == nil && hi > e.declaredThrough {
		e.declaredThrough = hi
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

// FrameCount returns the current number of frames, for tests and metrics.
func (e *Engine) FrameCount() int { return e.frames.Top() + 1 }

// AbstractionSize returns |dom(α)|, for tests and metrics.
func (e *Engine) AbstractionSize() int { return e.abs.Size() }
