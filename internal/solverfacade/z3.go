package solverfacade

// Adapter backing Solver with Z3's incremental API, grounded on the
// assert/push/pop/AssertAndTrack discipline shown in the pack's
// aclements/go-z3 users (borzacchiello/gosmt's z3backend and
// Slava0135/gobber's solveIncrementWithAssumptions): check-sat-assuming is
// implemented as push, AssertAndTrack one boolean const per assumption,
// Check, then pop, rather than a native assumption-list API.

import (
	"fmt"

	"github.com/aclements/go-z3/z3"
	"github.com/pkg/errors"

	"github.com/rfielding/symcheck/internal/term"
)

// New selects a Solver by backend name, per config.Solver.Backend. "z3" and
// "" (the zero value, treated as the default) build a Z3Solver; any other
// name is rejected rather than silently falling back, since no other
// backend is wired in this module yet.
func New(backend string, store *term.Store) (Solver, error) {
	switch backend {
	case "", "z3":
		return NewZ3Solver(store), nil
	default:
		return nil, errors.Errorf("solverfacade: unknown backend %q (only \"z3\" is wired)", backend)
	}
}

type macro struct {
	params []*term.Term // formal parameter terms (KindVar placeholders)
	body   *term.Term
}

// Z3Solver is a Solver backed by a single Z3 context and incremental
// solver instance.
type Z3Solver struct {
	store *term.Store

	ctx    *z3.Context
	solver *z3.Solver

	decls  map[string]z3.Bool // 0-ary boolean consts, the only arity the engines declare directly
	macros map[string]macro
	cache  map[int]z3.Bool
	names  map[string]z3.Bool // AssertNamedTerm tracking refs, for GetInterpolants partitions
}

// NewZ3Solver opens a fresh Z3 context and incremental solver.
func NewZ3Solver(store *term.Store) *Z3Solver {
	cfg := z3.NewContextConfig()
	ctx := z3.NewContext(cfg)
	return &Z3Solver{
		store:  store,
		ctx:    ctx,
		solver: z3.NewSolver(ctx),
		decls:  make(map[string]z3.Bool),
		macros: make(map[string]macro),
		cache:  make(map[int]z3.Bool),
		names:  make(map[string]z3.Bool),
	}
}

func (z *Z3Solver) DeclareFun(name string, argSorts []Sort, ret Sort) error {
	if len(argSorts) != 0 || ret != SortBool {
		return errors.Errorf("solverfacade: z3 adapter only declares 0-ary boolean symbols directly, got %s/%d args", name, len(argSorts))
	}
	if _, ok := z.decls[name]; ok {
		return nil
	}
	z.decls[name] = z.ctx.BoolConst(name)
	return nil
}

func (z *Z3Solver) DefineFun(name string, argSorts []Sort, ret Sort, params []*term.Term, body *term.Term) error {
	z.macros[name] = macro{params: params, body: body}
	return nil
}

func (z *Z3Solver) DeclareSort(name string, arity int) error {
	// No user-declared uninterpreted sorts are needed by either engine;
	// every StateVar type in this module is bool/int/real.
	return nil
}

func (z *Z3Solver) compile(t *term.Term) (z3.Bool, error) {
	if cached, ok := z.cache[t.Tag()]; ok {
		return cached, nil
	}
	var out z3.Bool
	switch t.Kind() {
	case term.KindTrue:
		out = z.ctx.FromBool(true)
	case term.KindFalse:
		out = z.ctx.FromBool(false)
	case term.KindVar:
		v := t.Var()
		out = z.ctx.BoolConst(v.String())
	case term.KindNot:
		c, err := z.compile(t.Children()[0])
		if err != nil {
			return z3.Bool{}, err
		}
		out = c.Not()
	case term.KindAnd:
		cs, err := z.compileAll(t.Children())
		if err != nil {
			return z3.Bool{}, err
		}
		out = cs[0]
		for _, c := range cs[1:] {
			out = out.And(c)
		}
	case term.KindOr:
		cs, err := z.compileAll(t.Children())
		if err != nil {
			return z3.Bool{}, err
		}
		out = cs[0]
		for _, c := range cs[1:] {
			out = out.Or(c)
		}
	case term.KindImplies:
		a, err := z.compile(t.Children()[0])
		if err != nil {
			return z3.Bool{}, err
		}
		b, err := z.compile(t.Children()[1])
		if err != nil {
			return z3.Bool{}, err
		}
		out = a.Implies(b)
	case term.KindEq:
		a, err := z.compile(t.Children()[0])
		if err != nil {
			return z3.Bool{}, err
		}
		b, err := z.compile(t.Children()[1])
		if err != nil {
			return z3.Bool{}, err
		}
		out = a.Iff(b)
	case term.KindUninterp:
		if m, ok := z.macros[t.Func()]; ok {
			repl := make(map[int]*term.Term, len(m.params))
			for i, p := range m.params {
				if i < len(t.Children()) {
					repl[p.Tag()] = t.Children()[i]
				}
			}
			return z.compile(z.store.Substitute(m.body, repl))
		}
		if len(t.Children()) == 0 {
			if c, ok := z.decls[t.Func()]; ok {
				out = c
			} else {
				out = z.ctx.BoolConst(t.Func())
			}
		} else {
			return z3.Bool{}, errors.Errorf("solverfacade: undeclared uninterpreted predicate %s", t.Func())
		}
	default:
		return z3.Bool{}, errors.Errorf("solverfacade: unknown term kind %d", t.Kind())
	}
	z.cache[t.Tag()] = out
	return out, nil
}

func (z *Z3Solver) compileAll(ts []*term.Term) ([]z3.Bool, error) {
	out := make([]z3.Bool, len(ts))
	for i, t := range ts {
		c, err := z.compile(t)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (z *Z3Solver) Assert(t *term.Term) error {
	c, err := z.compile(t)
	if err != nil {
		return err
	}
	z.solver.Assert(c)
	return nil
}

func (z *Z3Solver) Push() error {
	z.solver.Push()
	return nil
}

func (z *Z3Solver) Pop() error {
	z.solver.Pop()
	return nil
}

// CheckSatAssuming pushes a scope, tracks each assumption under a dedicated
// boolean ref so the Pop leaves no trace, checks, invokes the matching
// handler, and pops unconditionally.
func (z *Z3Solver) CheckSatAssuming(assumptions []*term.Term, ifSat func(Model), ifUnsat func()) (CheckResult, error) {
	z.solver.Push()
	defer z.solver.Pop()
	for i, a := range assumptions {
		c, err := z.compile(a)
		if err != nil {
			return Unknown, err
		}
		ref := z.ctx.BoolConst(fmt.Sprintf("__assume_%d", i))
		z.solver.AssertAndTrack(c, ref)
	}
	sat, err := z.solver.Check()
	if err != nil {
		return Unknown, errors.Wrap(err, "solverfacade: check-sat-assuming")
	}
	if sat {
		if ifSat != nil {
			ifSat(&z3Model{solver: z})
		}
		return Sat, nil
	}
	if ifUnsat != nil {
		ifUnsat()
	}
	return Unsat, nil
}

func (z *Z3Solver) CheckSatAssumingAndGetValues(assumptions []*term.Term, termsToEvaluate []*term.Term, ifSat func(map[*term.Term]bool), ifUnsat func()) (CheckResult, error) {
	var result CheckResult
	var evalErr error
	res, err := z.CheckSatAssuming(assumptions, func(m Model) {
		vals := make(map[*term.Term]bool, len(termsToEvaluate))
		for _, t := range termsToEvaluate {
			v, ok := m.Eval(t)
			if ok {
				vals[t] = v
			}
		}
		if ifSat != nil {
			ifSat(vals)
		}
	}, ifUnsat)
	result = res
	if err != nil {
		evalErr = err
	}
	return result, evalErr
}

func (z *Z3Solver) GetModel() (Model, error) {
	return &z3Model{solver: z}, nil
}

func (z *Z3Solver) AssertNamedTerm(name string, t *term.Term) error {
	c, err := z.compile(t)
	if err != nil {
		return err
	}
	ref := z.ctx.BoolConst("__named_" + name)
	z.solver.AssertAndTrack(c, ref)
	z.names[name] = ref
	return nil
}

// GetInterpolants is unsupported: Z3's public incremental Go binding used
// in this module does not expose Craig interpolation (the old
// z3_interpolation API was MathSAT/iZ3-specific and is not part of the
// binding this package builds on). Engines drive interpolation through the
// Solver interface, so swapping in a MathSAT-backed adapter does not
// require touching ic3ia — see DESIGN.md's Open Question resolution.
func (z *Z3Solver) GetInterpolants(names []string) ([]*term.Term, error) {
	return nil, ErrInterpolationUnsupported
}

type z3Model struct {
	solver *Z3Solver
}

func (m *z3Model) Eval(t *term.Term) (bool, bool) {
	c, err := m.solver.compile(t)
	if err != nil {
		return false, false
	}
	model := m.solver.solver.Model()
	if model == nil {
		return false, false
	}
	v := model.Eval(c, true)
	b, ok := v.(z3.Bool)
	if !ok {
		return false, false
	}
	truth, isLit := b.AsBool()
	if !isLit {
		return false, false
	}
	return truth, true
}
