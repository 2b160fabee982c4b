// Package ic3ia implements the IC3-with-Implicit-Abstraction engine of
// §4.2: a predicate-abstracted frame sequence, relative-induction checking,
// recursive blocking (as an explicit worklist per §9's design note), and
// counterexample refinement via interpolation.
package ic3ia

import (
	"fmt"

	"github.com/rfielding/symcheck/internal/statevar"
	"github.com/rfielding/symcheck/internal/term"
)

// pair keeps an (atom, abvar) mapping entry in insertion order so Coupling
// and AbvarTerms are deterministic across runs.
type pair struct {
	atom *term.Term
	abv  *term.Term
}

// Abstraction owns the abvar map α described in §3: a bijection from
// concrete predicate atoms to fresh boolean abstraction variables ("abv"
// scope), grown monotonically by update_abvar_map and never shrunk.
type Abstraction struct {
	store    *term.Store
	pairs    []pair
	alpha    map[int]*term.Term            // atom tag -> abvar term
	preimage map[*statevar.StateVar]*term.Term // abv statevar -> concrete atom (offset 0)
	counter  int64
}

// NewAbstraction creates an empty abvar map over store.
func NewAbstraction(store *term.Store) *Abstraction {
	return &Abstraction{
		store:    store,
		alpha:    make(map[int]*term.Term),
		preimage: make(map[*statevar.StateVar]*term.Term),
	}
}

// Update is update_abvar_map (§4.2 setup step 2 / refinement step 3):
// collects the atoms of every predicate in preds, drops any atom already
// in α, and for each genuinely new atom allocates a fresh boolean abvar in
// scope [scope-of-atom, "abv"]. It returns the newly minted abvar terms
// (callers declare these at whichever offsets they need). Calling Update
// twice with the same preds adds nothing the second time (§8 idempotence).
func (a *Abstraction) Update(preds []*term.Term) []*term.Term {
	var added []*term.Term
	for _, p := range preds {
		for _, atom := range a.store.Atoms(p) {
			if _, ok := a.alpha[atom.Tag()]; ok {
				continue
			}
			sv := a.newAbvar(atom)
			abv := a.store.VarTerm(statevar.At0(sv))
			a.alpha[atom.Tag()] = abv
			a.preimage[sv] = atom
			a.pairs = append(a.pairs, pair{atom: atom, abv: abv})
			added = append(added, abv)
		}
	}
	return added
}

func (a *Abstraction) newAbvar(atom *term.Term) *statevar.StateVar {
	scope := scopeOfAtom(a.store, atom)
	name := fmt.Sprintf("abv%d", a.counter)
	a.counter++
	return statevar.New(name, scope.Child("abv"), statevar.Bool, false, false)
}

func scopeOfAtom(store *term.Store, atom *term.Term) statevar.Scope {
	fvs := store.FreeVars(atom)
	if len(fvs) > 0 {
		return fvs[0].SV.Scope
	}
	return statevar.Scope{"atom"}
}

// Abstract substitutes every atom of t that is in dom(α) with its abvar,
// producing α(t) as used for α(I), α(P), and refinement interpolants.
func (a *Abstraction) Abstract(t *term.Term) *term.Term {
	repl := make(map[int]*term.Term)
	for _, atom := range a.store.Atoms(t) {
		if abv, ok := a.alpha[atom.Tag()]; ok {
			repl[atom.Tag()] = abv
		}
	}
	return a.store.Substitute(t, repl)
}

// Coupling returns H = ⋀{a = α[a] | a ∈ dom(α)}.
func (a *Abstraction) Coupling() *term.Term {
	eqs := make([]*term.Term, 0, len(a.pairs))
	for _, p := range a.pairs {
		eqs = append(eqs, a.store.Eq(p.atom, p.abv))
	}
	return a.store.And(eqs...)
}

// AbvarTerms returns every abvar term in α's range, in insertion order.
func (a *Abstraction) AbvarTerms() []*term.Term {
	out := make([]*term.Term, 0, len(a.pairs))
	for _, p := range a.pairs {
		out = append(out, p.abv)
	}
	return out
}

// AbvarStateVars returns the underlying StateVars, for declaration.
func (a *Abstraction) AbvarStateVars() []*statevar.StateVar {
	out := make([]*statevar.StateVar, 0, len(a.pairs))
	for sv := range a.preimage {
		out = append(out, sv)
	}
	return out
}

// Concretize is the inverse of Abstract (§8 round-trip property:
// concretize(α(t)) = t for atoms in dom(α)): it substitutes every
// occurrence of an abvar, at whatever offset it appears, with its
// preimage atom bumped by that same offset.
func (a *Abstraction) Concretize(t *term.Term) *term.Term {
	repl := make(map[int]*term.Term)
	for _, sub := range a.store.SubTerms(t) {
		if sub.Kind() != term.KindVar {
			continue
		}
		sv := sub.Var().SV
		atom0, ok := a.preimage[sv]
		if !ok {
			continue
		}
		repl[sub.Tag()] = a.store.BumpState(atom0, sub.Var().At.Int64())
	}
	return a.store.Substitute(t, repl)
}

// Size reports the current number of tracked atoms, for metrics.
func (a *Abstraction) Size() int { return len(a.pairs) }
