package ic3ia

import (
	"github.com/rfielding/symcheck/internal/statevar"
	"github.com/rfielding/symcheck/internal/term"
)

// CloneMap is γ (§3): a second copy of every concrete state variable,
// living in scope [orig, "cln"], used to embed the concrete transition
// relation T(γ) alongside the abstract reasoning inside a single solver
// context without the two colliding.
type CloneMap struct {
	store *term.Store
	orig  map[*statevar.StateVar]*statevar.StateVar
}

// NewCloneMap allocates one clone per StateVar in svars.
func NewCloneMap(store *term.Store, svars []*statevar.StateVar) *CloneMap {
	m := &CloneMap{store: store, orig: make(map[*statevar.StateVar]*statevar.StateVar, len(svars))}
	for _, sv := range svars {
		clone := statevar.New(sv.Name, sv.Scope.Child("cln"), sv.Typ, sv.IsInput, sv.IsConst)
		m.orig[sv] = clone
	}
	return m
}

// StateVars returns the clone StateVars, for declaration.
func (m *CloneMap) StateVars() []*statevar.StateVar {
	out := make([]*statevar.StateVar, 0, len(m.orig))
	for _, cl := range m.orig {
		out = append(out, cl)
	}
	return out
}

// CloneTerm rewrites t, substituting every original state variable
// occurrence with its clone at the same offset, i.e. computes γ(t).
func (m *CloneMap) CloneTerm(t *term.Term) *term.Term {
	repl := make(map[int]*term.Term)
	for _, sub := range m.store.SubTerms(t) {
		if sub.Kind() != term.KindVar {
			continue
		}
		v := sub.Var()
		if clone, ok := m.orig[v.SV]; ok {
			repl[sub.Tag()] = m.store.VarTerm(statevar.Var{SV: clone, At: v.At})
		}
	}
	return m.store.Substitute(t, repl)
}
