// Package actlit manages activation literals: fresh or canonical nullary
// boolean uninterpreted symbols used to guard SMT assertions so they can be
// retracted by simply never assuming them again, rather than by popping the
// solver stack.
package actlit

import (
	"fmt"

	"github.com/rfielding/symcheck/internal/term"
)

// Literal is a 0-ary boolean uninterpreted symbol. Its Term is always a
// KindUninterp application with zero arguments, so it composes with the
// rest of the term layer (And, Implies, ...) like any other boolean term.
type Literal struct {
	Name string
	Term *term.Term
}

// Registry allocates activation literals for one engine. Canonical literals
// are deterministic and declared exactly once per term; fresh literals are
// unique and declared on creation. declareFn is invoked exactly once per
// literal, at the point it is first minted, so the caller can forward the
// declaration to a Solver.
type Registry struct {
	store     *term.Store
	declareFn func(name string)
	counter   int64
	canonical map[int]*Literal // term tag -> canonical literal
}

// NewRegistry creates a Registry that declares new literals via declareFn.
func NewRegistry(store *term.Store, declareFn func(name string)) *Registry {
	return &Registry{
		store:     store,
		declareFn: declareFn,
		canonical: make(map[int]*Literal),
	}
}

// Canonical returns the canonical activation literal for t, minting and
// declaring it on first use and returning the same Literal on every
// subsequent call for the same term.
func (r *Registry) Canonical(t *term.Term) *Literal {
	if lit, ok := r.canonical[t.Tag()]; ok {
		return lit
	}
	name := fmt.Sprintf("actlit_%d", t.Tag())
	lit := &Literal{Name: name, Term: r.store.Uninterp(name)}
	r.canonical[t.Tag()] = lit
	r.declareFn(name)
	return lit
}

// Fresh mints a new, never-before-seen activation literal and declares it
// immediately.
func (r *Registry) Fresh() *Literal {
	name := fmt.Sprintf("fresh_actlit_%d", r.counter)
	r.counter++
	lit := &Literal{Name: name, Term: r.store.Uninterp(name)}
	r.declareFn(name)
	return lit
}
