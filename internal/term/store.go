package term

import (
	"github.com/rfielding/symcheck/internal/statevar"
)

// Store is an engine-owned interning arena: every Term ever produced by a
// given Store lives in s.byTag, indexed by its tag, and s.table maps the
// structural key of a term back to the canonical *Term for that shape.
// There is no global table — term identity is only comparable within one
// Store, matching the "arena+index" model favored over a weak-keyed global
// table.
type Store struct {
	table     map[string]*Term
	byTag     []*Term
	bumpCache map[bumpKey]*Term
}

type bumpKey struct {
	tag   int
	delta int64
}

// NewStore creates an empty interning arena.
func NewStore() *Store {
	return &Store{
		table:     make(map[string]*Term),
		bumpCache: make(map[bumpKey]*Term),
	}
}

// ByTag returns the term with the given tag, or nil if out of range.
func (s *Store) ByTag(tag int) *Term {
	if tag < 0 || tag >= len(s.byTag) {
		return nil
	}
	return s.byTag[tag]
}

func (s *Store) intern(kind Kind, children []*Term, v statevar.Var, fn string) *Term {
	k := key(kind, children, v, fn)
	if existing, ok := s.table[k]; ok {
		return existing
	}
	t := &Term{
		tag:      len(s.byTag),
		kind:     kind,
		children: children,
		v:        v,
		fn:       fn,
	}
	s.table[k] = t
	s.byTag = append(s.byTag, t)
	return t
}

// True returns the canonical boolean constant top.
func (s *Store) True() *Term { return s.intern(KindTrue, nil, statevar.Var{}, "") }

// False returns the canonical boolean constant bottom.
func (s *Store) False() *Term { return s.intern(KindFalse, nil, statevar.Var{}, "") }

// VarTerm wraps a (StateVar, offset) instance as a boolean atom. sv must be
// Bool-typed; non-boolean state variables only ever appear as operands of
// Eq or inside an uninterpreted function application.
func (s *Store) VarTerm(v statevar.Var) *Term {
	return s.intern(KindVar, nil, v, "")
}

// Not builds ¬a, collapsing double negation and constants.
func (s *Store) Not(a *Term) *Term {
	switch a.kind {
	case KindTrue:
		return s.False()
	case KindFalse:
		return s.True()
	case KindNot:
		return a.children[0]
	}
	return s.intern(KindNot, []*Term{a}, statevar.Var{}, "")
}

// And builds the n-ary conjunction of ts, flattening nested Ands and
// dropping True. An empty conjunction is True; any False makes the whole
// thing False.
func (s *Store) And(ts ...*Term) *Term {
	if len(ts) == 0 {
		return s.True()
	}
	flat, hitAbsorb := s.flatten(KindAnd, ts, s.True(), s.False())
	if hitAbsorb {
		return s.False()
	}
	if len(flat) == 0 {
		return s.True()
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return s.intern(KindAnd, flat, statevar.Var{}, "")
}

// Or builds the n-ary disjunction of ts, dual to And.
func (s *Store) Or(ts ...*Term) *Term {
	if len(ts) == 0 {
		return s.False()
	}
	flat, hitAbsorb := s.flatten(KindOr, ts, s.False(), s.True())
	if hitAbsorb {
		return s.True()
	}
	if len(flat) == 0 {
		return s.False()
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return s.intern(KindOr, flat, statevar.Var{}, "")
}

// flatten collects the operands of an associative n-ary combinator,
// dropping the identity element (ident) and recursing into nested
// applications of the same kind. hitAbsorb reports whether any operand
// equals absorb (the combinator's absorbing element), meaning the whole
// expression collapses to absorb; out is meaningless in that case. This is
// returned as a separate bool rather than signaled via a nil out, since a
// genuinely empty result (every operand was the identity element) is a
// distinct, valid outcome from hitting the absorbing element.
func (s *Store) flatten(kind Kind, ts []*Term, ident, absorb *Term) (out []*Term, hitAbsorb bool) {
	seen := make(map[int]bool)
	var walk func(*Term) bool // false => hit absorb
	walk = func(t *Term) bool {
		if t == absorb {
			return false
		}
		if t == ident {
			return true
		}
		if t.kind == kind {
			for _, c := range t.children {
				if !walk(c) {
					return false
				}
			}
			return true
		}
		if !seen[t.tag] {
			seen[t.tag] = true
			out = append(out, t)
		}
		return true
	}
	for _, t := range ts {
		if !walk(t) {
			return nil, true
		}
	}
	return out, false
}

// Implies builds a => b.
func (s *Store) Implies(a, b *Term) *Term {
	if a.kind == KindTrue {
		return b
	}
	if a.kind == KindFalse || b.kind == KindTrue {
		return s.True()
	}
	return s.intern(KindImplies, []*Term{a, b}, statevar.Var{}, "")
}

// Eq builds the equality atom a = b.
func (s *Store) Eq(a, b *Term) *Term {
	if a.tag == b.tag {
		return s.True()
	}
	return s.intern(KindEq, []*Term{a, b}, statevar.Var{}, "")
}

// Uninterp builds an application of an uninterpreted function symbol
// (including the 0-ary case, used for activation literals).
func (s *Store) Uninterp(fn string, args ...*Term) *Term {
	return s.intern(KindUninterp, args, statevar.Var{}, fn)
}

// BumpState rewrites t, shifting every free state-variable instance's
// offset by delta. The result is memoized per (tag, delta) so repeated
// bumps of shared sub-terms are O(1) after the first.
func (s *Store) BumpState(t *Term, delta int64) *Term {
	if delta == 0 {
		return t
	}
	bk := bumpKey{tag: t.tag, delta: delta}
	if cached, ok := s.bumpCache[bk]; ok {
		return cached
	}
	var out *Term
	switch t.kind {
	case KindTrue, KindFalse:
		out = t
	case KindVar:
		out = s.VarTerm(t.v.Bump(delta))
	case KindNot:
		out = s.Not(s.BumpState(t.children[0], delta))
	case KindAnd:
		out = s.And(s.bumpAll(t.children, delta)...)
	case KindOr:
		out = s.Or(s.bumpAll(t.children, delta)...)
	case KindImplies:
		out = s.Implies(s.BumpState(t.children[0], delta), s.BumpState(t.children[1], delta))
	case KindEq:
		out = s.Eq(s.BumpState(t.children[0], delta), s.BumpState(t.children[1], delta))
	case KindUninterp:
		out = s.Uninterp(t.fn, s.bumpAll(t.children, delta)...)
	default:
		out = t
	}
	s.bumpCache[bk] = out
	return out
}

func (s *Store) bumpAll(ts []*Term, delta int64) []*Term {
	out := make([]*Term, len(ts))
	for i, c := range ts {
		out[i] = s.BumpState(c, delta)
	}
	return out
}

// SubTerms returns every distinct node (by tag) reachable from t, including
// t itself, in a stable post-order.
func (s *Store) SubTerms(t *Term) []*Term {
	var out []*Term
	seen := make(map[int]bool)
	var walk func(*Term)
	walk = func(n *Term) {
		if seen[n.tag] {
			return
		}
		seen[n.tag] = true
		for _, c := range n.children {
			walk(c)
		}
		out = append(out, n)
	}
	walk(t)
	return out
}

// Atoms returns the distinct atomic sub-terms of t (see Term.IsAtom),
// obtained via a bottom-up traversal that stops descending once it reaches
// an atom.
func (s *Store) Atoms(t *Term) []*Term {
	var out []*Term
	seen := make(map[int]bool)
	var walk func(*Term)
	walk = func(n *Term) {
		if n.IsAtom() {
			if !seen[n.tag] {
				seen[n.tag] = true
				out = append(out, n)
			}
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t)
	return out
}

// Substitute rewrites t, replacing every occurrence of a key of repl
// (compared by tag) with the corresponding value. Used both to instantiate
// uninterpreted-function macro bodies with actual arguments and to
// concretize abstraction atoms back to their concrete preimage.
func (s *Store) Substitute(t *Term, repl map[int]*Term) *Term {
	cache := make(map[int]*Term)
	var walk func(*Term) *Term
	walk = func(n *Term) *Term {
		if r, ok := repl[n.tag]; ok {
			return r
		}
		if c, ok := cache[n.tag]; ok {
			return c
		}
		var out *Term
		switch n.kind {
		case KindTrue, KindFalse, KindVar:
			out = n
		case KindNot:
			out = s.Not(walk(n.children[0]))
		case KindAnd:
			out = s.And(walkAll(walk, n.children)...)
		case KindOr:
			out = s.Or(walkAll(walk, n.children)...)
		case KindImplies:
			out = s.Implies(walk(n.children[0]), walk(n.children[1]))
		case KindEq:
			out = s.Eq(walk(n.children[0]), walk(n.children[1]))
		case KindUninterp:
			out = s.Uninterp(n.fn, walkAll(walk, n.children)...)
		default:
			out = n
		}
		cache[n.tag] = out
		return out
	}
	return walk(t)
}

func walkAll(walk func(*Term) *Term, ts []*Term) []*Term {
	out := make([]*Term, len(ts))
	for i, c := range ts {
		out[i] = walk(c)
	}
	return out
}

// FreeVars returns the distinct (StateVar, offset) instances occurring in t.
func (s *Store) FreeVars(t *Term) []statevar.Var {
	var out []statevar.Var
	seen := make(map[string]bool)
	for _, n := range s.SubTerms(t) {
		if n.kind == KindVar {
			k := n.v.Key()
			if !seen[k] {
				seen[k] = true
				out = append(out, n.v)
			}
		}
	}
	return out
}
