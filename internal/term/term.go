// Package term implements a hash-consed expression tree with structural
// term identity: every Term carries a stable integer tag such that
// tag(t1) == tag(t2) iff t1 and t2 are structurally identical.
package term

import (
	"fmt"
	"strings"

	"github.com/rfielding/symcheck/internal/statevar"
)

// Kind discriminates the closed set of term shapes this module builds.
type Kind int

const (
	KindTrue Kind = iota
	KindFalse
	KindVar
	KindNot
	KindAnd
	KindOr
	KindImplies
	KindEq
	KindUninterp
)

// Term is an immutable node in a hash-consed expression. Terms are only
// ever produced by a Store, which guarantees the tag invariant.
type Term struct {
	tag      int
	kind     Kind
	children []*Term
	v        statevar.Var // valid when kind == KindVar
	fn       string       // valid when kind == KindUninterp
}

func (t *Term) Tag() int          { return t.tag }
func (t *Term) Kind() Kind        { return t.kind }
func (t *Term) Children() []*Term { return t.children }
func (t *Term) Var() statevar.Var { return t.v }
func (t *Term) Func() string      { return t.fn }

// IsAtom reports whether t is a leaf fact rather than a boolean combinator:
// a bare boolean variable occurrence, an equality, or an uninterpreted
// predicate application. True/False are constants, not atoms.
func (t *Term) IsAtom() bool {
	switch t.kind {
	case KindVar, KindEq, KindUninterp:
		return true
	default:
		return false
	}
}

func (t *Term) String() string {
	switch t.kind {
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindVar:
		return t.v.String()
	case KindNot:
		return "(not " + t.children[0].String() + ")"
	case KindAnd:
		return paren("and", t.children)
	case KindOr:
		return paren("or", t.children)
	case KindImplies:
		return "(=> " + t.children[0].String() + " " + t.children[1].String() + ")"
	case KindEq:
		return "(= " + t.children[0].String() + " " + t.children[1].String() + ")"
	case KindUninterp:
		parts := make([]string, len(t.children))
		for i, c := range t.children {
			parts[i] = c.String()
		}
		if len(parts) == 0 {
			return t.fn
		}
		return "(" + t.fn + " " + strings.Join(parts, " ") + ")"
	default:
		return "?"
	}
}

func paren(op string, children []*Term) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + op + " " + strings.Join(parts, " ") + ")"
}

// key returns a structural hash-key for interning. Children are already
// interned, so their tags fully determine structural identity.
func key(kind Kind, children []*Term, v statevar.Var, fn string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", kind)
	switch kind {
	case KindVar:
		sb.WriteByte('|')
		sb.WriteString(v.Key())
	case KindUninterp:
		sb.WriteByte('|')
		sb.WriteString(fn)
	}
	for _, c := range children {
		fmt.Fprintf(&sb, ",%d", c.tag)
	}
	return sb.String()
}
