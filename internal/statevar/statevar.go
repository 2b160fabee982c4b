// Package statevar defines named, scoped state-variable declarations and
// the (StateVar, offset) instances ("Var") that terms range over.
package statevar

import (
	"fmt"
	"math/big"
	"strings"
)

// Type is the sort of a StateVar. bool is first-class; integers and reals
// are carried for transition systems that need them.
type Type int

const (
	Bool Type = iota
	Int
	Real
)

func (t Type) String() string {
	switch t {
	case Bool:
		return "Bool"
	case Int:
		return "Int"
	case Real:
		return "Real"
	default:
		return "?"
	}
}

// Scope is a sequence of name segments, e.g. ["counter", "abv"] for an
// abstraction variable derived from something in scope ["counter"].
type Scope []string

func (s Scope) String() string {
	return strings.Join(s, ".")
}

// Child returns a new scope with an extra segment appended, leaving the
// receiver untouched.
func (s Scope) Child(segment string) Scope {
	out := make(Scope, len(s)+1)
	copy(out, s)
	out[len(s)] = segment
	return out
}

// StateVar is an immutable, named, scoped, typed declaration. Two StateVars
// are the same variable iff they are the same pointer; the registry that
// creates them is responsible for not duplicating a logical variable.
type StateVar struct {
	Name    string
	Scope   Scope
	Typ     Type
	IsInput bool
	IsConst bool
}

// New allocates a StateVar. Callers own deduplication.
func New(name string, scope Scope, typ Type, isInput, isConst bool) *StateVar {
	return &StateVar{Name: name, Scope: scope, Typ: typ, IsInput: isInput, IsConst: isConst}
}

// QualifiedName is the dotted scope+name used as the SMT symbol base (before
// offset suffixing).
func (v *StateVar) QualifiedName() string {
	if len(v.Scope) == 0 {
		return v.Name
	}
	return v.Scope.String() + "." + v.Name
}

// Offset is an arbitrary-precision time-frame index. Offsets are typically
// small (0, 1, 2, ...) but the data model does not bound them.
type Offset struct {
	v *big.Int
}

// Off builds an Offset from a machine int. Most call sites only ever need
// small offsets; this is the common constructor.
func Off(n int64) Offset {
	return Offset{v: big.NewInt(n)}
}

// Add returns the offset shifted by delta (delta may be negative).
func (o Offset) Add(delta int64) Offset {
	return Offset{v: new(big.Int).Add(o.v, big.NewInt(delta))}
}

// Int64 truncates to a machine int; callers must only use this where the
// offset is known to fit (true for every offset this module constructs).
func (o Offset) Int64() int64 {
	return o.v.Int64()
}

func (o Offset) Cmp(other Offset) int {
	return o.v.Cmp(other.v)
}

func (o Offset) String() string {
	return o.v.String()
}

// Var is a (StateVar, offset) instance — a single occurrence of a state
// variable at a particular time frame.
type Var struct {
	SV *StateVar
	At Offset
}

// At0 builds the offset-0 instance of sv, the canonical instance a Property
// term is written over.
func At0(sv *StateVar) Var {
	return Var{SV: sv, At: Off(0)}
}

// Bump returns the same state variable at offset At+delta.
func (v Var) Bump(delta int64) Var {
	return Var{SV: v.SV, At: v.At.Add(delta)}
}

// Key is a comparable identity for use as a map key; two Vars over the same
// StateVar pointer and the same offset integer produce equal keys.
func (v Var) Key() string {
	return fmt.Sprintf("%p@%s", v.SV, v.At.String())
}

func (v Var) String() string {
	return fmt.Sprintf("%s@%s", v.SV.QualifiedName(), v.At.String())
}
