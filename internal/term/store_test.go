package term

import (
	"testing"

	"github.com/rfielding/symcheck/internal/statevar"
)

func testVar(s *Store, name string) statevar.Var {
	sv := statevar.New(name, statevar.Scope{"test"}, statevar.Bool, false, false)
	return statevar.At0(sv)
}

func TestAndOrEmptyIdentity(t *testing.T) {
	s := NewStore()
	if got := s.And(); got != s.True() {
		t.Errorf("And() with no operands = %v, want True", got)
	}
	if got := s.Or(); got != s.False() {
		t.Errorf("Or() with no operands = %v, want False", got)
	}
}

func TestAndAbsorbsFalse(t *testing.T) {
	s := NewStore()
	a := s.VarTerm(testVar(s, "a"))
	if got := s.And(a, s.False()); got != s.False() {
		t.Errorf("And(a, False) = %v, want False", got)
	}
}

func TestOrAbsorbsTrue(t *testing.T) {
	s := NewStore()
	a := s.VarTerm(testVar(s, "a"))
	if got := s.Or(a, s.True()); got != s.True() {
		t.Errorf("Or(a, True) = %v, want True", got)
	}
}

func TestAndOfOnlyIdentityElements(t *testing.T) {
	s := NewStore()
	if got := s.And(s.True(), s.True()); got != s.True() {
		t.Errorf("And(True, True) = %v, want True", got)
	}
	if got := s.Or(s.False(), s.False()); got != s.False() {
		t.Errorf("Or(False, False) = %v, want False", got)
	}
}

func TestAndFlattensNested(t *testing.T) {
	s := NewStore()
	a := s.VarTerm(testVar(s, "a"))
	b := s.VarTerm(testVar(s, "b"))
	c := s.VarTerm(testVar(s, "c"))
	nested := s.And(s.And(a, b), c)
	flat := s.And(a, b, c)
	if nested != flat {
		t.Errorf("nested And did not flatten to the same term as a flat And")
	}
}

func TestBumpStateRoundTrips(t *testing.T) {
	s := NewStore()
	a := s.VarTerm(testVar(s, "a"))
	bumped := s.BumpState(a, 3)
	back := s.BumpState(bumped, -3)
	if back != a {
		t.Errorf("BumpState(BumpState(a, 3), -3) = %v, want %v", back, a)
	}
}

func TestNotDoubleNegationCollapses(t *testing.T) {
	s := NewStore()
	a := s.VarTerm(testVar(s, "a"))
	if got := s.Not(s.Not(a)); got != a {
		t.Errorf("Not(Not(a)) = %v, want a", got)
	}
}
