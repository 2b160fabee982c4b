package ic3ia

import (
	"testing"

	"github.com/rfielding/symcheck/internal/statevar"
	"github.com/rfielding/symcheck/internal/term"
)

func TestCloneTermSubstitutesOnlyTrackedVars(t *testing.T) {
	s := term.NewStore()
	sv := statevar.New("x", statevar.Scope{"test"}, statevar.Bool, false, false)
	x0 := s.VarTerm(statevar.At0(sv))
	x1 := s.VarTerm(statevar.Var{SV: sv, At: statevar.Off(1)})

	clones := NewCloneMap(s, []*statevar.StateVar{sv})
	t0 := clones.CloneTerm(x0)
	t1 := clones.CloneTerm(x1)

	if t0 == x0 {
		t.Fatalf("CloneTerm did not substitute the offset-0 occurrence")
	}
	if t1 == x1 {
		t.Fatalf("CloneTerm did not substitute the offset-1 occurrence")
	}
	if s.FreeVars(t0)[0].At.Int64() != 0 {
		t.Errorf("clone of x@0 landed at a different offset")
	}
	if s.FreeVars(t1)[0].At.Int64() != 1 {
		t.Errorf("clone of x@1 landed at a different offset")
	}
}

func TestCloneMapIgnoresUntrackedVars(t *testing.T) {
	s := term.NewStore()
	sv := statevar.New("x", statevar.Scope{"test"}, statevar.Bool, false, false)
	other := statevar.New("y", statevar.Scope{"test"}, statevar.Bool, false, false)
	y0 := s.VarTerm(statevar.At0(other))

	clones := NewCloneMap(s, []*statevar.StateVar{sv})
	if got := clones.CloneTerm(y0); got != y0 {
		t.Errorf("CloneTerm substituted an untracked state variable: got %v, want %v", got, y0)
	}
}
