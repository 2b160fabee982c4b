package solverfacade

import (
	"testing"

	"github.com/rfielding/symcheck/internal/term"
)

func TestNewDefaultsToZ3(t *testing.T) {
	store := term.NewStore()
	solver, err := New("", store)
	if err != nil {
		t.Fatalf("New(\"\") error: %v", err)
	}
	if _, ok := solver.(*Z3Solver); !ok {
		t.Errorf("New(\"\") = %T, want *Z3Solver", solver)
	}
}

func TestNewExplicitZ3(t *testing.T) {
	store := term.NewStore()
	solver, err := New("z3", store)
	if err != nil {
		t.Fatalf("New(\"z3\") error: %v", err)
	}
	if _, ok := solver.(*Z3Solver); !ok {
		t.Errorf("New(\"z3\") = %T, want *Z3Solver", solver)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	store := term.NewStore()
	if _, err := New("mathsat", store); err == nil {
		t.Error("New(\"mathsat\") error = nil, want an error (no other backend is wired)")
	}
}
