package main

import (
	"testing"

	"github.com/rfielding/symcheck/internal/statevar"
	"github.com/rfielding/symcheck/internal/term"
)

func TestResolveSeedPredicatesLooksUpByName(t *testing.T) {
	store := term.NewStore()
	trans, err := buildSystem("counter", store)
	if err != nil {
		t.Fatalf("buildSystem() error: %v", err)
	}

	preds, err := resolveSeedPredicates(trans, store, []string{"b0"})
	if err != nil {
		t.Fatalf("resolveSeedPredicates() error: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("resolveSeedPredicates() = %v, want one term", preds)
	}

	var b0 *statevar.StateVar
	for _, sv := range trans.StateVars() {
		if sv.Name == "b0" {
			b0 = sv
		}
	}
	if b0 == nil {
		t.Fatalf("counter's b0 state variable not found")
	}
	if want := store.VarTerm(statevar.At0(b0)); preds[0] != want {
		t.Errorf("resolveSeedPredicates()[0] = %v, want the offset-0 term for b0 (%v)", preds[0], want)
	}
}

func TestResolveSeedPredicatesRejectsUnknownName(t *testing.T) {
	store := term.NewStore()
	trans, err := buildSystem("counter", store)
	if err != nil {
		t.Fatalf("buildSystem() error: %v", err)
	}

	if _, err := resolveSeedPredicates(trans, store, []string{"not_a_state_var"}); err == nil {
		t.Error("resolveSeedPredicates() error = nil, want an error for an unknown name")
	}
}

func TestResolveSeedPredicatesEmptyIsNoop(t *testing.T) {
	store := term.NewStore()
	trans, err := buildSystem("counter", store)
	if err != nil {
		t.Fatalf("buildSystem() error: %v", err)
	}

	preds, err := resolveSeedPredicates(trans, store, nil)
	if err != nil {
		t.Fatalf("resolveSeedPredicates(nil) error: %v", err)
	}
	if preds != nil {
		t.Errorf("resolveSeedPredicates(nil) = %v, want nil", preds)
	}
}
