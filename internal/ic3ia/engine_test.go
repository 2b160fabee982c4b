package ic3ia

import (
	"testing"

	"go.uber.org/zap"

	"github.com/rfielding/symcheck/internal/solverfacade"
	"github.com/rfielding/symcheck/internal/statevar"
	"github.com/rfielding/symcheck/internal/term"
	"github.com/rfielding/symcheck/internal/ts"
	"github.com/rfielding/symcheck/models/counter"
)

// oneRound returns a done closure that lets Run's main loop execute exactly
// one block/propagate/extend-top cycle before reporting done, so a test can
// drive the loop to a fixpoint a round at a time and inspect Outcome between
// rounds.
func oneRound() func() bool {
	calls := 0
	return func() bool {
		calls++
		return calls > 1
	}
}

func TestTriviallyTrueProvesInvariant(t *testing.T) {
	store := term.NewStore()
	trans := counter.NewTriviallyTrue(store)
	prop := trans.PropsListOfBound(0)[0]

	solver := solverfacade.NewZ3Solver(store)
	eng := New(trans, prop, solver, store, zap.NewNop(), nil)
	outcome, _, err := eng.Setup()
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if outcome != Continue {
		t.Fatalf("Setup() outcome = %v, want Continue (the trivially-true system should not fail at setup)", outcome)
	}
	outcome, _, err = eng.Run(func() bool { return false })
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if outcome != Success {
		t.Errorf("Run() outcome = %v, want Success", outcome)
	}
}

func TestTriviallyFalseFailsAtSetup(t *testing.T) {
	store := term.NewStore()
	trans := counter.NewTriviallyFalse(store)
	prop := trans.PropsListOfBound(0)[0]

	solver := solverfacade.NewZ3Solver(store)
	eng := New(trans, prop, solver, store, zap.NewNop(), nil)
	outcome, trace, err := eng.Setup()
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if outcome != Failure {
		t.Fatalf("Setup() outcome = %v, want Failure", outcome)
	}
	if trace == nil || len(trace.Steps) != 1 {
		t.Errorf("Setup() trace = %v, want a single-step trace", trace)
	}
}

func TestTwoBitCounterFindsRealCounterexample(t *testing.T) {
	store := term.NewStore()
	trans := counter.NewTwoBitCounter(store)
	prop := trans.PropsListOfBound(0)[0]

	solver := solverfacade.NewZ3Solver(store)
	eng := New(trans, prop, solver, store, zap.NewNop(), nil)
	outcome, _, err := eng.Setup()
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if outcome != Continue {
		t.Fatalf("Setup() outcome = %v, want Continue", outcome)
	}

	var trace *ts.Trace
	finalOutcome := Continue
	for i := 0; i < 50 && finalOutcome == Continue; i++ {
		finalOutcome, trace, err = eng.Run(oneRound())
		if err != nil {
			t.Fatalf("Run() error at round %d: %v", i, err)
		}
	}
	if finalOutcome != Failure {
		t.Fatalf("two-bit-counter outcome = %v, want Failure (the counter genuinely reaches 3 at step 3)", finalOutcome)
	}
	if trace == nil || len(trace.Steps) != 4 {
		t.Fatalf("trace = %v, want 4 steps (offsets 0..3, the 3-step walk from I to counter=3)", trace)
	}
	last := trace.Steps[3]
	var b0, b1 *statevar.StateVar
	for _, sv := range trans.StateVars() {
		switch sv.Name {
		case "b0":
			b0 = sv
		case "b1":
			b1 = sv
		}
	}
	if b0 == nil || b1 == nil {
		t.Fatalf("two-bit-counter's state variables not found: b0=%v b1=%v", b0, b1)
	}
	if v, ok := last[b0].(bool); !ok || !v {
		t.Errorf("trace step 3: b0 = %v, want true (counter = 3)", last[b0])
	}
	if v, ok := last[b1].(bool); !ok || !v {
		t.Errorf("trace step 3: b1 = %v, want true (counter = 3)", last[b1])
	}
}

func TestSeedPredicatesAreFoldedIntoInitialPi(t *testing.T) {
	store := term.NewStore()
	trans := counter.NewTwoBitCounter(store)
	prop := trans.PropsListOfBound(0)[0]

	var b0 *statevar.StateVar
	for _, sv := range trans.StateVars() {
		if sv.Name == "b0" {
			b0 = sv
		}
	}
	if b0 == nil {
		t.Fatalf("two-bit-counter's b0 state variable not found")
	}
	seed := store.VarTerm(statevar.At0(b0))

	solver := solverfacade.NewZ3Solver(store)
	eng := New(trans, prop, solver, store, zap.NewNop(), nil)
	eng.SetSeedPredicates([]*term.Term{seed})
	if _, _, err := eng.Setup(); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}

	found := false
	for _, p := range eng.pi {
		if p == seed {
			found = true
		}
	}
	if !found {
		t.Errorf("seed predicate not present in pi after Setup(); pi = %v", eng.pi)
	}
}

func TestPropagationBatchSizeOneStillProvesSharedBuffer(t *testing.T) {
	store := term.NewStore()
	trans := counter.NewSharedBuffer(store, 2)
	prop := trans.PropsListOfBound(0)[0]

	solver := solverfacade.NewZ3Solver(store)
	eng := New(trans, prop, solver, store, zap.NewNop(), nil)
	eng.SetPropagationBatchSize(1)
	outcome, _, err := eng.Setup()
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if outcome != Continue {
		t.Fatalf("Setup() outcome = %v, want Continue", outcome)
	}

	finalOutcome := Continue
	for i := 0; i < 50 && finalOutcome == Continue; i++ {
		finalOutcome, _, err = eng.Run(oneRound())
		if err != nil {
			t.Fatalf("Run() error at round %d: %v", i, err)
		}
	}
	if finalOutcome != Success {
		t.Errorf("shared-buffer outcome with batch size 1 = %v, want Success (batching only defers propagation, never drops it)", finalOutcome)
	}
}

func TestSharedBufferProvesMutualExclusion(t *testing.T) {
	store := term.NewStore()
	trans := counter.NewSharedBuffer(store, 2)
	prop := trans.PropsListOfBound(0)[0]

	solver := solverfacade.NewZ3Solver(store)
	eng := New(trans, prop, solver, store, zap.NewNop(), nil)
	outcome, _, err := eng.Setup()
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if outcome != Continue {
		t.Fatalf("Setup() outcome = %v, want Continue", outcome)
	}

	finalOutcome := Continue
	for i := 0; i < 50 && finalOutcome == Continue; i++ {
		finalOutcome, _, err = eng.Run(oneRound())
		if err != nil {
			t.Fatalf("Run() error at round %d: %v", i, err)
		}
	}
	if finalOutcome != Success {
		t.Errorf("shared-buffer outcome = %v, want Success (the arbiter already bakes in mutual exclusion)", finalOutcome)
	}
}
