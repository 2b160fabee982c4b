package counter

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rfielding/symcheck/internal/compress"
	"github.com/rfielding/symcheck/internal/event"
	"github.com/rfielding/symcheck/internal/ic3ia"
	"github.com/rfielding/symcheck/internal/kind"
	"github.com/rfielding/symcheck/internal/solverfacade"
	"github.com/rfielding/symcheck/internal/term"
)

// oneRound lets an ic3ia.Engine.Run call execute exactly one block/propagate/
// extend-top cycle before returning, so a scenario test can drive it to a
// fixpoint one round at a time.
func oneRound() func() bool {
	calls := 0
	return func() bool {
		calls++
		return calls > 1
	}
}

func TestIC3IAScenariosEndToEnd(t *testing.T) {
	cases := []struct {
		name    string
		build   func(*term.Store) *System
		outcome ic3ia.Outcome
	}{
		{"trivially-true", NewTriviallyTrue, ic3ia.Success},
		{"trivially-false", NewTriviallyFalse, ic3ia.Failure},
		{"two-bit-counter", NewTwoBitCounter, ic3ia.Failure},
		{"shared-buffer", func(s *term.Store) *System { return NewSharedBuffer(s, 2) }, ic3ia.Success},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := term.NewStore()
			trans := tc.build(store)
			props := trans.PropsListOfBound(0)
			require.Len(t, props, 1, "%s: expected exactly one property", tc.name)

			solver := solverfacade.NewZ3Solver(store)
			eng := ic3ia.New(trans, props[0], solver, store, zap.NewNop(), nil)
			outcome, _, err := eng.Setup()
			require.NoError(t, err, "%s: Setup", tc.name)

			for i := 0; i < 50 && outcome == ic3ia.Continue; i++ {
				outcome, _, err = eng.Run(oneRound())
				require.NoError(t, err, "%s: Run round %d", tc.name, i)
			}
			require.Equal(t, tc.outcome, outcome, "%s: final outcome", tc.name)
		})
	}
}

func TestKInductionReachesFixpointOnSafeScenarios(t *testing.T) {
	cases := []struct {
		name  string
		build func(*term.Store) *System
	}{
		{"trivially-true", NewTriviallyTrue},
		{"shared-buffer", func(s *term.Store) *System { return NewSharedBuffer(s, 2) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := term.NewStore()
			trans := tc.build(store)

			solver := solverfacade.NewZ3Solver(store)
			bus := event.NewInMemoryBus(trans.PropsListOfBound(0), 16)
			compressor := compress.NewSimplePathCompressor(store)
			eng := kind.New(trans, solver, store, bus, compressor, zap.NewNop(), nil)
			require.NoError(t, eng.Init(), "%s: Init", tc.name)

			reachedFixpoint := false
			for i := 0; i < 30; i++ {
				require.NoError(t, eng.Step(), "%s: Step at k=%d", tc.name, eng.K())
				if len(eng.Unknowns()) == 0 {
					reachedFixpoint = true
					break
				}
			}
			require.True(t, reachedFixpoint, "%s: never left Unknowns within 30 steps (k=%d)", tc.name, eng.K())
		})
	}
}

// TestKInductionOptimisticOnFalsePropertyWithoutConfirmation documents that
// the k-induction engine, run alone against counter_never_three (a property
// that is actually false — see NewTwoBitCounter), still promotes it to
// Optimistic: path compression only rules out short-loop counterexamples,
// and nothing in this engine ever consults ground truth or the real
// transition relation beyond what the solver queries encode. The promotion
// is a legitimate verdict in k-induction's own terms (relative k-inductive
// given the compression oracle's non-looping hypothesis) but it is not a
// proof of safety; §4.1's confirm phase exists precisely to gate it behind
// an external BMC engine's KTrue(k) before calling it Invariant, and this
// module wires no such engine into the kind package's own test harness.
// TestIC3IAScenariosEndToEnd is the test that actually resolves this
// property, to Failure.
func TestKInductionOptimisticOnFalsePropertyWithoutConfirmation(t *testing.T) {
	store := term.NewStore()
	trans := NewTwoBitCounter(store)

	solver := solverfacade.NewZ3Solver(store)
	bus := event.NewInMemoryBus(trans.PropsListOfBound(0), 16)
	compressor := compress.NewSimplePathCompressor(store)
	eng := kind.New(trans, solver, store, bus, compressor, zap.NewNop(), nil)
	require.NoError(t, eng.Init())

	reachedOptimistic := false
	for i := 0; i < 30; i++ {
		require.NoError(t, eng.Step(), "Step at k=%d", eng.K())
		if len(eng.Unknowns()) == 0 {
			reachedOptimistic = true
			break
		}
	}
	require.True(t, reachedOptimistic, "counter_never_three never left Unknowns within 30 steps (k=%d)", eng.K())
	require.NotEmpty(t, eng.Optimistics(), "counter_never_three left Unknowns without becoming Optimistic")
}
