// Package compress implements the path-compression oracle (§2 item 5):
// for a path of length k it returns extra constraints ruling out paths
// that revisit a state, so the next check-sat-assuming call tightens the
// search. SimplePathCompressor does not inspect a model: its constraints
// cover every pair of offsets 0..k.
package compress

import (
	"fmt"

	"github.com/rfielding/symcheck/internal/solverfacade"
	"github.com/rfielding/symcheck/internal/statevar"
	"github.com/rfielding/symcheck/internal/term"
)

// Oracle is the path-compression interface both the k-induction split-
// closure loop and, in principle, any bounded search over the same solver
// can call. Compress returns an empty slice when it finds nothing to add.
type Oracle interface {
	Compress(svars []*statevar.StateVar, k int64, declare func(name string, argSorts []solverfacade.Sort, ret solverfacade.Sort)) []*term.Term
}

// SimplePathCompressor asserts, for every pair of offsets 0<=i<j<=k, a
// fresh boolean defined as "some non-input concrete state variable differs
// between i and j" — a syntactic non-loop constraint independent of any
// particular model. It is conservative: a real path that happens to repeat
// a state is still a valid counterexample to induction, so a
// SimplePathCompressor must never be asserted unconditionally; callers
// assert its output only under the same fresh activation literal already
// guarding the query it is tightening (§4.1 split-closure step 5).
type SimplePathCompressor struct {
	store   *term.Store
	counter int64
}

// NewSimplePathCompressor builds a compressor that allocates fresh
// defined-boolean names from store.
func NewSimplePathCompressor(store *term.Store) *SimplePathCompressor {
	return &SimplePathCompressor{store: store}
}

// Compress builds the disjunction-of-inequalities constraints described
// above. It returns nil (no compression) when k < 1, since there is no
// pair of distinct offsets to compare.
func (c *SimplePathCompressor) Compress(svars []*statevar.StateVar, k int64, declare func(name string, argSorts []solverfacade.Sort, ret solverfacade.Sort)) []*term.Term {
	if k < 1 {
		return nil
	}
	var tracked []*statevar.StateVar
	for _, sv := range svars {
		if !sv.IsInput && !sv.IsConst {
			tracked = append(tracked, sv)
		}
	}
	if len(tracked) == 0 {
		return nil
	}
	var out []*term.Term
	for i := int64(0); i <= k; i++ {
		for j := i + 1; j <= k; j++ {
			var diffs []*term.Term
			for _, sv := range tracked {
				vi := c.store.VarTerm(statevar.Var{SV: sv, At: statevar.Off(i)})
				vj := c.store.VarTerm(statevar.Var{SV: sv, At: statevar.Off(j)})
				diffs = append(diffs, c.store.Not(c.store.Eq(vi, vj)))
			}
			disj := c.store.Or(diffs...)
			name := fmt.Sprintf("noloop_%d_%d_%d", c.counter, i, j)
			c.counter++
			declare(name, nil, solverfacade.SortBool)
			defined := c.store.Uninterp(name)
			out = append(out, c.store.Implies(defined, disj), defined)
			_ = defined
		}
	}
	return out
}
