package ic3ia

import (
	"testing"

	"github.com/rfielding/symcheck/internal/term"
)

func TestFrameSeqInitialContent(t *testing.T) {
	s := newTestStore()
	absI := boolVar(s, "init")
	f := NewFrameSeq(s, absI)

	if f.Top() != 1 {
		t.Fatalf("Top() = %d, want 1", f.Top())
	}
	if got := f.ContentAt(0); got != absI {
		t.Errorf("ContentAt(0) = %v, want absI alone", got)
	}
	if got := f.ContentAt(1); got != s.True() {
		t.Errorf("ContentAt(1) on a fresh top frame = %v, want True", got)
	}
}

func TestFrameSeqAddClausePropagatesDownward(t *testing.T) {
	s := newTestStore()
	absI := boolVar(s, "init")
	f := NewFrameSeq(s, absI)
	f.ExtendTop()

	c := boolVar(s, "clause")
	f.AddClause(2, c)

	if got := f.ContentAt(0); got == absI {
		t.Errorf("ContentAt(0) did not pick up a clause owned by a higher frame")
	}
	if len(f.Own(2)) != 1 {
		t.Errorf("Own(2) has %d clauses, want 1", len(f.Own(2)))
	}
	if len(f.Own(1)) != 0 {
		t.Errorf("Own(1) has %d clauses, want 0 (clause was added at level 2)", len(f.Own(1)))
	}
}

func TestFrameSeqSetOwnEmptyMeansFixpoint(t *testing.T) {
	s := newTestStore()
	absI := boolVar(s, "init")
	f := NewFrameSeq(s, absI)
	f.AddClause(1, boolVar(s, "clause"))
	f.SetOwn(1, nil)

	if len(f.Own(1)) != 0 {
		t.Errorf("Own(1) after SetOwn(1, nil) = %v, want empty", f.Own(1))
	}
}

func newTestStore() *term.Store { return term.NewStore() }
