package ic3ia

import "github.com/rfielding/symcheck/internal/term"

// FrameSeq is the difference-encoded frame sequence F of §3: frames are
// indexed ascending from the ground frame (index 0, logically ≡ I) up to
// the current top/frontier frame. A frame's logical content is the
// conjunction of its own stored clauses and every higher frame's stored
// clauses, so a clause proved relatively inductive at level i can be moved
// up to level i+1 without touching level i's logical content at all — only
// its own-store membership changes.
//
// The setup literal example in the design notes lists the initial sequence
// in the opposite (descending, top-first) order; this module fixes on
// ascending order throughout and documents the choice once, here, rather
// than at every call site.
type FrameSeq struct {
	store  *term.Store
	frames [][]*term.Term // frames[i] is frame i's own clause list
}

// NewFrameSeq builds the initial two-frame sequence [F_0=[absI], F_1=[]].
func NewFrameSeq(store *term.Store, absI *term.Term) *FrameSeq {
	return &FrameSeq{store: store, frames: [][]*term.Term{{absI}, {}}}
}

// Top returns the index of the current frontier frame.
func (f *FrameSeq) Top() int { return len(f.frames) - 1 }

// ContentAt returns the logical content of frame i: the conjunction of
// frame i's own clauses and every clause owned by a higher frame.
func (f *FrameSeq) ContentAt(i int) *term.Term {
	var cs []*term.Term
	for j := i; j < len(f.frames); j++ {
		cs = append(cs, f.frames[j]...)
	}
	return f.store.And(cs...)
}

// Own returns frame i's own clause list (not including higher frames).
func (f *FrameSeq) Own(i int) []*term.Term { return f.frames[i] }

// SetOwn replaces frame i's own clause list.
func (f *FrameSeq) SetOwn(i int, cs []*term.Term) { f.frames[i] = cs }

// AddClause adds c to frame i's own store.
func (f *FrameSeq) AddClause(i int, c *term.Term) { f.frames[i] = append(f.frames[i], c) }

// ExtendTop appends a new, empty frontier frame, the main loop's step 3.
func (f *FrameSeq) ExtendTop() { f.frames = append(f.frames, nil) }
