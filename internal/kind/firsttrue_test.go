package kind

import "testing"

func TestFirstTrueIndexAllFalse(t *testing.T) {
	x := []bool{false, false, false}
	if got := firstTrueIndex(len(x), func(i int) bool { return x[i] }); got != -1 {
		t.Errorf("firstTrueIndex(all false) = %d, want -1", got)
	}
}

func TestFirstTrueIndexReturnsLeast(t *testing.T) {
	x := []bool{false, false, true, true, false}
	if got := firstTrueIndex(len(x), func(i int) bool { return x[i] }); got != 2 {
		t.Errorf("firstTrueIndex(%v) = %d, want 2", x, got)
	}
}

func TestFirstTrueIndexZeroLength(t *testing.T) {
	if got := firstTrueIndex(0, func(i int) bool { return true }); got != -1 {
		t.Errorf("firstTrueIndex(n=0) = %d, want -1", got)
	}
}
