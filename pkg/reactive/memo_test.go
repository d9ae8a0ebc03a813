package reactive

import (
	"strings"
	"testing"
)

func TestMemo_IsLazy(t *testing.T) {
	count, _ := NewSignal(1)
	computes := 0
	doubled := NewMemo(func() int {
		computes++
		return count.Get() * 2
	})

	if computes != 0 {
		t.Fatalf("computes before first Get = %d, want 0", computes)
	}
	if got := doubled.Get(); got != 2 {
		t.Fatalf("Get() = %d, want 2", got)
	}
	if computes != 1 {
		t.Fatalf("computes after first Get = %d, want 1", computes)
	}
}

func TestMemo_CachesBetweenWrites(t *testing.T) {
	count, setCount := NewSignal(1)
	computes := 0
	doubled := NewMemo(func() int {
		computes++
		return count.Get() * 2
	})

	doubled.Get()
	doubled.Get()
	doubled.Get()
	if computes != 1 {
		t.Fatalf("computes after repeated reads = %d, want 1", computes)
	}

	setCount.Set(2)
	if got := doubled.Get(); got != 4 {
		t.Fatalf("Get() after Set(2) = %d, want 4", got)
	}
	if computes != 2 {
		t.Fatalf("computes after one write = %d, want 2", computes)
	}
}

func TestMemo_EqualityCutsOffPropagation(t *testing.T) {
	count, setCount := NewSignal(1)
	positive := NewMemo(func() bool {
		return count.Get() > 0
	})

	runs := 0
	NewEffect(func() Cleanup {
		_ = positive.Get()
		runs++
		return nil
	})
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}

	// Still positive: the memo recomputes but its value is unchanged, so
	// the effect stays clean.
	setCount.Set(5)
	if runs != 1 {
		t.Fatalf("runs after equal recompute = %d, want 1", runs)
	}

	setCount.Set(-1)
	if runs != 2 {
		t.Fatalf("runs after sign flip = %d, want 2", runs)
	}
}

func TestMemo_CheckDemotionSkipsDownstreamRecompute(t *testing.T) {
	count, setCount := NewSignal(1)
	positive := NewMemo(func() bool {
		return count.Get() > 0
	})
	downstreamComputes := 0
	label := NewMemo(func() string {
		downstreamComputes++
		if positive.Get() {
			return "positive"
		}
		return "negative"
	})

	if got := label.Get(); got != "positive" {
		t.Fatalf("label = %q, want %q", got, "positive")
	}
	if downstreamComputes != 1 {
		t.Fatalf("downstream computes = %d, want 1", downstreamComputes)
	}

	// The write dirties positive and merely check-marks label. Validation
	// recomputes positive, finds it unchanged, and demotes label to clean
	// without running it.
	setCount.Set(7)
	if got := label.Get(); got != "positive" {
		t.Fatalf("label = %q, want %q", got, "positive")
	}
	if downstreamComputes != 1 {
		t.Fatalf("downstream computes after equal upstream = %d, want 1", downstreamComputes)
	}

	setCount.Set(-7)
	if got := label.Get(); got != "negative" {
		t.Fatalf("label = %q, want %q", got, "negative")
	}
	if downstreamComputes != 2 {
		t.Fatalf("downstream computes after change = %d, want 2", downstreamComputes)
	}
}

func TestMemo_RecomputesAtMostOncePerWave(t *testing.T) {
	count, setCount := NewSignal(1)
	computes := 0
	doubled := NewMemo(func() int {
		computes++
		return count.Get() * 2
	})

	// Two effects share the memo; a write must not recompute it twice.
	NewEffect(func() Cleanup {
		_ = doubled.Get()
		return nil
	})
	NewEffect(func() Cleanup {
		_ = doubled.Get()
		return nil
	})
	computes = 0

	setCount.Set(2)
	if computes != 1 {
		t.Fatalf("computes per wave = %d, want 1", computes)
	}
}

func TestMemo_WithEqualsCustomComparison(t *testing.T) {
	name, setName := NewSignal("go")
	upper := NewMemo(func() string {
		return strings.ToUpper(name.Get())
	}).WithEquals(strings.EqualFold)

	runs := 0
	NewEffect(func() Cleanup {
		_ = upper.Get()
		runs++
		return nil
	})

	// Case-only change: equal under EqualFold, so no propagation.
	setName.Set("GO")
	if runs != 1 {
		t.Fatalf("runs after case-only change = %d, want 1", runs)
	}

	setName.Set("rust")
	if runs != 2 {
		t.Fatalf("runs after real change = %d, want 2", runs)
	}
}

func TestMemo_DefaultEqualityDeepComparesSlices(t *testing.T) {
	items, setItems := NewSignal([]int{1, 2})
	first := NewMemo(func() []int {
		return items.Get()[:1]
	})

	runs := 0
	NewEffect(func() Cleanup {
		_ = first.Get()
		runs++
		return nil
	})

	// New backing array, same contents.
	setItems.Set([]int{1, 3})
	if runs != 1 {
		t.Fatalf("runs after deep-equal recompute = %d, want 1", runs)
	}

	setItems.Set([]int{9, 3})
	if runs != 2 {
		t.Fatalf("runs after head change = %d, want 2", runs)
	}
}

func TestMemo_ChainsPropagate(t *testing.T) {
	count, setCount := NewSignal(1)
	doubled := NewMemo(func() int { return count.Get() * 2 })
	squared := NewMemo(func() int { return doubled.Get() * doubled.Get() })

	if got := squared.Get(); got != 4 {
		t.Fatalf("squared = %d, want 4", got)
	}
	setCount.Set(3)
	if got := squared.Get(); got != 36 {
		t.Fatalf("squared after Set(3) = %d, want 36", got)
	}
}

func TestMemo_BranchDependentSources(t *testing.T) {
	useA, setUseA := NewSignal(true)
	a, setA := NewSignal(1)
	b, setB := NewSignal(100)

	computes := 0
	picked := NewMemo(func() int {
		computes++
		if useA.Get() {
			return a.Get()
		}
		return b.Get()
	})

	if got := picked.Get(); got != 1 {
		t.Fatalf("picked = %d, want 1", got)
	}

	// b is not a source while the a-branch is active: the write marks
	// nothing and the read revalidates for free.
	setB.Set(200)
	picked.Get()
	if computes != 1 {
		t.Fatalf("computes after inactive-branch write = %d, want 1", computes)
	}

	setUseA.Set(false)
	if got := picked.Get(); got != 200 {
		t.Fatalf("picked after switch = %d, want 200", got)
	}

	setA.Set(2)
	picked.Get()
	if computes != 2 {
		t.Fatalf("computes after abandoned-branch write = %d, want 2", computes)
	}
}

func TestMemo_PeekDoesNotSubscribe(t *testing.T) {
	count, setCount := NewSignal(1)
	doubled := NewMemo(func() int { return count.Get() * 2 })

	runs := 0
	NewEffect(func() Cleanup {
		_ = doubled.Peek()
		runs++
		return nil
	})

	setCount.Set(2)
	if runs != 1 {
		t.Fatalf("runs = %d, want 1 (Peek must not subscribe)", runs)
	}
	if got := doubled.Peek(); got != 4 {
		t.Fatalf("Peek() = %d, want 4", got)
	}
}
