package reactive

import (
	"testing"
)

func TestEffect_RunsImmediately(t *testing.T) {
	runs := 0
	NewEffect(func() Cleanup {
		runs++
		return nil
	})
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}
}

func TestEffect_RunsSynchronouslyInsideSet(t *testing.T) {
	count, setCount := NewSignal(0)
	var log []int
	NewEffect(func() Cleanup {
		log = append(log, count.Get())
		return nil
	})

	setCount.Set(1)
	// No scheduler, no flush call: the write itself ran the effect.
	if len(log) != 2 || log[1] != 1 {
		t.Fatalf("log after Set(1) = %v, want [0 1]", log)
	}
}

func TestEffect_CleanupRunsBeforeNextRunAndOnDispose(t *testing.T) {
	count, setCount := NewSignal(0)
	var log []string
	scope := NewRoot()
	scope.With(func() {
		NewEffect(func() Cleanup {
			v := count.Get()
			log = append(log, "run")
			return func() {
				log = append(log, "cleanup")
				_ = v
			}
		})
	})

	setCount.Set(1)
	scope.Dispose()

	want := []string{"run", "cleanup", "run", "cleanup"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q (full: %v)", i, log[i], want[i], log)
		}
	}
}

func TestEffect_NilCleanupIsAllowed(t *testing.T) {
	count, setCount := NewSignal(0)
	scope := NewRoot()
	scope.With(func() {
		NewEffect(func() Cleanup {
			_ = count.Get()
			return nil
		})
	})
	setCount.Set(1)
	scope.Dispose()
}

func TestEffect_ExecutionFollowsSubscriptionOrder(t *testing.T) {
	count, setCount := NewSignal(0)
	var order []string
	NewEffect(func() Cleanup {
		_ = count.Get()
		order = append(order, "first")
		return nil
	})
	NewEffect(func() Cleanup {
		_ = count.Get()
		order = append(order, "second")
		return nil
	})

	order = order[:0]
	setCount.Set(1)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v, want [first second]", order)
	}
}

func TestEffect_DependenciesReestablishedEachRun(t *testing.T) {
	useA, setUseA := NewSignal(true)
	a, setA := NewSignal("a")
	b, setB := NewSignal("b")

	runs := 0
	NewEffect(func() Cleanup {
		if useA.Get() {
			_ = a.Get()
		} else {
			_ = b.Get()
		}
		runs++
		return nil
	})
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}

	// While on the a-branch, b is not a dependency.
	setB.Set("b2")
	if runs != 1 {
		t.Fatalf("runs after b write on a-branch = %d, want 1", runs)
	}

	setUseA.Set(false)
	if runs != 2 {
		t.Fatalf("runs after branch switch = %d, want 2", runs)
	}

	// Now the roles flip: a is no longer a dependency.
	setA.Set("a2")
	if runs != 2 {
		t.Fatalf("runs after a write on b-branch = %d, want 2", runs)
	}
	setB.Set("b3")
	if runs != 3 {
		t.Fatalf("runs after b write on b-branch = %d, want 3", runs)
	}
}

func TestEffect_DisposedEffectStopsRunning(t *testing.T) {
	count, setCount := NewSignal(0)
	runs := 0
	scope := NewRoot()
	scope.With(func() {
		NewEffect(func() Cleanup {
			_ = count.Get()
			runs++
			return nil
		})
	})

	scope.Dispose()
	setCount.Set(1)
	if runs != 1 {
		t.Fatalf("runs after dispose = %d, want 1", runs)
	}
}

func TestEffect_NestedWriteCascades(t *testing.T) {
	first, setFirst := NewSignal(0)
	second, setSecond := NewSignal(0)

	NewEffect(func() Cleanup {
		setSecond.Set(first.Get() * 10)
		return nil
	})
	var seen []int
	NewEffect(func() Cleanup {
		seen = append(seen, second.Get())
		return nil
	})

	setFirst.Set(3)
	if got := seen[len(seen)-1]; got != 30 {
		t.Fatalf("cascaded value = %d, want 30", got)
	}
}
