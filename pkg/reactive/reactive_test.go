package reactive

import (
	"fmt"
	"testing"
)

// The canonical counter example: a signal, a memo over it, and an effect
// over the memo, exercising the whole write-mark-sweep pipeline.
func TestReactive_CounterPipeline(t *testing.T) {
	scope := NewRoot()
	defer scope.Dispose()

	var log []int
	memoComputes := 0
	var setCount *SignalWriter[int]
	scope.With(func() {
		var count *Signal[int]
		count, setCount = NewSignal(0)
		doubled := NewMemo(func() int {
			memoComputes++
			return count.Get() * 2
		})
		NewEffect(func() Cleanup {
			log = append(log, doubled.Get())
			return nil
		})
	})

	if len(log) != 1 || log[0] != 0 {
		t.Fatalf("log after setup = %v, want [0]", log)
	}

	setCount.Set(1)
	if len(log) != 2 || log[1] != 2 {
		t.Fatalf("log after Set(1) = %v, want [0 2]", log)
	}

	// Same value again: the signal notifies unconditionally, the memo
	// recomputes, finds its value unchanged, and the effect stays quiet.
	before := memoComputes
	setCount.Set(1)
	if memoComputes != before+1 {
		t.Fatalf("memo computes after Set(same) = %d, want %d", memoComputes, before+1)
	}
	if len(log) != 2 {
		t.Fatalf("log after Set(same) = %v, want no new entries", log)
	}
}

func TestReactive_ScopedWidgetLifecycle(t *testing.T) {
	items, setItems := NewSignal([]string{"a"})

	root := NewRoot()
	var rendered []string
	var widget *Owner
	root.With(func() {
		widget = currentOwner().Child()
		widget.With(func() {
			NewEffect(func() Cleanup {
				rendered = append(rendered, fmt.Sprintf("%v", items.Get()))
				return nil
			})
		})
	})

	setItems.Set([]string{"a", "b"})
	if len(rendered) != 2 {
		t.Fatalf("rendered = %v, want 2 entries", rendered)
	}

	// Tearing down the widget subtree detaches its effect; the signal
	// keeps working for everyone else.
	widget.Dispose()
	setItems.Set([]string{"c"})
	if len(rendered) != 2 {
		t.Fatalf("rendered after widget disposal = %v, want no new entries", rendered)
	}
	if got := items.Get()[0]; got != "c" {
		t.Fatalf("items = %q, want %q", got, "c")
	}
	root.Dispose()
}

func TestReactive_ConcurrentWritersSerializePerCell(t *testing.T) {
	count, setCount := NewSignal(0)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 250; j++ {
				setCount.Update(func(v int) int { return v + 1 })
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	if got := count.Get(); got != 1000 {
		t.Fatalf("count = %d, want 1000", got)
	}
}
