package reactive

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoExecutor_RunsTask(t *testing.T) {
	done := make(chan struct{})
	GoExecutor{}.Spawn(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestSerialExecutor_RunsTasksInOrder(t *testing.T) {
	exec := NewSerialExecutor(16)
	defer exec.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		exec.Spawn(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("order[%d] = %d, want %d (full: %v)", i, got, i, order)
		}
	}
}

func TestSerialExecutor_NeverOverlapsTasks(t *testing.T) {
	exec := NewSerialExecutor(16)
	defer exec.Close()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		exec.Spawn(func() {
			defer wg.Done()
			cur := atomic.AddInt32(&active, 1)
			if cur > atomic.LoadInt32(&maxActive) {
				atomic.StoreInt32(&maxActive, cur)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		})
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxActive); got != 1 {
		t.Fatalf("max concurrent tasks = %d, want 1", got)
	}
}

func TestSerialExecutor_SpawnAfterCloseIsDropped(t *testing.T) {
	exec := NewSerialExecutor(1)
	exec.Close()

	ran := make(chan struct{})
	exec.Spawn(func() { close(ran) })
	select {
	case <-ran:
		t.Fatal("task ran after Close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPoolExecutor_BoundsConcurrency(t *testing.T) {
	exec := NewPoolExecutor(2)

	var active, maxActive int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		exec.Spawn(func() {
			defer wg.Done()
			cur := atomic.AddInt32(&active, 1)
			for {
				seen := atomic.LoadInt32(&maxActive)
				if cur <= seen || atomic.CompareAndSwapInt32(&maxActive, seen, cur) {
					break
				}
			}
			<-release
			atomic.AddInt32(&active, -1)
		})
	}

	// Give the pool a moment to admit as many tasks as it will.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&maxActive); got > 2 {
		t.Fatalf("max concurrent tasks = %d, want <= 2", got)
	}
}
