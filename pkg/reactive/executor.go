package reactive

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs async derived evaluations. The choice of executor decides
// the threading model of the user computations: GoExecutor runs each on
// its own goroutine, SerialExecutor runs them one at a time on a single
// worker (for closures whose captured state is not safe to share across
// threads), PoolExecutor bounds concurrency.
type Executor interface {
	// Spawn schedules fn. It must not block the caller.
	Spawn(fn func())
}

// GoExecutor spawns one goroutine per evaluation. This is the default.
type GoExecutor struct{}

// Spawn implements Executor.
func (GoExecutor) Spawn(fn func()) {
	go fn()
}

// SerialExecutor runs evaluations one at a time, in submission order, on a
// single worker goroutine. Close the executor when its nodes are disposed
// to stop the worker.
type SerialExecutor struct {
	queue chan func()
	once  sync.Once
	done  chan struct{}
}

// NewSerialExecutor starts the worker. buffer is the pending-task queue
// capacity; Spawn blocks only when the queue is full.
func NewSerialExecutor(buffer int) *SerialExecutor {
	e := &SerialExecutor{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go e.work()
	return e
}

func (e *SerialExecutor) work() {
	for {
		select {
		case fn := <-e.queue:
			fn()
		case <-e.done:
			return
		}
	}
}

// Spawn implements Executor.
func (e *SerialExecutor) Spawn(fn func()) {
	select {
	case e.queue <- fn:
	case <-e.done:
	}
}

// Close stops the worker. Pending tasks that have not started are dropped.
func (e *SerialExecutor) Close() {
	e.once.Do(func() {
		close(e.done)
	})
}

// PoolExecutor runs each evaluation on its own goroutine but bounds how
// many run concurrently with a weighted semaphore.
type PoolExecutor struct {
	sem *semaphore.Weighted
}

// NewPoolExecutor creates an executor allowing at most maxConcurrent
// evaluations at a time.
func NewPoolExecutor(maxConcurrent int64) *PoolExecutor {
	return &PoolExecutor{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Spawn implements Executor. The semaphore is acquired on the spawned
// goroutine so Spawn itself never blocks.
func (e *PoolExecutor) Spawn(fn func()) {
	go func() {
		if err := e.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer e.sem.Release(1)
		fn()
	}()
}

// defaultExecutor backs async nodes constructed without WithExecutor.
var defaultExecutor Executor = GoExecutor{}
