package util

import (
	"sync"

	"github.com/hashicorp/go-multierror"
)

// WorkerPool runs submitted tasks across a bounded number of goroutines,
// grounded on the teacher's util.WorkerPool (NewWorkerPool/Submit/Wait/Stop).
// The task runner uses one pool per topological level so that, within a
// level, at most `size` projects spawn concurrently while levels themselves
// stay strictly sequential.
type WorkerPool struct {
	size int

	mu      sync.Mutex
	running bool
	tasks   chan func() error
	wg      sync.WaitGroup

	errMu sync.Mutex
	errs  *multierror.Error
}

// NewWorkerPool creates a pool with up to size concurrent workers and starts it.
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}

	wp := &WorkerPool{size: size}
	wp.start()

	return wp
}

func (wp *WorkerPool) start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return
	}

	wp.tasks = make(chan func() error)
	wp.running = true

	for i := 0; i < wp.size; i++ {
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	for task := range wp.tasks {
		err := task()
		if err != nil {
			wp.errMu.Lock()
			wp.errs = multierror.Append(wp.errs, err)
			wp.errMu.Unlock()
		}

		wp.wg.Done()
	}
}

// Submit queues a task. If the pool was previously Stop()-ed, it is
// transparently restarted.
func (wp *WorkerPool) Submit(task func() error) {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		wp.start()
	} else {
		wp.mu.Unlock()
	}

	wp.wg.Add(1)

	wp.mu.Lock()
	tasks := wp.tasks
	wp.mu.Unlock()

	tasks <- task
}

// Wait blocks until every submitted task has completed and returns the
// aggregated error, if any. It may be called repeatedly; the error
// accumulator resets for the next round of submissions.
func (wp *WorkerPool) Wait() error {
	wp.wg.Wait()

	wp.errMu.Lock()
	err := wp.errs.ErrorOrNil()
	wp.errs = nil
	wp.errMu.Unlock()

	return err
}

// Stop drains in-flight work and shuts down the worker goroutines. A
// subsequent Submit restarts the pool.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.running {
		return
	}

	close(wp.tasks)
	wp.running = false
}
