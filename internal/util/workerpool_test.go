package util_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/marty-build/marty/internal/util"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolAllTasksCompleteWithoutErrors(t *testing.T) {
	t.Parallel()

	wp := util.NewWorkerPool(5)
	defer wp.Stop()

	var counter int32

	for i := 0; i < 10; i++ {
		wp.Submit(func() error {
			atomic.AddInt32(&counter, 1)
			return nil
		})
	}

	require.NoError(t, wp.Wait())
	require.EqualValues(t, 10, atomic.LoadInt32(&counter))
}

func TestWorkerPoolSomeTasksReturnErrors(t *testing.T) {
	t.Parallel()

	wp := util.NewWorkerPool(3)
	defer wp.Stop()

	var successCount int32

	for i := 0; i < 10; i++ {
		i := i
		wp.Submit(func() error {
			if i%2 == 0 {
				return errFor(i)
			}
			atomic.AddInt32(&successCount, 1)
			return nil
		})
	}

	require.Error(t, wp.Wait())
	require.EqualValues(t, 5, atomic.LoadInt32(&successCount))
}

func TestWorkerPoolStopAndRestart(t *testing.T) {
	t.Parallel()

	wp := util.NewWorkerPool(2)

	var counter int32

	for i := 0; i < 5; i++ {
		wp.Submit(func() error {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&counter, 1)
			return nil
		})
	}

	require.NoError(t, wp.Wait())
	wp.Stop()
	require.EqualValues(t, 5, atomic.LoadInt32(&counter))

	for i := 0; i < 3; i++ {
		wp.Submit(func() error {
			atomic.AddInt32(&counter, 1)
			return nil
		})
	}

	require.NoError(t, wp.Wait())
	require.EqualValues(t, 8, atomic.LoadInt32(&counter))
}

type stubError struct{ i int }

func (e stubError) Error() string { return "mock error" }

func errFor(i int) error { return stubError{i} }
