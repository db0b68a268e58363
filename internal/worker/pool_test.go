package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/salesline/salesline/internal/errs"
)

func TestPool_RunsTasks(t *testing.T) {
	t.Parallel()
	p := NewPool(4, zap.NewNop())

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Execute(func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	require.Equal(t, int32(100), n.Load())
	p.Stop()
}

func TestPool_TasksRunConcurrently(t *testing.T) {
	t.Parallel()
	p := NewPool(2, zap.NewNop())
	defer p.Stop()

	// Two tasks that can only finish together prove two workers run at once.
	barrier := make(chan struct{})
	done := make(chan struct{}, 2)
	task := func() {
		select {
		case barrier <- struct{}{}:
		case <-barrier:
		}
		done <- struct{}{}
	}
	require.NoError(t, p.Execute(task))
	require.NoError(t, p.Execute(task))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("tasks did not run concurrently")
		}
	}
}

func TestPool_StopDrainsQueue(t *testing.T) {
	t.Parallel()
	p := NewPool(1, zap.NewNop())

	var n atomic.Int32
	release := make(chan struct{})
	require.NoError(t, p.Execute(func() { <-release; n.Add(1) }))
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Execute(func() { n.Add(1) }))
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	p.Stop()

	require.Equal(t, int32(11), n.Load())
}

func TestPool_ExecuteAfterStop(t *testing.T) {
	t.Parallel()
	p := NewPool(1, zap.NewNop())
	p.Stop()

	require.ErrorIs(t, p.Execute(func() {}), errs.ErrClosed)
}

func TestPool_PanicDoesNotKillWorker(t *testing.T) {
	t.Parallel()
	p := NewPool(1, zap.NewNop())
	defer p.Stop()

	require.NoError(t, p.Execute(func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Execute(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("worker died after panic")
	}
}

func TestPool_FIFOOnSingleWorker(t *testing.T) {
	t.Parallel()
	p := NewPool(1, zap.NewNop())

	var mu sync.Mutex
	var order []int
	for i := 0; i < 20; i++ {
		i := i
		require.NoError(t, p.Execute(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	p.Stop()

	require.Len(t, order, 20)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}
