package taskqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsInSubmissionOrder(t *testing.T) {
	q := New()
	defer q.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 1; i <= 3; i++ {
		i := i
		q.Submit("t", false, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
			return nil
		})
	}

	waitOrTimeout(t, &wg, time.Second)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestQueueSkipsCancelledTaskBeforeRunning(t *testing.T) {
	q := New()
	defer q.Close()

	ran := make(chan struct{}, 1)
	task := q.Submit("cancellable", true, func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	})
	task.Cancel()

	select {
	case <-ran:
		t.Fatal("cancelled task should not have run")
	case <-time.After(100 * time.Millisecond):
	}
	assert.True(t, task.Cancelled())
}

func TestQueueSubmitDoesNotBlock(t *testing.T) {
	q := New()
	defer q.Close()

	block := make(chan struct{})
	q.Submit("slow", false, func(ctx context.Context) error {
		<-block
		return nil
	})

	done := make(chan struct{})
	go func() {
		q.Submit("fast", false, func(ctx context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit should not block on a busy worker")
	}
	close(block)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		require.Fail(t, "timed out waiting for tasks to complete")
	}
}
