// Package taskqueue implements the single-worker cancellable FIFO described
// in spec §4.I: submission is non-blocking, one goroutine drains the queue,
// and cancellation is cooperative — honored at the next natural yield point
// rather than pre-empting in-flight work.
package taskqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/navidrome/mediaserver/log"
	"github.com/navidrome/mediaserver/model"
)

// Func is the unit of work a Task runs; it should check ctx.Err() (wired to
// the task's Cancelled() flag) between natural yield points, e.g. between
// files or between SQL transactions.
type Func func(ctx context.Context) error

type queuedTask struct {
	task *model.Task
	run  Func
}

// Queue is the single-worker FIFO task runner.
type Queue struct {
	mu      sync.Mutex
	pending []*queuedTask
	notify  chan struct{}
	nextID  atomic.Uint64

	stop chan struct{}
	done chan struct{}
}

func New() *Queue {
	q := &Queue{
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit enqueues fn, returning its Task handle immediately (non-blocking).
func (q *Queue) Submit(description string, cancellable bool, fn Func) *model.Task {
	task := &model.Task{ID: q.nextID.Add(1), Description: description, Cancellable: cancellable}
	q.mu.Lock()
	q.pending = append(q.pending, &queuedTask{task: task, run: fn})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return task
}

// Len reports the number of tasks not yet started.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the worker and waits for its current task to finish before
// returning. Tasks still pending are not run, and tasks submitted after
// Close are queued but never run.
func (q *Queue) Close() {
	close(q.stop)
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			return
		case <-q.notify:
		}
		for {
			next := q.dequeue()
			if next == nil {
				break
			}
			q.execute(next)
		}
	}
}

func (q *Queue) dequeue() *queuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	return next
}

func (q *Queue) execute(qt *queuedTask) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if qt.task.Cancelled() {
		return
	}
	go func() {
		for ctx.Err() == nil && !qt.task.Cancelled() {
			time.Sleep(50 * time.Millisecond)
		}
		cancel()
	}()
	if err := qt.run(ctx); err != nil {
		log.Error(ctx, "task failed", err, "taskID", qt.task.ID, "description", qt.task.Description)
	}
}
