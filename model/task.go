package model

import "sync/atomic"

// Task is a queued unit of ingest work (spec §3, §4.I).
type Task struct {
	ID          uint64
	Description string
	Cancellable bool
	cancelled   atomic.Bool
}

func (t *Task) Cancel() {
	if t.Cancellable {
		t.cancelled.Store(true)
	}
}

func (t *Task) Cancelled() bool { return t.cancelled.Load() }
