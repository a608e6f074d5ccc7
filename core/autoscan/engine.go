// Package autoscan implements the filesystem-sync engine described in spec
// §4.G: timed rescans and inotify watches that keep the catalog in step with
// disk, tracking a per-subtree last-modified cursor so unchanged subtrees are
// never re-walked.
package autoscan

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/navidrome/mediaserver/core/taskqueue"
	"github.com/navidrome/mediaserver/log"
	"github.com/navidrome/mediaserver/model"
)

// NotifyFunc is invoked with the set of container object ids that changed,
// wired to server/session.Registry.FanoutContainerChanged.
type NotifyFunc func(objectIDs []string)

type directoryState struct {
	dir    *model.AutoscanDirectory
	queue  *taskqueue.Queue
	tweaks *TweakResolver

	// countersMu guards dir's TaskCount/ActiveScanCount/lastMod* fields,
	// which are written both by the scan-dispatch goroutine (RescanNow) and
	// by this directory's own queue worker goroutine as tasks complete.
	countersMu sync.Mutex
}

// Engine owns the set of registered AutoscanDirectory entries, one FIFO
// queue per directory (so tasks within a subtree run strictly in order
// while different subtrees interleave, per spec §4.G/§5 ordering rules).
type Engine struct {
	mu      sync.Mutex
	storage model.Storage
	notify  NotifyFunc
	dirs    map[int]*directoryState
	nextID  int
}

func NewEngine(storage model.Storage, notify NotifyFunc) *Engine {
	return &Engine{
		storage: storage,
		notify:  notify,
		dirs:    map[int]*directoryState{},
	}
}

// Register installs a new AutoscanDirectory, enforcing the nested-location
// precedence rule: a new entry may nest inside an existing persistent one
// only if it is itself persistent, but may always nest inside a
// non-persistent one (spec §4.G invariant 3).
func (e *Engine) Register(dir *model.AutoscanDirectory, tweaks []DirectoryTweak) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, existing := range e.dirs {
		if existing.dir.Location == dir.Location {
			return fmt.Errorf("autoscan: location %q already registered", dir.Location)
		}
		if isSubtree(dir.Location, existing.dir.Location) && existing.dir.Persistent && !dir.Persistent {
			return fmt.Errorf("autoscan: persistent entry at %q cannot be overridden by non-persistent entry at %q",
				existing.dir.Location, dir.Location)
		}
	}

	dir.ScanID = e.nextID
	e.nextID++
	e.dirs[dir.ScanID] = &directoryState{
		dir:    dir,
		queue:  taskqueue.New(),
		tweaks: NewTweakResolver(tweaks),
	}
	return nil
}

// Unregister removes a directory and drains its queue. A persistent entry
// cannot be removed by a non-persistent caller (same invariant as Register).
func (e *Engine) Unregister(scanID int, callerPersistent bool) error {
	e.mu.Lock()
	st, ok := e.dirs[scanID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("autoscan: no such scanID %d", scanID)
	}
	if st.dir.Persistent && !callerPersistent {
		e.mu.Unlock()
		return fmt.Errorf("autoscan: persistent directory %q cannot be removed by a non-persistent caller", st.dir.Location)
	}
	delete(e.dirs, scanID)
	e.mu.Unlock()

	st.queue.Close()
	return nil
}

func (e *Engine) directories() []*directoryState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*directoryState, 0, len(e.dirs))
	for _, st := range e.dirs {
		out = append(out, st)
	}
	return out
}

func (e *Engine) byID(scanID int) (*directoryState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.dirs[scanID]
	return st, ok
}

// RescanNow walks a single directory's subtree synchronously relative to the
// caller (the actual catalog mutations are still queued onto that
// directory's own FIFO so they serialize with any in-flight tasks). Used by
// both the timed-tick path and as the inotify engine's fallback full rescan.
func (e *Engine) RescanNow(ctx context.Context, scanID int) error {
	st, ok := e.byID(scanID)
	if !ok {
		return fmt.Errorf("autoscan: no such scanID %d", scanID)
	}
	diff, err := walkAndDiff(st)
	if err != nil {
		exhausted := st.dir.RecordFailure()
		if exhausted {
			log.Error(ctx, "autoscan: directory exhausted its retry budget, skipping until next full rescan", err,
				"location", st.dir.Location)
		}
		return err
	}
	st.dir.ResetRetries()
	e.applyDiff(ctx, st, diff)
	return nil
}

// applyDiff turns a diffResult into queued catalog tasks, bumping
// taskCount/activeScanCount around the batch per spec §4.G invariant. The
// walk itself (this function) holds activeScanCount open; each queued task
// holds taskCount open until it actually runs on the directory's worker,
// and every completion re-checks the idle gate so lastModPreviousScan only
// ever advances once the whole batch has drained.
func (e *Engine) applyDiff(ctx context.Context, st *directoryState, diff *diffResult) {
	st.countersMu.Lock()
	st.dir.ActiveScanCount++
	st.dir.LastModCurrentScan = diff.maxMTime
	st.countersMu.Unlock()

	var mu sync.Mutex
	var changed []string
	var errs *multierror.Error
	recordErr := func(err error) {
		mu.Lock()
		errs = multierror.Append(errs, err)
		mu.Unlock()
	}
	recordChanged := func(parentID string) {
		mu.Lock()
		changed = append(changed, parentID)
		mu.Unlock()
	}
	taskDone := func() {
		st.countersMu.Lock()
		st.dir.TaskCount--
		st.dir.UpdateLMT()
		st.countersMu.Unlock()
	}

	for _, obj := range diff.added {
		st.countersMu.Lock()
		st.dir.TaskCount++
		st.countersMu.Unlock()
		task := obj
		st.queue.Submit("autoscan add "+task.Location, false, func(ctx context.Context) error {
			defer taskDone()
			if err := e.storage.AddObject(ctx, task); err != nil {
				recordErr(err)
				return err
			}
			recordChanged(task.ParentID)
			return nil
		})
	}
	for _, obj := range diff.updated {
		st.countersMu.Lock()
		st.dir.TaskCount++
		st.countersMu.Unlock()
		task := obj
		st.queue.Submit("autoscan update "+task.Location, false, func(ctx context.Context) error {
			defer taskDone()
			if err := e.storage.UpdateObject(ctx, task); err != nil {
				recordErr(err)
				return err
			}
			recordChanged(task.ParentID)
			return nil
		})
	}
	for _, id := range diff.removed {
		st.countersMu.Lock()
		st.dir.TaskCount++
		st.countersMu.Unlock()
		objID := id
		st.queue.Submit("autoscan remove "+objID, false, func(ctx context.Context) error {
			defer taskDone()
			if err := e.storage.RemoveObject(ctx, objID); err != nil {
				recordErr(err)
				return err
			}
			return nil
		})
	}

	st.countersMu.Lock()
	st.dir.ActiveScanCount--
	st.dir.UpdateLMT()
	st.countersMu.Unlock()

	if errs != nil && errs.ErrorOrNil() != nil {
		log.Error(ctx, "autoscan: subtree scan finished with errors", errs.ErrorOrNil(), "location", st.dir.Location)
	}

	// changed/errs are still being appended to by in-flight tasks after this
	// function returns; the notify fan-out for this batch happens from the
	// queue's own drain via a trailing marker task so every id is included.
	if len(diff.added)+len(diff.updated)+len(diff.removed) > 0 {
		st.queue.Submit("autoscan notify", false, func(ctx context.Context) error {
			mu.Lock()
			ids := append([]string(nil), changed...)
			changed = nil
			mu.Unlock()
			if len(ids) > 0 && e.notify != nil {
				e.notify(ids)
			}
			return nil
		})
	}
}

func isSubtree(candidate, root string) bool {
	if candidate == root {
		return false
	}
	if len(candidate) <= len(root) {
		return false
	}
	return candidate[:len(root)] == root && (root[len(root)-1] == '/' || candidate[len(root)] == '/')
}
