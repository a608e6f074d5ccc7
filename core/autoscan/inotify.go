package autoscan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rjeczalik/notify"

	"github.com/navidrome/mediaserver/log"
	"github.com/navidrome/mediaserver/model"
)

// watchKind mirrors MediaTomb's inotify_watch_type_t: a real watch on an
// existing AutoscanDirectory root, versus a parked watch on the deepest
// existing ancestor of a root that doesn't exist yet.
type watchKind int

const (
	watchAutoscan watchKind = iota
	watchNonexisting
)

type watchEntry struct {
	scanID int
	kind   watchKind
	// for a parked watch, target is the AutoscanDirectory root we're
	// waiting to come into existence under watchedPath.
	target string
}

// InotifyEngine owns a single notify.EventInfo channel and fans events out
// to the shared Engine, one goroutine, matching spec §4.G's "one engine
// thread owns an inotify fd" model.
type InotifyEngine struct {
	engine *Engine

	mu       sync.Mutex
	watches  map[string]*watchEntry // watched path -> entry
	events   chan notify.EventInfo
	stop     chan struct{}
	done     chan struct{}
}

func NewInotifyEngine(engine *Engine) *InotifyEngine {
	return &InotifyEngine{
		engine:  engine,
		watches: map[string]*watchEntry{},
		events:  make(chan notify.EventInfo, 256),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Monitor installs a recursive watch on dir.Location (or parks on its
// deepest existing ancestor if the path doesn't exist yet).
func (w *InotifyEngine) Monitor(dir *model.AutoscanDirectory) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.monitorLocked(dir)
}

func (w *InotifyEngine) monitorLocked(dir *model.AutoscanDirectory) error {
	if _, err := os.Stat(dir.Location); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		return w.parkLocked(dir)
	}

	path := dir.Location
	if dir.Recursive {
		path = filepath.Join(dir.Location, "...")
	}
	if err := notify.Watch(path, w.events, notify.Create, notify.Remove, notify.Write, notify.Rename); err != nil {
		return err
	}
	w.watches[dir.Location] = &watchEntry{scanID: dir.ScanID, kind: watchAutoscan}
	return nil
}

// parkLocked installs InotifyWatchTypeNonexisting on the deepest existing
// ancestor of dir.Location, so the engine notices when that ancestor
// changes and can retry installing the real watch (spec §4.G).
func (w *InotifyEngine) parkLocked(dir *model.AutoscanDirectory) error {
	ancestor := dir.Location
	for {
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			break
		}
		ancestor = parent
		if _, err := os.Stat(ancestor); err == nil {
			break
		}
	}
	if err := notify.Watch(ancestor, w.events, notify.Create); err != nil {
		return err
	}
	w.watches[ancestor] = &watchEntry{scanID: dir.ScanID, kind: watchNonexisting, target: dir.Location}
	return nil
}

func (w *InotifyEngine) Unmonitor(dir *model.AutoscanDirectory) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, entry := range w.watches {
		if entry.scanID == dir.ScanID {
			notify.Stop(w.events)
			delete(w.watches, path)
		}
	}
}

// Start begins draining the shared event channel. One goroutine, matching
// the single dedicated autoscan thread from spec §5.
func (w *InotifyEngine) Start() {
	go w.run()
}

func (w *InotifyEngine) Stop() {
	close(w.stop)
	<-w.done
	notify.Stop(w.events)
}

func (w *InotifyEngine) run() {
	defer close(w.done)
	ctx := context.Background()
	var pendingMoveFrom string
	for {
		select {
		case <-w.stop:
			return
		case ev := <-w.events:
			w.handleEvent(ctx, ev, &pendingMoveFrom)
		}
	}
}

func (w *InotifyEngine) handleEvent(ctx context.Context, ev notify.EventInfo, pendingMoveFrom *string) {
	path := ev.Path()

	w.mu.Lock()
	entry, ok := w.resolveWatchLocked(path)
	w.mu.Unlock()
	if !ok {
		return
	}

	if entry.kind == watchNonexisting {
		// The parked ancestor changed; re-check whether the target root now
		// exists and, if so, promote the parked watch to a real one.
		if _, err := os.Stat(entry.target); err == nil {
			w.mu.Lock()
			if st, found := w.engine.byID(entry.scanID); found {
				for watched, e := range w.watches {
					if e == entry {
						delete(w.watches, watched)
					}
				}
				if err := w.monitorLocked(st.dir); err != nil {
					log.Error(ctx, "autoscan: failed to promote parked watch", err, "location", entry.target)
				}
			}
			w.mu.Unlock()
			if err := w.engine.RescanNow(ctx, entry.scanID); err != nil {
				log.Error(ctx, "autoscan: rescan after promoted watch failed", err)
			}
		}
		return
	}

	switch ev.Event() {
	case notify.Rename:
		// rjeczalik/notify reports move-from and move-to as two separate
		// Rename events on the same watch; a from/to pair within the same
		// watched root collapses into a single rescan rather than two
		// (spec §4.G: "collapsed into a rename task"). Cross-root moves
		// arrive as a bare Rename with no matching partner and are treated
		// as remove+add via the normal diff in RescanNow.
		if *pendingMoveFrom == "" {
			*pendingMoveFrom = path
			return
		}
		oldPath := *pendingMoveFrom
		*pendingMoveFrom = ""
		w.fixupRename(ctx, entry.scanID, oldPath, path)
		if err := w.engine.RescanNow(ctx, entry.scanID); err != nil {
			log.Error(ctx, "autoscan: rescan after rename failed", err)
		}
	case notify.Create, notify.Remove, notify.Write:
		if err := w.engine.RescanNow(ctx, entry.scanID); err != nil {
			log.Error(ctx, "autoscan: rescan after fs event failed", err)
		}
	}
}

// fixupRename rewrites every descendant path in the directory's
// lastModified cursor map that was rooted under the old name to the new
// one, as required when a watched directory itself is renamed (spec §4.G:
// "Directory rename requires fixing up every descendant's path map").
func (w *InotifyEngine) fixupRename(ctx context.Context, scanID int, oldPath, newPath string) {
	st, ok := w.engine.byID(scanID)
	if !ok {
		return
	}
	st.countersMu.Lock()
	defer st.countersMu.Unlock()

	oldPrefix := oldPath
	fixed := map[string]bool{}
	for path, mtime := range st.dir.LastModified {
		if path != oldPrefix && !strings.HasPrefix(path, oldPrefix+string(filepath.Separator)) {
			continue
		}
		renamed := newPath + strings.TrimPrefix(path, oldPrefix)
		if !fixed[renamed] {
			st.dir.LastModified[renamed] = mtime
			fixed[renamed] = true
		}
		delete(st.dir.LastModified, path)
	}
}

func (w *InotifyEngine) resolveWatchLocked(path string) (*watchEntry, bool) {
	if e, ok := w.watches[path]; ok {
		return e, true
	}
	// recursive watches fire events for descendants; walk up to the
	// nearest registered root.
	dir := filepath.Dir(path)
	for {
		if e, ok := w.watches[dir]; ok {
			return e, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, false
		}
		dir = parent
	}
}
