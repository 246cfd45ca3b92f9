// Package watcher reports changes inside the receive folder.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

const (
	defaultQuietPeriod = 500 * time.Millisecond
	minSweepInterval   = 10 * time.Millisecond
)

// Watcher coalesces raw filesystem notifications into one FileEvent per path.
// A path is reported once it has been quiet for the quiet period and the
// filter no longer holds it back.
type Watcher struct {
	root   string
	filter FilterConfig
	quiet  time.Duration
	fsw    *fsnotify.Watcher
	events chan FileEvent

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// pendingChange is a path that changed but has not been reported yet.
type pendingChange struct {
	eventType EventType
	lastSeen  time.Time
}

func NewWatcher(appCtx context.Context, root string, filter FilterConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(appCtx)
	return &Watcher{
		root:   root,
		filter: filter,
		quiet:  defaultQuietPeriod,
		fsw:    fsw,
		events: make(chan FileEvent, 100),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// SetQuietPeriod changes how long a path must stay unchanged before it is reported; call before Start.
func (w *Watcher) SetQuietPeriod(d time.Duration) {
	w.quiet = d
}

func (w *Watcher) Start() error {
	if err := w.fsw.Add(w.root); err != nil {
		return err
	}
	if w.filter.WatchSubdirectories {
		w.watchTree(w.root)
	}
	w.done = make(chan struct{})
	go w.run()
	logger.Log.Info("Inbox watcher started", "path", w.root, "quietPeriod", w.quiet.String())
	return nil
}

// Stop is safe to call more than once, and before Start. Events is closed afterwards.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		w.fsw.Close()
		if w.done != nil {
			<-w.done
		}
		close(w.events)
		logger.Log.Info("Inbox watcher stopped")
	})
}

func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// run owns the pending set; every notification, error and sweep is handled here.
func (w *Watcher) run() {
	defer close(w.done)
	interval := w.quiet / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	sweep := time.NewTicker(interval)
	defer sweep.Stop()

	pending := make(map[string]*pendingChange)
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.record(pending, event, time.Now())
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Log.Warn("Inbox watcher error", "err", err)
		case now := <-sweep.C:
			w.flush(pending, now)
		}
	}
}

func (w *Watcher) record(pending map[string]*pendingChange, event fsnotify.Event, now time.Time) {
	if !w.filter.ShouldProcess(event.Name) {
		return
	}
	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
		if w.filter.WatchSubdirectories {
			w.watchTree(event.Name)
		}
	case event.Has(fsnotify.Write):
		eventType = EventWrite
	case event.Has(fsnotify.Remove):
		eventType = EventRemove
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return
	}
	if p, ok := pending[event.Name]; ok {
		p.eventType = coalesce(p.eventType, eventType)
		p.lastSeen = now
		return
	}
	pending[event.Name] = &pendingChange{eventType: eventType, lastSeen: now}
}

// coalesce folds a new change into one already pending for the same path.
// A file created and then written is still a creation; a removal always wins.
func coalesce(prev, next EventType) EventType {
	if prev == EventCreate && next == EventWrite {
		return EventCreate
	}
	return next
}

func (w *Watcher) flush(pending map[string]*pendingChange, now time.Time) {
	for path, p := range pending {
		if now.Sub(p.lastSeen) < w.quiet || w.filter.Held(path) {
			continue
		}
		delete(pending, path)
		select {
		case w.events <- FileEvent{Type: p.eventType, Path: path, Timestamp: now}:
		default:
			logger.Log.Warn("Events channel full, dropping event", "path", path)
		}
	}
}

func (w *Watcher) watchTree(dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == w.root {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			logger.Log.Warn("Failed to watch subdirectory", "path", path, "err", err)
		}
		return nil
	})
}
