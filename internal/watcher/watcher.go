// Package watcher observes the bank root for out-of-band edits made by
// editors or other tools. Raw fsnotify events are filtered down to
// tracked files and debounced per path, so a burst of editor saves
// yields one callback with the final event type.
package watcher

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/membank/internal/config"
	"github.com/standardbeagle/membank/internal/debug"
	"github.com/standardbeagle/membank/internal/types"
)

// Callback receives one debounced event per settled path.
type Callback func(types.FileEvent)

// Watcher debounces filesystem notifications for one bank root.
// Start and Stop are idempotent; Stop cancels pending debounce timers
// and is safe to call on a watcher that never started.
type Watcher struct {
	root     string
	cfg      config.Watcher
	patterns []string
	callback Callback

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*pendingEvent
	running bool
	done    chan struct{}
}

type pendingEvent struct {
	timer *time.Timer
	last  types.EventType
}

// New creates a watcher for root. patterns are the tracked-extension
// globs; everything else is ignored.
func New(root string, cfg config.Watcher, patterns []string, cb Callback) *Watcher {
	return &Watcher{
		root:     root,
		cfg:      cfg,
		patterns: patterns,
		callback: cb,
		pending:  map[string]*pendingEvent{},
	}
}

// Start begins watching. Calling Start on a running watcher is a
// no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.root); err != nil {
		fsw.Close()
		return err
	}

	w.fsw = fsw
	w.running = true
	w.done = make(chan struct{})
	go w.loop(fsw, w.done)

	debug.LogWatch("watching %s (debounce %v)\n", w.root, w.cfg.DebounceWindow)
	return nil
}

// Stop shuts the watcher down, cancelling any pending debounce timers
// so no callback fires after Stop returns. Idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	fsw := w.fsw
	done := w.done
	w.fsw = nil

	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	fsw.Close()
	<-done
	debug.LogWatch("stopped watching %s\n", w.root)
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			debug.LogWatch("fsnotify error: %v\n", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if !w.relevant(name) {
		return
	}

	var et types.EventType
	switch {
	case ev.Op.Has(fsnotify.Create):
		et = types.EventCreate
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		et = types.EventDelete
	case ev.Op.Has(fsnotify.Write):
		et = types.EventModify
	default:
		return // chmod and friends
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}

	if p, ok := w.pending[name]; ok {
		// Later events refine the type: a create followed by writes is
		// still a create; anything followed by a delete is a delete.
		if et == types.EventDelete {
			p.last = types.EventDelete
		} else if p.last == types.EventDelete {
			p.last = et
		}
		p.timer.Reset(w.cfg.DebounceWindow)
		return
	}

	p := &pendingEvent{last: et}
	p.timer = time.AfterFunc(w.cfg.DebounceWindow, func() {
		w.fire(name)
	})
	w.pending[name] = p
}

// fire delivers the settled event for one path.
func (w *Watcher) fire(name string) {
	w.mu.Lock()
	p, ok := w.pending[name]
	if ok {
		delete(w.pending, name)
	}
	running := w.running
	w.mu.Unlock()

	if !ok || !running || w.callback == nil {
		return
	}
	debug.LogWatch("event %s %s\n", p.last, name)
	w.callback(types.FileEvent{Path: name, Type: p.last})
}

// relevant filters raw events down to tracked content files: the
// index, lock sentinels, temp files, and anything outside the tracked
// extensions never reach the debounce stage.
func (w *Watcher) relevant(name string) bool {
	if name == types.IndexFileName ||
		name == types.AnalyticsFileName ||
		name == config.ConfigFileName ||
		strings.HasSuffix(name, ".lock") ||
		strings.HasPrefix(name, ".membank-") {
		return false
	}
	for _, pattern := range w.patterns {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
