// Package watcher delivers debounced change notifications for an
// explicit set of files. The watch set is replaced wholesale after
// every build, so the watcher always tracks exactly the entry file and
// its current imports.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent is one observed change to a watched file.
type ChangeEvent struct {
	Type EventType
	Path string
}

// EventType classifies a file change.
type EventType int

const (
	EventTypeModified EventType = iota
	EventTypeCreated
	EventTypeDeleted
	EventTypeRenamed
)

func (e EventType) String() string {
	switch e {
	case EventTypeModified:
		return "modified"
	case EventTypeCreated:
		return "created"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Watcher watches a replaceable set of files. Events for watched files
// are grouped by the debouncer and delivered as batches on Changes.
//
// Directories are watched rather than the files themselves: editors
// commonly replace files on save, which drops inode-level watches.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *debouncer
	logger    *slog.Logger

	mu    sync.RWMutex
	files map[string]bool
	dirs  map[string]bool
}

// New creates a watcher with the given debounce window.
func New(debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw: fsw,
		debouncer: &debouncer{
			delay:  debounce,
			events: make(chan ChangeEvent, 100),
			output: make(chan []ChangeEvent, 10),
		},
		logger: logger,
		files:  make(map[string]bool),
		dirs:   make(map[string]bool),
	}, nil
}

// SetFiles replaces the watch set. Parent directories no longer needed
// are unwatched, newly needed ones are added.
func (w *Watcher) SetFiles(paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	for dir := range w.dirs {
		if !dirs[dir] {
			if err := w.fsw.Remove(dir); err != nil {
				w.logger.Warn("unwatching directory", "dir", dir, "error", err)
			}
		}
	}
	for dir := range dirs {
		if !w.dirs[dir] {
			if err := w.fsw.Add(dir); err != nil {
				return err
			}
		}
	}

	w.files = files
	w.dirs = dirs
	return nil
}

// Changes returns the channel of debounced event batches.
func (w *Watcher) Changes() <-chan []ChangeEvent {
	return w.debouncer.output
}

// Start runs the watch loops until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.debouncer.run(ctx)
	go w.loop(ctx)
}

// Close releases the underlying OS watches.
func (w *Watcher) Close() error {
	w.debouncer.stop()
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	// Chmod-only events carry no content change.
	if event.Op == fsnotify.Chmod {
		return
	}

	path := filepath.Clean(event.Name)
	w.mu.RLock()
	watched := w.files[path]
	w.mu.RUnlock()
	if !watched {
		return
	}

	var typ EventType
	switch {
	case event.Op.Has(fsnotify.Create):
		typ = EventTypeCreated
	case event.Op.Has(fsnotify.Remove):
		typ = EventTypeDeleted
	case event.Op.Has(fsnotify.Rename):
		typ = EventTypeRenamed
	default:
		typ = EventTypeModified
	}

	select {
	case w.debouncer.events <- ChangeEvent{Type: typ, Path: path}:
	default:
		// channel full, a rebuild is already inevitable
	}
}

// debouncer groups rapid changes into one batch per quiet period.
type debouncer struct {
	delay  time.Duration
	events chan ChangeEvent
	output chan []ChangeEvent

	mu      sync.Mutex
	timer   *time.Timer
	pending []ChangeEvent
}

func (d *debouncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.add(event)
		}
	}
}

func (d *debouncer) add(event ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = append(d.pending, event)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// Deduplicate by path, last event wins.
	seen := make(map[string]int, len(d.pending))
	batch := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		if i, ok := seen[event.Path]; ok {
			batch[i] = event
			continue
		}
		seen[event.Path] = len(batch)
		batch = append(batch, event)
	}

	select {
	case d.output <- batch:
	default:
	}
	d.pending = d.pending[:0]
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
