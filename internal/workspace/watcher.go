package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// EventKind classifies watcher events.
type EventKind int

const (
	// DocumentSeen fires when a relevant document appears or changes under
	// a watched root.
	DocumentSeen EventKind = iota
	// FolderGone fires when a watched root itself disappears.
	FolderGone
)

// Event is one filesystem observation relevant to client lifecycle.
type Event struct {
	Kind EventKind
	Path string
}

// Watcher observes workspace roots and reports document activity and root
// removal. fsnotify watches are per-directory, so subdirectories are added
// as they are discovered.
type Watcher struct {
	fs     *fsnotify.Watcher
	roots  []string
	events chan Event
	log    *log.Logger
}

// NewWatcher creates a watcher over the given roots.
func NewWatcher(logger *log.Logger, roots []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:     fsw,
		events: make(chan Event, 64),
		log:    logger,
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.roots = append(w.roots, filepath.Clean(abs))
	}

	for _, root := range w.roots {
		if err := w.watchTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Events returns the channel watcher observations are delivered on.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close releases the underlying filesystem watches.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run scans the roots for existing documents, then relays filesystem
// activity until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// handle translates one fsnotify event into watcher events.
func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		for _, root := range w.roots {
			if filepath.Clean(ev.Name) == root {
				w.emit(ctx, Event{Kind: FolderGone, Path: root})
				return
			}
		}
		return
	}

	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}

	if relevantDocument(ev.Name) {
		w.emit(ctx, Event{Kind: DocumentSeen, Path: ev.Name})
		return
	}

	// A new directory needs its own watch; documents already inside it are
	// picked up by the scan.
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		if err := w.watchTree(ev.Name); err != nil {
			w.log.Warn("could not watch new directory", "path", ev.Name, "error", err)
			return
		}
		w.scanDir(ctx, ev.Name)
	}
}

// scanExisting emits DocumentSeen for documents already present when the
// watcher starts.
func (w *Watcher) scanExisting(ctx context.Context) {
	for _, root := range w.roots {
		w.scanDir(ctx, root)
	}
}

func (w *Watcher) scanDir(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if !d.IsDir() && relevantDocument(path) {
			w.emit(ctx, Event{Kind: DocumentSeen, Path: path})
		}
		return nil
	})
}

// watchTree registers dir and all its subdirectories.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.fs.Add(path); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

// relevantDocument reports whether a file should trigger client startup for
// its root.
func relevantDocument(path string) bool {
	switch filepath.Ext(path) {
	case ".tf", ".tfvars":
		return true
	}
	return false
}
