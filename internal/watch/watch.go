// Package watch keeps the output tree in step with the input tree after the
// initial run by converting files as they are created or modified.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a path must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Handler processes changes in the input tree. pipeline.Processor
// satisfies it.
type Handler interface {
	HandleDir(dir string) error
	HandleFile(ctx context.Context, path string) error
}

// Watcher monitors an input tree recursively.
type Watcher struct {
	root     string
	handler  Handler
	log      *zap.Logger
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	running sync.WaitGroup
}

// New creates a Watcher and registers every non-hidden directory under root.
func New(root string, h Handler, log *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		handler:  h,
		log:      log,
		debounce: DefaultDebounce,
		fsw:      fsw,
		pending:  make(map[string]*time.Timer),
	}
	if err := w.addTree(root, nil); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// SetDebounce changes the quiet period. Call it before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run handles events until ctx is cancelled, then waits for handlers that
// are already running and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.log.Info("watching for changes", zap.String("dir", w.root))

	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				w.stop()
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.stop()
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if isHidden(filepath.Base(event.Name)) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		fi, err := os.Lstat(event.Name)
		if err != nil {
			// Already gone again.
			return
		}
		if fi.IsDir() {
			if err := w.addTree(event.Name, func(path string) { w.schedule(ctx, path) }); err != nil {
				w.log.Warn("cannot watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
		if fi.Mode().IsRegular() {
			w.schedule(ctx, event.Name)
		}

	case event.Has(fsnotify.Write):
		w.schedule(ctx, event.Name)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(event.Name)
		w.log.Debug("source removed", zap.String("path", event.Name))
	}
}

// addTree mirrors and watches dir and every non-hidden directory below it.
// Regular files found on the way are passed to onFile when it is non-nil;
// they may have been written before the watch was in place.
func (w *Watcher) addTree(dir string, onFile func(string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.log.Warn("cannot read", zap.String("path", path), zap.Error(err))
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if onFile != nil && d.Type().IsRegular() {
				onFile(path)
			}
			return nil
		}

		if onFile != nil {
			if err := w.handler.HandleDir(path); err != nil {
				w.log.Warn("cannot mirror directory", zap.String("dir", path), zap.Error(err))
			}
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.log.Debug("watching", zap.String("dir", path))
		return nil
	})
}

// schedule runs the handler for path once no further event for it has
// arrived within the debounce period.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.fire(ctx, path) })
}

func (w *Watcher) fire(ctx context.Context, path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.running.Add(1)
	w.mu.Unlock()
	defer w.running.Done()

	// Failures are logged and counted by the handler.
	_ = w.handler.HandleFile(ctx, path)
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.running.Wait()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
