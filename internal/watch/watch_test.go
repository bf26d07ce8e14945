package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu    sync.Mutex
	dirs  []string
	files map[string]int
}

func newRecorder() *recorder {
	return &recorder{files: make(map[string]int)}
}

func (r *recorder) HandleDir(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, dir)
	return nil
}

func (r *recorder) HandleFile(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path]++
	return nil
}

func (r *recorder) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files[path]
}

func (r *recorder) sawDir(dir string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.dirs {
		if d == dir {
			return true
		}
	}
	return false
}

// start runs a watcher on root and returns a function that stops it.
func start(t *testing.T, root string, h Handler) func() {
	t.Helper()
	w, err := New(root, h, zaptest.NewLogger(t))
	require.NoError(t, err)
	w.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	stop := start(t, root, rec)
	defer stop()

	path := filepath.Join(root, "photo.jpg")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
	}

	assert.Eventually(t, func() bool { return rec.count(path) == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, rec.count(path), "rapid writes should collapse into one conversion")
}

func TestWatcher_ModifiedAgainLater(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	rec := newRecorder()
	stop := start(t, root, rec)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	assert.Eventually(t, func() bool { return rec.count(path) == 1 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("c"), 0o644))
	assert.Eventually(t, func() bool { return rec.count(path) == 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	stop := start(t, root, rec)
	defer stop()

	sub := filepath.Join(root, "album")
	require.NoError(t, os.Mkdir(sub, 0o755))
	assert.Eventually(t, func() bool { return rec.sawDir(sub) }, 3*time.Second, 10*time.Millisecond)

	// The new directory is watched too.
	path := filepath.Join(sub, "inside.gif")
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("x"), 0o644)
		return rec.count(path) >= 1
	}, 5*time.Second, 100*time.Millisecond)
}

func TestWatcher_IgnoresHidden(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()
	stop := start(t, root, rec)
	defer stop()

	hidden := filepath.Join(root, ".partial.jpg")
	visible := filepath.Join(root, "done.jpg")
	require.NoError(t, os.WriteFile(hidden, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(visible, []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return rec.count(visible) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, rec.count(hidden))
}

func TestWatcher_RemovedBeforeDebounce(t *testing.T) {
	root := t.TempDir()
	rec := newRecorder()

	w, err := New(root, rec, zaptest.NewLogger(t))
	require.NoError(t, err)
	w.SetDebounce(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	path := filepath.Join(root, "gone.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		_, ok := w.pending[path]
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.pending) == 0
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, rec.count(path))
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), newRecorder(), zaptest.NewLogger(t))
	assert.Error(t, err)
}
