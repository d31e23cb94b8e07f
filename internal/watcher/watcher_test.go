package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

type recordingIngester struct {
	mu    sync.Mutex
	files map[string][]string
	err   error
}

func newRecordingIngester() *recordingIngester {
	return &recordingIngester{files: make(map[string][]string)}
}

func (r *recordingIngester) Ingest(_ context.Context, data []byte, filename string) (retrieval.IngestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[filename] = append(r.files[filename], string(data))
	if r.err != nil {
		return retrieval.IngestResult{}, r.err
	}
	return retrieval.IngestResult{Status: retrieval.StatusOK, DocumentID: "doc", Filename: filename, ChunksIndexed: 1}, nil
}

func (r *recordingIngester) calls(filename string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files[filename]...)
}

func startWatcher(t *testing.T, cfg Config, ing Ingester) *Watcher {
	t.Helper()
	w, err := New(cfg, ing, zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		w.Stop()
		cancel()
	})
	return w
}

func waitResult(t *testing.T, w *Watcher) Result {
	t.Helper()
	select {
	case r := <-w.Results():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ingestion")
		return Result{}
	}
}

func TestNew(t *testing.T) {
	t.Run("requires ingester", func(t *testing.T) {
		_, err := New(Config{Dir: t.TempDir()}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("requires dir", func(t *testing.T) {
		_, err := New(Config{}, newRecordingIngester(), nil)
		assert.Error(t, err)
	})

	t.Run("creates missing dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "inbox", "nested")
		w, err := New(Config{Dir: dir}, newRecordingIngester(), nil)
		require.NoError(t, err)
		defer w.Stop()

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, DefaultDebounce, w.cfg.Debounce)
	})
}

func TestWatcher_IngestsNewFile(t *testing.T) {
	dir := t.TempDir()
	ing := newRecordingIngester()
	w := startWatcher(t, Config{Dir: dir, Extensions: []string{".txt"}, Debounce: 50 * time.Millisecond}, ing)

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello inbox"), 0o600))

	res := waitResult(t, w)
	require.NoError(t, res.Err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, retrieval.StatusOK, res.Result.Status)
	assert.Equal(t, []string{"hello inbox"}, ing.calls("notes.txt"))
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	ing := newRecordingIngester()
	w := startWatcher(t, Config{Dir: dir, Extensions: []string{".md"}, Debounce: 300 * time.Millisecond}, ing)

	path := filepath.Join(dir, "draft.md")
	f, err := os.Create(path)
	require.NoError(t, err)
	for _, part := range []string{"one ", "two ", "three"} {
		_, err := f.WriteString(part)
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	res := waitResult(t, w)
	require.NoError(t, res.Err)

	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, []string{"one two three"}, ing.calls("draft.md"))
}

func TestWatcher_RearmAfterTimerFiredIngestsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.txt")
	require.NoError(t, os.WriteFile(path, []byte("settled"), 0o600))
	ing := newRecordingIngester()
	w, err := New(Config{Dir: dir, Extensions: []string{".txt"}, Debounce: 20 * time.Millisecond}, ing, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	ctx := context.Background()

	w.mu.Lock()
	w.armLocked(ctx, path)
	// The first timer fires and its callback waits for the lock.
	time.Sleep(150 * time.Millisecond)
	w.armLocked(ctx, path)
	w.mu.Unlock()

	res := waitResult(t, w)
	require.NoError(t, res.Err)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, []string{"settled"}, ing.calls("late.txt"))
	w.mu.Lock()
	assert.Empty(t, w.timers)
	w.mu.Unlock()
}

func TestWatcher_IgnoresUnwantedFiles(t *testing.T) {
	dir := t.TempDir()
	ing := newRecordingIngester()
	w := startWatcher(t, Config{Dir: dir, Extensions: []string{".txt"}, Debounce: 50 * time.Millisecond}, ing)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("hidden"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UPPER.TXT"), []byte("upper"), 0o600))

	res := waitResult(t, w)
	assert.Equal(t, "UPPER.TXT", filepath.Base(res.Path))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, ing.calls("image.png"))
	assert.Empty(t, ing.calls(".hidden.txt"))
}

func TestWatcher_IngestExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.txt"), []byte("already here"), 0o600))
	ing := newRecordingIngester()

	w := startWatcher(t, Config{Dir: dir, Extensions: []string{".txt"}, Debounce: 20 * time.Millisecond, IngestExisting: true}, ing)

	res := waitResult(t, w)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"already here"}, ing.calls("old.txt"))
}

func TestWatcher_ReportsFailures(t *testing.T) {
	t.Run("ingester error", func(t *testing.T) {
		dir := t.TempDir()
		ing := newRecordingIngester()
		ing.err = retrieval.ErrEmbedding
		w := startWatcher(t, Config{Dir: dir, Debounce: 20 * time.Millisecond}, ing)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o600))
		res := waitResult(t, w)
		assert.True(t, errors.Is(res.Err, retrieval.ErrEmbedding))
	})

	t.Run("oversized file", func(t *testing.T) {
		dir := t.TempDir()
		ing := newRecordingIngester()
		w := startWatcher(t, Config{Dir: dir, Debounce: 20 * time.Millisecond, MaxFileBytes: 2}, ing)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), []byte("too big"), 0o600))
		res := waitResult(t, w)
		assert.Error(t, res.Err)
		assert.Empty(t, ing.calls("big.txt"))
	})
}

func TestWatcher_StopCancelsPending(t *testing.T) {
	dir := t.TempDir()
	ing := newRecordingIngester()
	w, err := New(Config{Dir: dir, Debounce: time.Hour}, ing, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o600))
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.timers) == 1
	}, 5*time.Second, 10*time.Millisecond)

	w.Stop()
	w.Stop()
	w.mu.Lock()
	assert.Empty(t, w.timers)
	w.mu.Unlock()
	assert.Empty(t, ing.calls("a.txt"))
}

func TestWatcher_IgnoreFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docragignore"), []byte("scratch-*\n"), 0o600))
	ing := newRecordingIngester()
	w := startWatcher(t, Config{Dir: dir, Extensions: []string{".txt"}, Debounce: 50 * time.Millisecond}, ing)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch-1.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kept.txt"), []byte("kept"), 0o600))

	res := waitResult(t, w)
	assert.Equal(t, "kept.txt", filepath.Base(res.Path))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, ing.calls("scratch-1.txt"))
}

func TestWatcher_ReloadsIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	ing := newRecordingIngester()
	w := startWatcher(t, Config{Dir: dir, Extensions: []string{".txt"}, Debounce: 50 * time.Millisecond}, ing)
	assert.True(t, w.wanted(filepath.Join(dir, "x.txt")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docragignore"), []byte("*.txt\n"), 0o600))
	require.Eventually(t, func() bool {
		return !w.wanted(filepath.Join(dir, "x.txt"))
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_BrokenIgnoreFileKeepsPatterns(t *testing.T) {
	dir := t.TempDir()
	ignorePath := filepath.Join(dir, ".docragignore")
	require.NoError(t, os.WriteFile(ignorePath, []byte("*.txt\n"), 0o600))
	w, err := New(Config{Dir: dir}, newRecordingIngester(), nil)
	require.NoError(t, err)
	defer w.Stop()
	assert.False(t, w.wanted(filepath.Join(dir, "x.txt")))

	require.NoError(t, os.WriteFile(ignorePath, []byte("[\n"), 0o600))
	w.reloadIgnore()
	assert.False(t, w.wanted(filepath.Join(dir, "x.txt")))

	require.NoError(t, os.Remove(ignorePath))
	w.reloadIgnore()
	assert.True(t, w.wanted(filepath.Join(dir, "x.txt")))
}

func TestNew_BadIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.ignore"), []byte("[\n"), 0o600))
	_, err := New(Config{Dir: dir, IgnoreFile: "custom.ignore"}, newRecordingIngester(), nil)
	assert.Error(t, err)
}
