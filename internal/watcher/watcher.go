// Package watcher ingests files dropped into an inbox directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/ignore"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce is the quiet period after the last write before a file is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Ingester indexes one file.
type Ingester interface {
	Ingest(ctx context.Context, data []byte, filename string) (retrieval.IngestResult, error)
}

// Config configures a Watcher.
type Config struct {
	// Dir is the inbox directory. It is created if missing.
	Dir string

	// Extensions lists the lowercase file extensions to ingest, with leading dot.
	Extensions []string

	// Debounce is how long a path must stay quiet before it is ingested.
	Debounce time.Duration

	// IngestExisting ingests files already in Dir when Start is called.
	IngestExisting bool

	// MaxFileBytes skips larger files. Zero means no limit.
	MaxFileBytes int64

	// IgnoreFile names a gitignore-style pattern file inside Dir; matching
	// files are never ingested. Defaults to ignore.DefaultFile. The file is
	// reloaded whenever it changes.
	IgnoreFile string
}

// Result reports one ingestion attempt.
type Result struct {
	Path   string
	Result retrieval.IngestResult
	Err    error
}

// Watcher debounces filesystem events per path and hands settled files to
// an Ingester.
type Watcher struct {
	cfg      Config
	exts     map[string]struct{}
	ingester Ingester
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	results  chan Result

	mu      sync.Mutex
	ignore  *ignore.Matcher
	timers  map[string]*time.Timer
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a watcher for cfg.Dir. Call Start to begin watching.
func New(cfg Config, ingester Ingester, logger *zap.Logger) (*Watcher, error) {
	if ingester == nil {
		return nil, fmt.Errorf("ingester cannot be nil")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.IgnoreFile == "" {
		cfg.IgnoreFile = ignore.DefaultFile
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cfg.Dir, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	cfg.Dir = dir

	matcher, err := ignore.Load(filepath.Join(dir, cfg.IgnoreFile))
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		cfg:      cfg,
		exts:     exts,
		ingester: ingester,
		logger:   logger,
		watcher:  fw,
		ignore:   matcher,
		results:  make(chan Result, 64),
		timers:   make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// Dir returns the absolute inbox directory.
func (w *Watcher) Dir() string {
	return w.cfg.Dir
}

// Results delivers ingestion outcomes. Results are dropped when the channel
// is full.
func (w *Watcher) Results() <-chan Result {
	return w.results
}

// Start begins watching. Events are processed in a background goroutine
// until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info("watching inbox",
		zap.String("dir", w.cfg.Dir),
		zap.Strings("extensions", w.cfg.Extensions),
		zap.Duration("debounce", w.cfg.Debounce),
	)

	if w.cfg.IngestExisting {
		entries, err := os.ReadDir(w.cfg.Dir)
		if err != nil {
			return fmt.Errorf("listing %s: %w", w.cfg.Dir, err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				w.schedule(ctx, filepath.Join(w.cfg.Dir, e.Name()))
			}
		}
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops watching, cancels pending ingestions and waits for running
// ones to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stop)
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == w.cfg.IgnoreFile {
				w.reloadIgnore()
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watcher error", zap.Error(err))
		}
	}
}

// reloadIgnore re-reads the ignore file. A broken file keeps the previous
// patterns.
func (w *Watcher) reloadIgnore() {
	path := filepath.Join(w.cfg.Dir, w.cfg.IgnoreFile)
	m, err := ignore.Load(path)
	if err != nil {
		w.logger.Warn("keeping previous ignore patterns", zap.String("path", path), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.ignore = m
	w.mu.Unlock()
	w.logger.Info("ignore patterns reloaded", zap.String("path", path), zap.Int("rules", m.Len()))
}

// wanted reports whether path has an accepted extension and is neither
// hidden nor ignored.
func (w *Watcher) wanted(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	if len(w.exts) > 0 {
		if _, ok := w.exts[strings.ToLower(filepath.Ext(base))]; !ok {
			return false
		}
	}
	w.mu.Lock()
	ignored := w.ignore.Match(base)
	w.mu.Unlock()
	return !ignored
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.wanted(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.armLocked(ctx, path)
}

// armLocked pushes back the pending timer for path, or starts a new one when
// there is none or it has already fired. A fired callback only ingests if
// its timer is still the one registered for path. Callers hold w.mu.
func (w *Watcher) armLocked(ctx context.Context, path string) {
	if w.stopped {
		return
	}
	if t, ok := w.timers[path]; ok && t.Stop() {
		t.Reset(w.cfg.Debounce)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		if w.stopped || w.timers[path] != t {
			w.mu.Unlock()
			return
		}
		delete(w.timers, path)
		w.wg.Add(1)
		w.mu.Unlock()

		defer w.wg.Done()
		w.ingest(ctx, path)
	})
	w.timers[path] = t
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	res := Result{Path: path}
	defer func() {
		select {
		case w.results <- res:
		default:
		}
	}()

	info, err := os.Stat(path)
	if err != nil {
		// Removed or renamed before it settled.
		w.logger.Debug("inbox file vanished", zap.String("path", path), zap.Error(err))
		res.Err = err
		return
	}
	if !info.Mode().IsRegular() {
		res.Err = fmt.Errorf("%s is not a regular file", path)
		return
	}
	if w.cfg.MaxFileBytes > 0 && info.Size() > w.cfg.MaxFileBytes {
		res.Err = fmt.Errorf("%s is %d bytes, limit %d", path, info.Size(), w.cfg.MaxFileBytes)
		w.logger.Warn("skipping oversized inbox file", zap.String("path", path), zap.Int64("bytes", info.Size()))
		return
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is inside the watched directory
	if err != nil {
		res.Err = fmt.Errorf("reading %s: %w", path, err)
		w.logger.Warn("reading inbox file failed", zap.String("path", path), zap.Error(err))
		return
	}

	res.Result, res.Err = w.ingester.Ingest(ctx, data, filepath.Base(path))
	if res.Err != nil {
		w.logger.Error("inbox ingestion failed", zap.String("path", path), zap.Error(res.Err))
		return
	}
	w.logger.Info("inbox file ingested",
		zap.String("path", path),
		zap.String("status", string(res.Result.Status)),
		zap.String("document_id", res.Result.DocumentID),
		zap.Int("chunks", res.Result.ChunksIndexed),
	)
}
