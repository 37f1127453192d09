// Package watch re-indexes documents dropped into a directory. File events
// are matched against a glob, debounced so a file is indexed once it stops
// changing, and handed to a single-worker queue.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

const (
	DefaultPattern  = "*.pdf"
	DefaultDebounce = 500 * time.Millisecond
)

type Config struct {
	// Dir is the directory to watch. It is created if missing.
	Dir string

	// Pattern is a doublestar glob matched against paths relative to Dir.
	Pattern string

	Debounce time.Duration
	Pool     *Pool
	Logger   *slog.Logger
}

type Watcher struct {
	dir      string
	pattern  string
	debounce time.Duration
	pool     *Pool
	fsw      *fsnotify.Watcher
	logger   *slog.Logger

	mu     sync.Mutex
	latest string
	timer  *time.Timer
}

func New(c Config) (*Watcher, error) {
	if c.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if c.Pool == nil {
		return nil, fmt.Errorf("index pool is required")
	}

	pattern := c.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}

	debounce := c.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating watch directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fsw.Add(c.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", c.Dir, err)
	}

	return &Watcher{
		dir:      c.Dir,
		pattern:  pattern,
		debounce: debounce,
		pool:     c.Pool,
		fsw:      fsw,
		logger:   logger,
	}, nil
}

// Newest returns the most recently modified file in Dir matching the
// pattern, or "" when there is none.
func (w *Watcher) Newest() (string, error) {
	matches, err := doublestar.Glob(os.DirFS(w.dir), w.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", w.dir, err)
	}

	var (
		newest  string
		newestT time.Time
	)
	for _, m := range matches {
		info, err := fs.Stat(os.DirFS(w.dir), m)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestT) {
			newest, newestT = filepath.Join(w.dir, m), info.ModTime()
		}
	}
	return newest, nil
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching for documents", "dir", w.dir, "pattern", w.pattern)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if w.matches(event.Name) {
				w.schedule(event.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

// schedule restarts the debounce timer; only the latest path is indexed
// when it fires.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.latest = path
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	path := w.latest
	w.latest = ""
	w.timer = nil
	w.mu.Unlock()

	if path == "" {
		return
	}
	w.logger.Info("document changed, queueing re-index", "path", path)
	w.pool.Enqueue(Job{Path: path})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
