// Package watch reports Python files that changed on disk once they have
// been stable for a debounce period.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/sieve/pkg/config"
	"github.com/panbanda/sieve/pkg/parser"
	"github.com/panbanda/sieve/pkg/syntax"
)

// DefaultDebounce is used when no positive debounce is configured.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a directory tree for Python file changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	logger    *slog.Logger
	root      string
	mu        sync.Mutex
	pending   map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a file must stay unchanged before it is
// reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger for watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New watches every directory under root that the config does not exclude.
// Watches are in place when New returns.
func New(root string, cfg *config.Config, opts ...Option) (*Watcher, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  DefaultDebounce,
		logger:    slog.New(slog.DiscardHandler),
		root:      root,
		pending:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(root); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && slices.Contains(w.config.Exclude.Dirs, d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Run delivers changed files to onChange, one at a time and sorted within
// a batch, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case now := <-ticker.C:
			for _, path := range w.ready(now) {
				onChange(path)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	path := event.Name

	if event.Op&fsnotify.Create != 0 {
		// New directories get watched too; a no-op for files.
		if err := w.addTree(path); err != nil {
			w.logger.Debug("watch directory", "path", path, "error", err)
		}
	}

	if w.config.ShouldExclude(path) {
		return
	}
	if parser.DetectLanguage(path) != syntax.LangPython {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// ready removes and returns the pending paths unchanged for the debounce
// period as of now.
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var paths []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			paths = append(paths, path)
		}
	}
	for _, path := range paths {
		delete(w.pending, path)
	}
	slices.Sort(paths)
	return paths
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

// Watched returns the watched directories.
func (w *Watcher) Watched() []string {
	return w.fsWatcher.WatchList()
}
