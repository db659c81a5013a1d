package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/symdex-dev/symdex/internal/gitignore"
)

// FSWatcher watches a workspace tree with fsnotify, filtering ignored
// paths and debouncing bursts into batches.
type FSWatcher struct {
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	ignore    *gitignore.Matcher
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	rootPath  string
	opts      Options
	logger    *slog.Logger

	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

// New creates a watcher with the given options.
func New(opts Options, logger *slog.Logger) (*FSWatcher, error) {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &FSWatcher{
		fsw:       fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
		logger:    logger,
	}
	w.resetIgnoreRules()
	return w, nil
}

// Start watches path recursively and blocks until Stop is called or
// the context ends. Events arrive on Events as debounced batches.
func (w *FSWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving watch root: %w", err)
	}
	w.rootPath = absPath
	w.loadGitignore()

	go w.forwardBatches(ctx)

	if err := w.addRecursive(absPath); err != nil {
		return fmt.Errorf("registering watch directories: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *FSWatcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		relPath = event.Name
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.shouldIgnore(relPath, isDir) {
		return
	}

	base := filepath.Base(event.Name)
	if base == ".gitignore" {
		w.loadGitignore()
		w.debouncer.Add(FileEvent{
			Path:      relPath,
			Operation: OpGitignoreChange,
			Timestamp: time.Now(),
		})
		return
	}
	if base == ".symdex.yaml" || base == ".symdex.yml" {
		w.debouncer.Add(FileEvent{
			Path:      relPath,
			Operation: OpConfigChange,
			Timestamp: time.Now(),
		})
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		// New directories need their own watch.
		if isDir {
			_ = w.fsw.Add(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      relPath,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

func (w *FSWatcher) forwardBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) == 0 {
				continue
			}
			w.emitEvents(events)
		}
	}
}

func (w *FSWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		relPath, _ := filepath.Rel(w.rootPath, path)
		if relPath == "." {
			return w.fsw.Add(path)
		}
		if w.shouldIgnore(relPath, true) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *FSWatcher) shouldIgnore(relPath string, isDir bool) bool {
	if relPath == "." || relPath == "" {
		return true
	}
	if relPath == ".git" || strings.HasPrefix(relPath, ".git/") {
		return true
	}
	if relPath == ".symdex" || strings.HasPrefix(relPath, ".symdex/") {
		return true
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ignore.Match(relPath, isDir)
}

// resetIgnoreRules rebuilds the matcher from the option patterns plus
// the data dir rules.
func (w *FSWatcher) resetIgnoreRules() {
	w.ignore = gitignore.New()
	for _, pattern := range w.opts.IgnorePatterns {
		_ = w.ignore.AddPattern(pattern)
	}
	_ = w.ignore.AddPattern(".symdex/")
}

func (w *FSWatcher) loadGitignore() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.resetIgnoreRules()
	path := filepath.Join(w.rootPath, ".gitignore")
	if err := w.ignore.AddFromFile(path); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("gitignore_load_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func (w *FSWatcher) emitEvents(events []FileEvent) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case w.events <- events:
	default:
		count := w.droppedBatches.Add(1)
		w.logger.Warn("event_buffer_full",
			slog.Int("batch_size", len(events)),
			slog.Uint64("dropped_batches", count))
	}
}

func (w *FSWatcher) emitError(err error) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case w.errors <- err:
	default:
	}
}

// Stop halts the watcher and releases resources. Safe to call more
// than once.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	_ = w.fsw.Close()
	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of debounced event batches. Closed on
// Stop.
func (w *FSWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *FSWatcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches reports how many batches were lost to a full buffer.
func (w *FSWatcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}

// RootPath returns the watched root.
func (w *FSWatcher) RootPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rootPath
}
