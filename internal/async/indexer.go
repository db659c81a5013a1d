package async

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunFunc is the indexing work executed in the background.
type RunFunc func(ctx context.Context, progress *Progress) error

// RunnerConfig configures the background runner.
type RunnerConfig struct {
	// DataDir holds the in-progress marker file.
	DataDir string
}

// Runner executes one indexing pass in a background goroutine. A
// marker file in the data dir flags a pass that died mid-way, so the
// next startup can trigger a full reindex.
type Runner struct {
	config   RunnerConfig
	progress *Progress

	// Run is the indexing function, injectable for tests.
	Run RunFunc

	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
	err     error
}

const markerFile = "indexing.lock"

// NewRunner creates a runner for one pass. Runners are single-use;
// start a new one for each pass.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		config:   cfg,
		progress: NewProgress(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the pass progress tracker.
func (r *Runner) Progress() *Progress {
	return r.progress
}

// IsRunning reports whether the pass is still executing.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches the pass and returns immediately. Use Wait to block
// for the result.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.doneCh)
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	markerPath := filepath.Join(r.config.DataDir, markerFile)
	if err := os.MkdirAll(r.config.DataDir, 0o755); err != nil {
		r.fail(err)
		return
	}
	if err := os.WriteFile(markerPath, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		r.fail(err)
		return
	}
	defer func() { _ = os.Remove(markerPath) }()

	if r.Run != nil {
		if err := r.Run(ctx, r.progress); err != nil {
			r.fail(err)
			return
		}
	}
	r.progress.SetReady()
}

func (r *Runner) fail(err error) {
	r.progress.SetError(err.Error())
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Stop cancels the pass and waits for it to wind down.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// Wait blocks until the pass finishes and returns its error.
func (r *Runner) Wait() error {
	<-r.doneCh
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// HasIncompleteMarker reports whether a previous pass died without
// cleaning up, which means the index may be partial.
func HasIncompleteMarker(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, markerFile))
	return err == nil
}
