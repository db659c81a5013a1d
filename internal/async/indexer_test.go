package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_RunsInBackground(t *testing.T) {
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})

	var ran atomic.Bool
	runner.Run = func(_ context.Context, _ *Progress) error {
		ran.Store(true)
		return nil
	}

	runner.Start(context.Background())
	require.NoError(t, runner.Wait())
	assert.True(t, ran.Load())
	assert.False(t, runner.IsRunning())

	snap := runner.Progress().Snapshot()
	assert.Equal(t, "ready", snap.Status)
}

func TestRunner_ProgressVisibleDuringRun(t *testing.T) {
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})

	release := make(chan struct{})
	runner.Run = func(_ context.Context, progress *Progress) error {
		progress.SetStage(StageExtracting, 40)
		progress.UpdateFiles(10)
		<-release
		return nil
	}

	runner.Start(context.Background())

	require.Eventually(t, func() bool {
		snap := runner.Progress().Snapshot()
		return snap.Stage == string(StageExtracting) && snap.FilesProcessed == 10
	}, time.Second, 5*time.Millisecond)
	assert.True(t, runner.IsRunning())

	snap := runner.Progress().Snapshot()
	assert.Equal(t, "indexing", snap.Status)
	assert.InDelta(t, 25.0, snap.ProgressPct, 0.001)

	close(release)
	require.NoError(t, runner.Wait())
}

func TestRunner_StopCancelsPass(t *testing.T) {
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})

	started := make(chan struct{})
	var canceled atomic.Bool
	runner.Run = func(ctx context.Context, _ *Progress) error {
		close(started)
		<-ctx.Done()
		canceled.Store(true)
		return ctx.Err()
	}

	runner.Start(context.Background())
	<-started
	runner.Stop()

	assert.True(t, canceled.Load())
	assert.False(t, runner.IsRunning())
}

func TestRunner_ParentContextCancellation(t *testing.T) {
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})

	runner.Run = func(ctx context.Context, _ *Progress) error {
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)
	cancel()

	err := runner.Wait()
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, runner.IsRunning())
}

func TestRunner_MarkerLifecycle(t *testing.T) {
	dataDir := t.TempDir()
	runner := NewRunner(RunnerConfig{DataDir: dataDir})

	var markerDuringRun atomic.Bool
	runner.Run = func(_ context.Context, _ *Progress) error {
		markerDuringRun.Store(HasIncompleteMarker(dataDir))
		return nil
	}

	runner.Start(context.Background())
	require.NoError(t, runner.Wait())

	// Present while running, gone after a clean finish.
	assert.True(t, markerDuringRun.Load())
	assert.False(t, HasIncompleteMarker(dataDir))
}

func TestRunner_ErrorRecordedInProgress(t *testing.T) {
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})

	runner.Run = func(_ context.Context, _ *Progress) error {
		return errors.New("embedding failed")
	}

	runner.Start(context.Background())
	err := runner.Wait()
	require.Error(t, err)

	snap := runner.Progress().Snapshot()
	assert.Equal(t, "error", snap.Status)
	assert.Contains(t, snap.ErrorMessage, "embedding failed")
}

func TestRunner_StartIdempotentWhileRunning(t *testing.T) {
	runner := NewRunner(RunnerConfig{DataDir: t.TempDir()})

	var starts atomic.Int32
	release := make(chan struct{})
	runner.Run = func(_ context.Context, _ *Progress) error {
		starts.Add(1)
		<-release
		return nil
	}

	ctx := context.Background()
	runner.Start(ctx)
	runner.Start(ctx)
	runner.Start(ctx)
	close(release)
	require.NoError(t, runner.Wait())

	assert.Equal(t, int32(1), starts.Load())
}

func TestHasIncompleteMarker(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasIncompleteMarker(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "indexing.lock"), []byte("x"), 0o644))
	assert.True(t, HasIncompleteMarker(dir))
}
