package async

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProgress(t *testing.T) {
	p := NewProgress()
	require.NotNil(t, p)

	snap := p.Snapshot()
	assert.Equal(t, string(StatusIndexing), snap.Status)
	assert.Equal(t, string(StageScanning), snap.Stage)
	assert.Zero(t, snap.FilesTotal)
	assert.True(t, p.IsIndexing())
}

func TestProgress_StageTransitions(t *testing.T) {
	tests := []struct {
		stage IndexingStage
		total int
	}{
		{StageScanning, 100},
		{StageExtracting, 80},
		{StageEmbedding, 500},
		{StageRebuilding, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			p := NewProgress()
			p.SetStage(tt.stage, tt.total)

			snap := p.Snapshot()
			assert.Equal(t, string(tt.stage), snap.Stage)
			assert.Equal(t, tt.total, snap.FilesTotal)
		})
	}
}

func TestProgress_FileAndSymbolCounts(t *testing.T) {
	p := NewProgress()
	p.SetStage(StageExtracting, 100)
	p.UpdateFiles(50)
	p.SetSymbolsTotal(400)
	p.UpdateSymbols(120)

	snap := p.Snapshot()
	assert.Equal(t, 50, snap.FilesProcessed)
	assert.Equal(t, 400, snap.SymbolsTotal)
	assert.Equal(t, 120, snap.SymbolsEmbedded)
	assert.InDelta(t, 50.0, snap.ProgressPct, 0.001)
}

func TestProgress_ProgressPct(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		processed int
		want      float64
	}{
		{"zero total", 0, 0, 0.0},
		{"half", 100, 50, 50.0},
		{"complete", 100, 100, 100.0},
		{"thirds", 1000, 333, 33.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress()
			p.SetStage(StageExtracting, tt.total)
			p.UpdateFiles(tt.processed)
			assert.InDelta(t, tt.want, p.Snapshot().ProgressPct, 0.1)
		})
	}
}

func TestProgress_SetError(t *testing.T) {
	p := NewProgress()
	p.SetError("embedding failed: connection refused")

	snap := p.Snapshot()
	assert.Equal(t, string(StatusError), snap.Status)
	assert.Equal(t, "embedding failed: connection refused", snap.ErrorMessage)
	assert.False(t, p.IsIndexing())
}

func TestProgress_SetReady(t *testing.T) {
	p := NewProgress()
	p.SetStage(StageRebuilding, 10)
	p.UpdateFiles(10)
	p.SetReady()

	snap := p.Snapshot()
	assert.Equal(t, string(StatusReady), snap.Status)
	assert.False(t, p.IsIndexing())
}

func TestProgress_SnapshotIsCopy(t *testing.T) {
	p := NewProgress()
	p.SetStage(StageExtracting, 100)
	p.UpdateFiles(50)

	first := p.Snapshot()
	p.UpdateFiles(75)
	second := p.Snapshot()

	assert.Equal(t, 50, first.FilesProcessed)
	assert.Equal(t, 75, second.FilesProcessed)
}

func TestProgress_ConcurrentAccess(t *testing.T) {
	p := NewProgress()
	p.SetStage(StageEmbedding, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			p.UpdateFiles(n)
			p.UpdateSymbols(n * 2)
		}(i)
		go func() {
			defer wg.Done()
			_ = p.Snapshot()
			_ = p.IsIndexing()
		}()
	}
	wg.Wait()

	snap := p.Snapshot()
	assert.GreaterOrEqual(t, snap.FilesProcessed, 0)
	assert.LessOrEqual(t, snap.FilesProcessed, 99)
}

func TestStageValues(t *testing.T) {
	assert.Equal(t, "scanning", string(StageScanning))
	assert.Equal(t, "extracting", string(StageExtracting))
	assert.Equal(t, "embedding", string(StageEmbedding))
	assert.Equal(t, "rebuilding", string(StageRebuilding))
}
