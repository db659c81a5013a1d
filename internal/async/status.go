// Package async runs indexing passes in the background with
// observable progress, so the MCP server can answer status queries
// while a long index is underway.
package async

import (
	"sync"
	"time"
)

// IndexingStatus is the overall state of a background pass.
type IndexingStatus string

const (
	// StatusIndexing means a pass is in progress.
	StatusIndexing IndexingStatus = "indexing"
	// StatusReady means the last pass completed and search is current.
	StatusReady IndexingStatus = "ready"
	// StatusError means the last pass failed.
	StatusError IndexingStatus = "error"
)

// IndexingStage is the phase within a pass.
type IndexingStage string

const (
	// StageScanning is file discovery.
	StageScanning IndexingStage = "scanning"
	// StageExtracting is symbol extraction and storage.
	StageExtracting IndexingStage = "extracting"
	// StageEmbedding is embedding generation for changed symbols.
	StageEmbedding IndexingStage = "embedding"
	// StageRebuilding is the vector graph rebuild.
	StageRebuilding IndexingStage = "rebuilding"
)

// ProgressSnapshot is an immutable copy of pass progress.
type ProgressSnapshot struct {
	Status          string  `json:"status"`
	Stage           string  `json:"stage"`
	FilesTotal      int     `json:"files_total"`
	FilesProcessed  int     `json:"files_processed"`
	SymbolsTotal    int     `json:"symbols_total"`
	SymbolsEmbedded int     `json:"symbols_embedded"`
	ProgressPct     float64 `json:"progress_pct"`
	ElapsedSeconds  int     `json:"elapsed_seconds"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

// Progress tracks one indexing pass. Safe for concurrent use.
type Progress struct {
	mu sync.RWMutex

	status          IndexingStatus
	stage           IndexingStage
	filesTotal      int
	filesProcessed  int
	symbolsTotal    int
	symbolsEmbedded int
	startTime       time.Time
	errorMessage    string
}

// NewProgress returns a tracker in the scanning stage.
func NewProgress() *Progress {
	return &Progress{
		status:    StatusIndexing,
		stage:     StageScanning,
		startTime: time.Now(),
	}
}

// SetStage moves to a new stage and resets the file total.
func (p *Progress) SetStage(stage IndexingStage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
	p.filesTotal = total
}

// UpdateFiles records the number of files processed so far.
func (p *Progress) UpdateFiles(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesProcessed = processed
}

// SetSymbolsTotal sets the number of symbols queued for embedding.
func (p *Progress) SetSymbolsTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbolsTotal = total
}

// UpdateSymbols records the number of symbols embedded so far.
func (p *Progress) UpdateSymbols(embedded int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbolsEmbedded = embedded
}

// SetError marks the pass as failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the pass as complete.
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusReady
}

// IsIndexing reports whether a pass is still running.
func (p *Progress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status == StatusIndexing
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.filesTotal > 0 {
		pct = float64(p.filesProcessed) / float64(p.filesTotal) * 100.0
	}

	return ProgressSnapshot{
		Status:          string(p.status),
		Stage:           string(p.stage),
		FilesTotal:      p.filesTotal,
		FilesProcessed:  p.filesProcessed,
		SymbolsTotal:    p.symbolsTotal,
		SymbolsEmbedded: p.symbolsEmbedded,
		ProgressPct:     pct,
		ElapsedSeconds:  int(time.Since(p.startTime).Seconds()),
		ErrorMessage:    p.errorMessage,
	}
}
