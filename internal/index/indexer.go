// Package index implements incremental indexing: content-hash change
// detection against the symbol store, extraction and wholesale
// replacement of changed files, and cleanup of entries whose source
// files no longer exist.
//
// Every pass is scoped to exactly one workspace and one store. The
// primary workspace uses the live store the indexer was built with; a
// reference workspace gets its own store opened at its own path. The
// two are never conflated: a store whose recorded owner differs from
// the workspace being processed causes the pass to be skipped with a
// warning instead of touching the wrong index.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/symdex-dev/symdex/internal/config"
	symerrors "github.com/symdex-dev/symdex/internal/errors"
	"github.com/symdex-dev/symdex/internal/extract"
	"github.com/symdex-dev/symdex/internal/scanner"
	"github.com/symdex-dev/symdex/internal/store"
	"github.com/symdex-dev/symdex/internal/workspace"
)

// Counts reports what one indexing pass did. Counts are always
// reported, even when individual files failed, so partial failure is
// never silent.
type Counts struct {
	New       int `json:"new"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
	Failed    int `json:"failed"`
}

// Total returns the number of candidates classified.
func (c Counts) Total() int {
	return c.New + c.Modified + c.Unchanged
}

// ProgressFunc receives coarse progress while a pass runs. done and
// total refer to the current stage.
type ProgressFunc func(stage string, done, total int)

// Stages reported to ProgressFunc.
const (
	StageScanning   = "scanning"
	StageExtracting = "extracting"
	StageCleanup    = "cleanup"
)

// Indexer drives incremental index passes for any registered
// workspace.
type Indexer struct {
	cfg        *config.Config
	layout     workspace.Layout
	primary    store.SymbolStore
	extractors *extract.Registry
	scan       *scanner.Scanner
	logger     *slog.Logger
}

// New creates an indexer. primary is the live store bound to the
// primary workspace; reference workspaces get their own stores opened
// per pass.
func New(cfg *config.Config, layout workspace.Layout, primary store.SymbolStore, extractors *extract.Registry, logger *slog.Logger) (*Indexer, error) {
	if cfg == nil {
		return nil, symerrors.ValidationError("config is required", nil)
	}
	if extractors == nil {
		extractors = extract.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}
	return &Indexer{
		cfg:        cfg,
		layout:     layout,
		primary:    primary,
		extractors: extractors,
		scan:       sc,
		logger:     logger,
	}, nil
}

// InvalidateGitignoreCache drops cached .gitignore matchers. Watch
// mode calls this when a .gitignore file changes so the next pass
// re-classifies with fresh rules.
func (ix *Indexer) InvalidateGitignoreCache() {
	ix.scan.InvalidateGitignoreCache()
}

// storeFor routes a workspace to its backing store. The returned
// closer is non-nil when the indexer opened the store for this pass
// and the caller must close it.
//
// Returning the primary store for a reference workspace (or the
// reverse) is the bug this routing exists to prevent: the recorded
// owner of every store is checked against the workspace id before
// anything else happens.
func (ix *Indexer) storeFor(ws workspace.Descriptor) (st store.SymbolStore, closer func(), err error) {
	if ws.Kind == workspace.KindPrimary {
		if ix.primary == nil {
			return nil, nil, symerrors.NotInitialized("primary store")
		}
		if ix.primary.WorkspaceID() != ws.ID {
			ix.logger.Warn("workspace_store_mismatch_skipped",
				slog.String("store_workspace", ix.primary.WorkspaceID()),
				slog.String("requested_workspace", ws.ID))
			return nil, nil, symerrors.WorkspaceMismatch(ix.primary.WorkspaceID(), ws.ID)
		}
		return ix.primary, nil, nil
	}

	path := ix.layout.ReferenceStorePath(ws.ID)
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		// Never indexed: the caller treats every candidate as new.
		return nil, nil, nil
	}

	opened, err := store.OpenSymbolStore(path, ws.ID, ix.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open reference store for %s: %w", ws.ID, err)
	}
	return opened, func() { _ = opened.Close() }, nil
}

// FilterChangedFiles classifies candidates against the workspace's
// store and returns the subset that needs (re-)processing. Orphan
// cleanup for files known to the store but absent from candidates runs
// in the same pass. Counts are returned even on partial failure.
func (ix *Indexer) FilterChangedFiles(ctx context.Context, ws workspace.Descriptor, candidates []scanner.FileInfo) ([]scanner.FileInfo, Counts, error) {
	var counts Counts

	st, closer, err := ix.storeFor(ws)
	if err != nil {
		return nil, counts, err
	}
	if closer != nil {
		defer closer()
	}
	if st == nil {
		// First index of this workspace.
		counts.New = len(candidates)
		return candidates, counts, nil
	}

	onDisk := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		onDisk[cand.Path] = struct{}{}
	}

	symbolCount, err := st.SymbolCount(ctx)
	if err != nil {
		return nil, counts, fmt.Errorf("count symbols: %w", err)
	}
	if symbolCount == 0 {
		// A store with files but no symbols means extraction never
		// completed; incremental diffing would skip everything forever.
		counts.New = len(candidates)
		ix.cleanOrphans(ctx, ws, st, onDisk, &counts)
		return candidates, counts, nil
	}

	hashes, err := st.FileHashes(ctx, ws.ID)
	if err != nil {
		return nil, counts, fmt.Errorf("load file hashes: %w", err)
	}
	fileSymbols, err := st.FileSymbolCounts(ctx, ws.ID)
	if err != nil {
		return nil, counts, fmt.Errorf("load symbol counts: %w", err)
	}

	var toProcess []scanner.FileInfo
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, counts, err
		}

		prior, known := hashes[cand.Path]
		if !known {
			counts.New++
			toProcess = append(toProcess, cand)
			continue
		}

		hash, err := scanner.HashFile(cand.AbsPath)
		if err != nil {
			// A file we cannot hash is conservatively reprocessed;
			// skipping it silently could leave a stale index entry.
			ix.logger.Warn("hash_failed_reprocessing",
				slog.String("path", cand.Path),
				slog.String("error", err.Error()))
			counts.Modified++
			toProcess = append(toProcess, cand)
			continue
		}

		if hash != prior {
			counts.Modified++
			toProcess = append(toProcess, cand)
			continue
		}

		// Unchanged hash normally means skip. The one exception:
		// extractor-less content indexed before whole-file placeholder
		// symbols existed has a file record but zero symbols, and
		// full-text search cannot see it until it is reprocessed.
		if fileSymbols[cand.Path] == 0 && extract.PlaceholderLanguage(cand.Language) {
			counts.Modified++
			toProcess = append(toProcess, cand)
			continue
		}

		counts.Unchanged++
	}

	ix.cleanOrphans(ctx, ws, st, onDisk, &counts)

	ix.logger.Info("incremental_filter_complete",
		slog.String("workspace", ws.ID),
		slog.Int("new", counts.New),
		slog.Int("modified", counts.Modified),
		slog.Int("unchanged", counts.Unchanged),
		slog.Int("removed", counts.Removed))
	return toProcess, counts, nil
}

// cleanOrphans removes store entries whose files are gone from disk.
// onDisk is the set of candidate paths from the current scan.
// Failures are logged, never fatal to the pass.
func (ix *Indexer) cleanOrphans(ctx context.Context, ws workspace.Descriptor, st store.SymbolStore, onDisk map[string]struct{}, counts *Counts) {
	known, err := st.FileHashes(ctx, ws.ID)
	if err != nil {
		ix.logger.Warn("orphan_scan_failed",
			slog.String("workspace", ws.ID),
			slog.String("error", err.Error()))
		return
	}

	var orphans []string
	for path := range known {
		if _, exists := onDisk[path]; !exists {
			orphans = append(orphans, path)
		}
	}
	if len(orphans) == 0 {
		return
	}
	sort.Strings(orphans)

	removed, err := st.DeleteFiles(ctx, ws.ID, orphans)
	if err != nil {
		// The store refused the whole batch (e.g. workspace mismatch);
		// individual failures inside the batch were already skipped.
		ix.logger.Warn("orphan_cleanup_failed",
			slog.String("workspace", ws.ID),
			slog.Int("orphans", len(orphans)),
			slog.String("error", err.Error()))
		return
	}
	counts.Removed = removed
	ix.logger.Info("orphans_removed",
		slog.String("workspace", ws.ID),
		slog.Int("count", removed))
}

// Run performs a complete incremental pass for one workspace: scan,
// classify, extract changed files, and clean orphans. The returned
// counts include per-file extraction failures, which are logged and
// skipped rather than failing the pass.
func (ix *Indexer) Run(ctx context.Context, ws workspace.Descriptor, progress ProgressFunc) (Counts, error) {
	start := time.Now()
	if progress == nil {
		progress = func(string, int, int) {}
	}

	lock := NewLock(ix.layout, ws.ID)
	acquired, err := lock.TryAcquire()
	if err != nil {
		return Counts{}, err
	}
	if !acquired {
		return Counts{}, symerrors.New(symerrors.ErrCodeIndexFailed,
			fmt.Sprintf("another process is indexing %s", ws.ID), nil).
			WithSuggestion("wait for the other indexer to finish and retry")
	}
	defer func() { _ = lock.Release() }()

	progress(StageScanning, 0, 0)
	candidates, err := ix.scanWorkspace(ctx, ws)
	if err != nil {
		return Counts{}, err
	}
	progress(StageScanning, len(candidates), len(candidates))

	toProcess, counts, err := ix.FilterChangedFiles(ctx, ws, candidates)
	if err != nil {
		return counts, err
	}

	if len(toProcess) > 0 {
		st, closer, err := ix.storeFor(ws)
		if err != nil {
			return counts, err
		}
		if closer != nil {
			defer closer()
		}
		if st == nil {
			// First index of a reference workspace: create its store now.
			opened, openErr := store.OpenSymbolStore(ix.layout.ReferenceStorePath(ws.ID), ws.ID, ix.logger)
			if openErr != nil {
				return counts, fmt.Errorf("create reference store for %s: %w", ws.ID, openErr)
			}
			defer func() { _ = opened.Close() }()
			st = opened
		}

		failed, err := ix.processFiles(ctx, ws, st, toProcess, progress)
		counts.Failed = failed
		if err != nil {
			return counts, err
		}
	}

	ix.logger.Info("index_pass_complete",
		slog.String("workspace", ws.ID),
		slog.Int("new", counts.New),
		slog.Int("modified", counts.Modified),
		slog.Int("unchanged", counts.Unchanged),
		slog.Int("removed", counts.Removed),
		slog.Int("failed", counts.Failed),
		slog.Duration("duration", time.Since(start)))
	return counts, nil
}

// scanWorkspace collects the candidate files for one workspace.
// Per-file scan errors are logged and skipped; only a failure to walk
// at all aborts.
func (ix *Indexer) scanWorkspace(ctx context.Context, ws workspace.Descriptor) ([]scanner.FileInfo, error) {
	results, err := ix.scan.Scan(ctx, &scanner.ScanOptions{
		RootDir:          ws.Root,
		IncludePatterns:  ix.cfg.Paths.Include,
		ExcludePatterns:  ix.cfg.Paths.Exclude,
		RespectGitignore: ix.cfg.Index.RespectGitignore,
		Workers:          ix.cfg.Workers(),
		MaxFileSize:      ix.cfg.MaxFileSizeBytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", ws.Root, err)
	}

	var candidates []scanner.FileInfo
	for res := range results {
		if res.Error != nil {
			ix.logger.Warn("scan_error", slog.String("error", res.Error.Error()))
			continue
		}
		candidates = append(candidates, *res.File)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Path < candidates[j].Path })
	return candidates, ctx.Err()
}

// processFiles extracts and upserts the given files with a worker
// pool. Returns the number of files that failed.
func (ix *Indexer) processFiles(ctx context.Context, ws workspace.Descriptor, st store.SymbolStore, files []scanner.FileInfo, progress ProgressFunc) (int, error) {
	type outcome struct{ failed bool }
	outcomes := make([]outcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Workers())

	done := make(chan int, len(files))
	go func() {
		n := 0
		for range done {
			n++
			progress(StageExtracting, n, len(files))
		}
	}()

	for i := range files {
		i := i
		g.Go(func() error {
			defer func() { done <- i }()
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := ix.processFile(gctx, ws, st, files[i]); err != nil {
				outcomes[i].failed = true
				ix.logger.Warn("file_index_failed",
					slog.String("path", files[i].Path),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}

	err := g.Wait()
	close(done)

	failed := 0
	for _, o := range outcomes {
		if o.failed {
			failed++
		}
	}
	return failed, err
}

// processFile reads, extracts, and stores one file. A language with no
// registered extractor still gets its file record so change detection
// and orphan cleanup keep tracking it.
func (ix *Indexer) processFile(ctx context.Context, ws workspace.Descriptor, st store.SymbolStore, file scanner.FileInfo) error {
	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return symerrors.New(symerrors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot read %s", file.Path), err)
	}

	contentType := store.ContentType(file.ContentType)
	record := store.FileRecord{
		Path:        file.Path,
		ContentHash: scanner.HashBytes(content),
		Language:    file.Language,
		ContentType: contentType,
		Size:        int64(len(content)),
	}

	var symbols []store.Symbol
	var rels []store.Relationship
	if extractor, ok := ix.extractors.Lookup(file.Language); ok {
		symbols, rels, err = extractor.Extract(ctx, &extract.SourceFile{
			Path:        file.Path,
			Language:    file.Language,
			ContentType: contentType,
			Content:     content,
		})
		if err != nil {
			return symerrors.New(symerrors.ErrCodeExtractionFailed,
				fmt.Sprintf("extraction failed for %s", file.Path), err)
		}
	}

	return st.UpsertFile(ctx, ws.ID, record, symbols, rels)
}
