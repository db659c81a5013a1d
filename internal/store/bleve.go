package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// FTS5TextIndex adapts the SQLite store's built-in full-text search to
// the TextIndex interface. The FTS5 table is maintained by triggers on
// the symbol write path, so the mutation hooks here do nothing.
type FTS5TextIndex struct {
	store *SQLiteSymbolStore
}

var _ TextIndex = (*FTS5TextIndex)(nil)

// NewFTS5TextIndex wraps a symbol store's trigger-synced FTS5 table.
func NewFTS5TextIndex(store *SQLiteSymbolStore) *FTS5TextIndex {
	return &FTS5TextIndex{store: store}
}

// IndexSymbols is a no-op; triggers keep the FTS table in sync.
func (f *FTS5TextIndex) IndexSymbols(ctx context.Context, symbols []Symbol) error {
	return nil
}

// DeleteSymbols is a no-op; triggers keep the FTS table in sync.
func (f *FTS5TextIndex) DeleteSymbols(ctx context.Context, ids []string) error {
	return nil
}

// Search delegates to the store's FTS5 query.
func (f *FTS5TextIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	symbols, err := f.store.SearchSymbols(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(symbols))
	for i, sym := range symbols {
		ids[i] = sym.ID
	}
	return ids, nil
}

// Close is a no-op; the underlying store owns the database handle.
func (f *FTS5TextIndex) Close() error {
	return nil
}

// BleveTextIndex is the standalone full-text backend. Unlike FTS5 it is
// not synchronized by the database, so the engine must call the mutation
// hooks on every symbol write and delete.
type BleveTextIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ TextIndex = (*BleveTextIndex)(nil)

// bleveSymbolDoc is the indexed document. Content holds pre-split
// identifier tokens, the same text the FTS5 backend stores, so both
// backends rank the same way for the same corpus.
type bleveSymbolDoc struct {
	Content string `json:"content"`
}

// NewBleveTextIndex opens or creates a bleve index at path. An empty
// path creates an in-memory index. A corrupt on-disk index is cleared
// and recreated, since the engine can always rebuild it by reindexing.
func NewBleveTextIndex(path string, logger *slog.Logger) (*BleveTextIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", mkErr)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			logger.Warn("text_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("text index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			logger.Info("text_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, reindex required"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, bleve.NewIndexMapping())
		} else if err != nil && isBleveCorruption(err) {
			logger.Warn("text_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("text index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			idx, err = bleve.New(path, bleve.NewIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open text index: %w", err)
	}

	return &BleveTextIndex{index: idx, path: path}, nil
}

// validateBleveIntegrity checks the index metadata before opening.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isBleveCorruption(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// IndexSymbols adds or updates symbols in one batch.
func (b *BleveTextIndex) IndexSymbols(ctx context.Context, symbols []Symbol) error {
	if len(symbols) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("text index is closed")
	}

	batch := b.index.NewBatch()
	for i := range symbols {
		sym := &symbols[i]
		doc := bleveSymbolDoc{Content: sym.Name + " " + searchText(sym)}
		if err := batch.Index(sym.ID, doc); err != nil {
			return fmt.Errorf("failed to index symbol %s: %w", sym.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute index batch: %w", err)
	}
	return nil
}

// DeleteSymbols removes symbols in one batch. Unknown ids are ignored.
func (b *BleveTextIndex) DeleteSymbols(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("text index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute delete batch: %w", err)
	}
	return nil
}

// Search returns matching symbol ids ranked by relevance.
func (b *BleveTextIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("text index is closed")
	}

	tokens := TokenizeIdentifiers(query)
	if len(tokens) == 0 {
		return []string{}, nil
	}

	matchQuery := bleve.NewMatchQuery(strings.Join(tokens, " "))
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close releases the index.
func (b *BleveTextIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
