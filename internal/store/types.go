// Package store provides persistent storage for symdex: the SQLite-backed
// symbol store (files, symbols, relationships, synchronized full-text
// index) and the vector store (HNSW graph with a linear-scan fallback).
//
// Each store instance is bound to exactly one workspace. Operations that
// mutate per-workspace data take the workspace id and refuse to run when
// it does not match the owning workspace; cross-workspace conflation is
// the failure mode this package is built to prevent.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ContentType classifies indexed content.
type ContentType string

const (
	// ContentTypeCode is source code.
	ContentTypeCode ContentType = "code"
	// ContentTypeMarkdown is markdown documentation.
	ContentTypeMarkdown ContentType = "markdown"
	// ContentTypeText is plain text and configuration content.
	ContentTypeText ContentType = "text"
)

// Symbol kinds produced by extractors. The set is open; these are the
// kinds the built-in extractors emit.
const (
	KindFile      = "file"
	KindFunction  = "function"
	KindMethod    = "method"
	KindStruct    = "struct"
	KindInterface = "interface"
	KindField     = "field"
	KindConstant  = "constant"
	KindVariable  = "variable"
	KindType      = "type"
)

// Relationship kinds.
const (
	// RelReferences links a semantic query hit back to its match.
	RelReferences = "references"
	// RelEmbeds links a struct to a type it embeds.
	RelEmbeds = "embeds"
)

// FileRecord is the per-file index record. The content hash is the sole
// authority for change detection.
type FileRecord struct {
	Path        string
	ContentHash string
	Language    string
	ContentType ContentType
	Size        int64
}

// Symbol is one extracted symbol. Symbols are immutable for a given file
// version; re-indexing a file replaces its whole symbol set.
type Symbol struct {
	ID          string
	Name        string
	Kind        string
	FilePath    string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
	Signature   string
	ParentID    string // empty when the symbol has no parent
	Visibility  string
	DocComment  string
	ContentType ContentType
}

// Relationship links two symbols. Confidence is 1.0 for structurally
// certain relationships and a cosine similarity for semantic ones.
type Relationship struct {
	ID           string
	FromSymbolID string
	ToSymbolID   string
	Kind         string
	Confidence   float64
	FilePath     string
	LineNumber   int
}

// VectorEntry is a symbol's embedding. A projection of Symbol: it may lag
// behind the symbol store and is never authoritative for existence.
type VectorEntry struct {
	SymbolID  string
	Embedding []float32
}

// VectorMatch is one similarity-search hit.
type VectorMatch struct {
	SymbolID string
	Score    float64
}

// Search strategies recorded by the vector store so results are
// explainable.
const (
	StrategyHNSW   = "hnsw"
	StrategyLinear = "linear"
)

// SymbolStore is the persistent symbol storage contract.
//
// UpsertFile, FileHashes, FileSymbolCounts, DeleteFile, and DeleteFiles
// verify the workspace id against the store's owner and refuse on
// mismatch. Read-side lookups operate on the already-open store.
type SymbolStore interface {
	// WorkspaceID returns the id of the workspace this store belongs to.
	WorkspaceID() string

	// UpsertFile replaces the file's record, symbols, and relationships
	// with the given set in one transaction.
	UpsertFile(ctx context.Context, workspaceID string, file FileRecord, symbols []Symbol, rels []Relationship) error

	// FileHashes returns all known path -> content hash pairs.
	FileHashes(ctx context.Context, workspaceID string) (map[string]string, error)

	// FileSymbolCounts returns path -> symbol count for every known file.
	FileSymbolCounts(ctx context.Context, workspaceID string) (map[string]int, error)

	// DeleteFile removes one file: relationships referencing its symbols,
	// then its symbols, then the file record, in that order.
	DeleteFile(ctx context.Context, workspaceID string, path string) error

	// DeleteFiles removes a batch of files inside one transaction,
	// skipping per-file failures. Returns how many files were removed.
	DeleteFiles(ctx context.Context, workspaceID string, paths []string) (int, error)

	// FindSymbolsByName returns exact matches first, then prefix matches.
	FindSymbolsByName(ctx context.Context, name string, limit int) ([]Symbol, error)

	// SearchSymbols runs a full-text query over name/signature/doc.
	SearchSymbols(ctx context.Context, query string, limit int) ([]Symbol, error)

	// SymbolsForFile returns all symbols extracted from one file.
	SymbolsForFile(ctx context.Context, path string) ([]Symbol, error)

	// SymbolByID returns one symbol, or nil when absent.
	SymbolByID(ctx context.Context, id string) (*Symbol, error)

	// SymbolsByIDs batch-resolves ids, skipping unknown ones. Exists so
	// vector hits resolve in one query instead of N.
	SymbolsByIDs(ctx context.Context, ids []string) ([]Symbol, error)

	// SymbolCount returns the total number of stored symbols.
	SymbolCount(ctx context.Context) (int, error)

	// FileCount returns the total number of indexed files.
	FileCount(ctx context.Context) (int, error)

	// SaveEmbeddings stores symbol embeddings, replacing existing ones.
	SaveEmbeddings(ctx context.Context, entries []VectorEntry, modelName string) error

	// AllEmbeddings loads every stored embedding.
	AllEmbeddings(ctx context.Context) ([]VectorEntry, error)

	// EmbeddingModel returns the model name the stored embeddings were
	// produced with, or empty when none exist.
	EmbeddingModel(ctx context.Context) (string, error)

	// Close flushes and closes the store.
	Close() error
}

// TextIndex is a pluggable full-text backend over symbols. The FTS5
// backend lives inside the SQLite store and is maintained by triggers,
// so its mutation hooks are no-ops; the bleve backend maintains a
// standalone index and needs explicit updates on the symbol write path.
type TextIndex interface {
	// IndexSymbols adds or updates symbols in the index.
	IndexSymbols(ctx context.Context, symbols []Symbol) error

	// DeleteSymbols removes symbols by id.
	DeleteSymbols(ctx context.Context, ids []string) error

	// Search returns matching symbol ids ranked by relevance.
	Search(ctx context.Context, query string, limit int) ([]string, error)

	// Close releases index resources.
	Close() error
}

// VectorStoreConfig tunes the HNSW graph.
type VectorStoreConfig struct {
	// Dimensions is the embedding dimension. All entries must match.
	Dimensions int

	// M is the maximum number of neighbors per graph node.
	M int

	// EfSearch is the candidate list size while searching.
	EfSearch int
}

// DefaultVectorStoreConfig returns the default HNSW configuration for the
// given embedding dimension.
func DefaultVectorStoreConfig(dims int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dims,
		M:          32,
		EfSearch:   64,
	}
}

// ErrDimensionMismatch indicates an embedding's dimension does not match
// the store configuration.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// GenerateSymbolID creates a deterministic symbol id from the symbol's
// identity within its file. Stable across re-indexes of unchanged code.
func GenerateSymbolID(filePath, name, kind string, startLine, startColumn int) string {
	input := fmt.Sprintf("%s:%s:%s:%d:%d", filePath, name, kind, startLine, startColumn)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// GenerateRelationshipID creates a deterministic relationship id.
func GenerateRelationshipID(fromID, toID, kind string) string {
	input := fmt.Sprintf("%s:%s:%s", fromID, toID, kind)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
