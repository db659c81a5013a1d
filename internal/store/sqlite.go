package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	symerrors "github.com/symdex-dev/symdex/internal/errors"
)

// SQLiteSymbolStore persists one workspace's index in a single SQLite
// database. WAL mode plus a single connection gives safe concurrent
// reads under one writer without lock contention.
type SQLiteSymbolStore struct {
	mu          sync.RWMutex
	db          *sql.DB
	path        string
	workspaceID string
	logger      *slog.Logger
	closed      bool
}

var _ SymbolStore = (*SQLiteSymbolStore)(nil)

// symbolCols is the column list shared by every symbol query so scans
// stay in one place.
const symbolCols = `id, name, kind, file_path, start_line, start_col, end_line, end_col,
	signature, parent_id, visibility, doc_comment, content_type`

// OpenSymbolStore opens or creates the store at path and binds it to
// workspaceID. A store created for one workspace refuses to open for
// another. Pass ":memory:" as path for an in-memory store in tests.
func OpenSymbolStore(path, workspaceID string, logger *slog.Logger) (*SQLiteSymbolStore, error) {
	if workspaceID == "" {
		return nil, symerrors.New(symerrors.ErrCodeInvalidInput, "workspace id is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var dsn string
	if path == ":memory:" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}

		if validErr := validateStoreIntegrity(path); validErr != nil {
			logger.Warn("symbol_store_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("store corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			logger.Info("symbol_store_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, reindex required"))
		}

		// WAL for concurrent access; busy_timeout absorbs lock contention.
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer prevents SQLITE_BUSY storms under modernc.org/sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores some DSN params, so set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteSymbolStore{
		db:          db,
		path:        path,
		workspaceID: workspaceID,
		logger:      logger,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.bindWorkspace(workspaceID); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// validateStoreIntegrity checks an existing database before opening it
// for writes. A failure means the file should be cleared and rebuilt.
func validateStoreIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='symbols_fts'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("full-text table 'symbols_fts' missing")
	}

	return nil
}

func (s *SQLiteSymbolStore) initSchema() error {
	if _, err := s.db.Exec(createSchema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)
	return err
}

// bindWorkspace records the owning workspace on first open and verifies
// it on every later open.
func (s *SQLiteSymbolStore) bindWorkspace(workspaceID string) error {
	var stored string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, metaWorkspaceID).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`INSERT INTO store_meta (key, value) VALUES (?, ?)`, metaWorkspaceID, workspaceID)
		return err
	case err != nil:
		return fmt.Errorf("failed to read store owner: %w", err)
	case stored != workspaceID:
		return symerrors.WorkspaceMismatch(stored, workspaceID)
	}
	return nil
}

// WorkspaceID returns the workspace this store belongs to.
func (s *SQLiteSymbolStore) WorkspaceID() string {
	return s.workspaceID
}

// Path returns the database file path, or ":memory:".
func (s *SQLiteSymbolStore) Path() string {
	return s.path
}

// requireOwner refuses operations addressed to a different workspace.
// The refusal is logged because a mismatch here means a caller was about
// to mutate the wrong workspace's index.
func (s *SQLiteSymbolStore) requireOwner(workspaceID string) error {
	if workspaceID != s.workspaceID {
		s.logger.Warn("workspace_mismatch_refused",
			slog.String("store_workspace", s.workspaceID),
			slog.String("requested_workspace", workspaceID),
			slog.String("path", s.path))
		return symerrors.WorkspaceMismatch(s.workspaceID, workspaceID)
	}
	return nil
}

// UpsertFile wholesale-replaces one file's record, symbols, and
// relationships in a single transaction. The delete order is
// relationships, then embeddings, then symbols, so nothing ever dangles.
func (s *SQLiteSymbolStore) UpsertFile(ctx context.Context, workspaceID string, file FileRecord, symbols []Symbol, rels []Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if err := s.requireOwner(workspaceID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := clearFileSymbols(ctx, tx, file.Path); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO files (path, content_hash, language, content_type, size, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		file.Path, file.ContentHash, file.Language, string(file.ContentType), file.Size, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert file %s: %w", file.Path, err)
	}

	symStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO symbols (`+symbolCols+`, search_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare symbol statement: %w", err)
	}
	defer symStmt.Close()

	for i := range symbols {
		sym := &symbols[i]
		_, err := symStmt.ExecContext(ctx,
			sym.ID, sym.Name, sym.Kind, sym.FilePath,
			sym.StartLine, sym.StartColumn, sym.EndLine, sym.EndColumn,
			sym.Signature, sym.ParentID, sym.Visibility, sym.DocComment,
			string(sym.ContentType), searchText(sym))
		if err != nil {
			return fmt.Errorf("failed to insert symbol %s: %w", sym.Name, err)
		}
	}

	if len(rels) > 0 {
		relStmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO relationships (id, from_symbol_id, to_symbol_id, kind, confidence, file_path, line_number)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare relationship statement: %w", err)
		}
		defer relStmt.Close()

		for _, rel := range rels {
			_, err := relStmt.ExecContext(ctx,
				rel.ID, rel.FromSymbolID, rel.ToSymbolID, rel.Kind,
				rel.Confidence, rel.FilePath, rel.LineNumber)
			if err != nil {
				return fmt.Errorf("failed to insert relationship %s: %w", rel.ID, err)
			}
		}
	}

	return tx.Commit()
}

// clearFileSymbols removes everything derived from one file's symbols:
// relationships touching them from either side, their embeddings, and
// the symbols themselves. The FTS index follows via triggers.
func clearFileSymbols(ctx context.Context, tx *sql.Tx, path string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM relationships
		  WHERE from_symbol_id IN (SELECT id FROM symbols WHERE file_path = ?)
		     OR to_symbol_id   IN (SELECT id FROM symbols WHERE file_path = ?)`,
		path, path)
	if err != nil {
		return fmt.Errorf("failed to delete relationships for %s: %w", path, err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM embeddings
		  WHERE symbol_id IN (SELECT id FROM symbols WHERE file_path = ?)`, path)
	if err != nil {
		return fmt.Errorf("failed to delete embeddings for %s: %w", path, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete symbols for %s: %w", path, err)
	}
	return nil
}

// FileHashes returns every known path with its content hash.
func (s *SQLiteSymbolStore) FileHashes(ctx context.Context, workspaceID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if err := s.requireOwner(workspaceID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path, content_hash FROM files`)
	if err != nil {
		return nil, fmt.Errorf("failed to query file hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan file hash: %w", err)
		}
		hashes[path] = hash
	}
	return hashes, rows.Err()
}

// FileSymbolCounts returns path to symbol count for every indexed file.
// Files with zero symbols are included; the incremental pass needs them
// to spot entries that predate whole-file placeholder symbols.
func (s *SQLiteSymbolStore) FileSymbolCounts(ctx context.Context, workspaceID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if err := s.requireOwner(workspaceID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT f.path, COUNT(sym.id)
		   FROM files f
		   LEFT JOIN symbols sym ON sym.file_path = f.path
		  GROUP BY f.path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var path string
		var n int
		if err := rows.Scan(&path, &n); err != nil {
			return nil, fmt.Errorf("failed to scan symbol count: %w", err)
		}
		counts[path] = n
	}
	return counts, rows.Err()
}

// DeleteFile removes one file and everything derived from it.
func (s *SQLiteSymbolStore) DeleteFile(ctx context.Context, workspaceID string, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if err := s.requireOwner(workspaceID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := deleteFileTx(ctx, tx, path); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteFileTx reports whether a file record was actually removed so
// batch deletes can count real work.
func deleteFileTx(ctx context.Context, tx *sql.Tx, path string) (bool, error) {
	if err := clearFileSymbols(ctx, tx, path); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteFiles removes a batch of files in one transaction. A failure on
// one path is logged and skipped so a single bad entry cannot block
// orphan cleanup. Returns the number of files removed.
func (s *SQLiteSymbolStore) DeleteFiles(ctx context.Context, workspaceID string, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	if err := s.requireOwner(workspaceID); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	removed := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		deleted, err := deleteFileTx(ctx, tx, path)
		if err != nil {
			s.logger.Warn("orphan_delete_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		if deleted {
			removed++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch delete: %w", err)
	}
	return removed, nil
}

// FindSymbolsByName returns exact name matches first, then prefix
// matches, up to limit.
func (s *SQLiteSymbolStore) FindSymbolsByName(ctx context.Context, name string, limit int) ([]Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if limit <= 0 {
		limit = 50
	}

	exact, err := s.querySymbols(ctx,
		`SELECT `+symbolCols+` FROM symbols WHERE name = ? ORDER BY file_path, start_line LIMIT ?`,
		name, limit)
	if err != nil {
		return nil, err
	}
	if len(exact) >= limit {
		return exact[:limit], nil
	}

	prefix, err := s.querySymbols(ctx,
		`SELECT `+symbolCols+` FROM symbols
		  WHERE name LIKE ? || '%' AND name != ?
		  ORDER BY name, file_path, start_line LIMIT ?`,
		name, name, limit-len(exact))
	if err != nil {
		return nil, err
	}
	return append(exact, prefix...), nil
}

// SearchSymbols runs a relevance-ranked full-text query over symbol
// names, signatures, and doc comments.
func (s *SQLiteSymbolStore) SearchSymbols(ctx context.Context, query string, limit int) ([]Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if limit <= 0 {
		limit = 50
	}

	tokens := TokenizeIdentifiers(query)
	if len(tokens) == 0 {
		return []Symbol{}, nil
	}
	match := strings.Join(tokens, " ")

	// Weight direct name hits above signature and doc hits.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixedSymbolCols("sym")+`
		   FROM symbols_fts
		   JOIN symbols sym ON sym.rowid = symbols_fts.rowid
		  WHERE symbols_fts MATCH ?
		  ORDER BY bm25(symbols_fts, 4.0, 1.0)
		  LIMIT ?`, match, limit)
	if err != nil {
		// FTS5 rejects some query strings outright; treat as no results.
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []Symbol{}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	return scanSymbols(rows)
}

// SymbolsForFile returns every symbol extracted from one file in source
// order.
func (s *SQLiteSymbolStore) SymbolsForFile(ctx context.Context, path string) ([]Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	return s.querySymbols(ctx,
		`SELECT `+symbolCols+` FROM symbols WHERE file_path = ? ORDER BY start_line, start_col`,
		path)
}

// SymbolByID returns one symbol, or nil when it does not exist.
func (s *SQLiteSymbolStore) SymbolByID(ctx context.Context, id string) (*Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	syms, err := s.querySymbols(ctx, `SELECT `+symbolCols+` FROM symbols WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(syms) == 0 {
		return nil, nil
	}
	return &syms[0], nil
}

// symbolsByIDsChunk keeps IN clauses under SQLite's bind variable limit.
const symbolsByIDsChunk = 500

// SymbolsByIDs resolves a batch of ids in as few queries as possible,
// silently skipping unknown ids. Result order follows the input order.
func (s *SQLiteSymbolStore) SymbolsByIDs(ctx context.Context, ids []string) ([]Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(ids) == 0 {
		return []Symbol{}, nil
	}

	byID := make(map[string]Symbol, len(ids))
	for start := 0; start < len(ids); start += symbolsByIDsChunk {
		end := start + symbolsByIDsChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		syms, err := s.querySymbols(ctx,
			`SELECT `+symbolCols+` FROM symbols WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, err
		}
		for _, sym := range syms {
			byID[sym.ID] = sym
		}
	}

	result := make([]Symbol, 0, len(byID))
	for _, id := range ids {
		if sym, ok := byID[id]; ok {
			result = append(result, sym)
		}
	}
	return result, nil
}

// SymbolCount returns the total number of stored symbols.
func (s *SQLiteSymbolStore) SymbolCount(ctx context.Context) (int, error) {
	return s.countRows(ctx, `SELECT COUNT(*) FROM symbols`)
}

// FileCount returns the total number of indexed files.
func (s *SQLiteSymbolStore) FileCount(ctx context.Context) (int, error) {
	return s.countRows(ctx, `SELECT COUNT(*) FROM files`)
}

func (s *SQLiteSymbolStore) countRows(ctx context.Context, query string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return n, nil
}

// SaveEmbeddings stores symbol embeddings, replacing any existing rows,
// and records the model that produced them.
func (s *SQLiteSymbolStore) SaveEmbeddings(ctx context.Context, entries []VectorEntry, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO embeddings (symbol_id, dimensions, vector, model_name)
		 VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare embedding statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		_, err := stmt.ExecContext(ctx,
			entry.SymbolID, len(entry.Embedding), vectorToBlob(entry.Embedding), modelName)
		if err != nil {
			return fmt.Errorf("failed to save embedding for %s: %w", entry.SymbolID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO store_meta (key, value) VALUES (?, ?)`,
		metaEmbeddingModel, modelName)
	if err != nil {
		return fmt.Errorf("failed to record embedding model: %w", err)
	}

	return tx.Commit()
}

// AllEmbeddings loads every stored embedding. Rows that fail to decode
// are logged and skipped so one corrupt blob cannot block a rebuild.
func (s *SQLiteSymbolStore) AllEmbeddings(ctx context.Context) ([]VectorEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT symbol_id, dimensions, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var entries []VectorEntry
	for rows.Next() {
		var id string
		var dims int
		var blob []byte
		if err := rows.Scan(&id, &dims, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		vec, err := blobToVector(blob, dims)
		if err != nil {
			s.logger.Warn("embedding_decode_failed",
				slog.String("symbol_id", id),
				slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, VectorEntry{SymbolID: id, Embedding: vec})
	}
	return entries, rows.Err()
}

// EmbeddingModel returns the model name recorded with the stored
// embeddings, or empty when none have been saved.
func (s *SQLiteSymbolStore) EmbeddingModel(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var model string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM store_meta WHERE key = ?`, metaEmbeddingModel).Scan(&model)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read embedding model: %w", err)
	}
	return model, nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteSymbolStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.path != ":memory:" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

func (s *SQLiteSymbolStore) querySymbols(ctx context.Context, query string, args ...any) ([]Symbol, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("symbol query failed: %w", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

func scanSymbols(rows *sql.Rows) ([]Symbol, error) {
	var symbols []Symbol
	for rows.Next() {
		var sym Symbol
		var contentType string
		err := rows.Scan(
			&sym.ID, &sym.Name, &sym.Kind, &sym.FilePath,
			&sym.StartLine, &sym.StartColumn, &sym.EndLine, &sym.EndColumn,
			&sym.Signature, &sym.ParentID, &sym.Visibility, &sym.DocComment,
			&contentType)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		sym.ContentType = ContentType(contentType)
		symbols = append(symbols, sym)
	}
	if symbols == nil {
		symbols = []Symbol{}
	}
	return symbols, rows.Err()
}

// prefixedSymbolCols qualifies the shared column list with a table
// alias for joined queries.
func prefixedSymbolCols(alias string) string {
	cols := strings.Split(symbolCols, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
