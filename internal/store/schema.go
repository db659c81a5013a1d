package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// schemaVersion is bumped when the layout below changes incompatibly.
// Older stores are cleared and rebuilt rather than migrated in place.
const schemaVersion = 1

// Meta keys stored in store_meta.
const (
	metaWorkspaceID    = "workspace_id"
	metaEmbeddingModel = "embedding_model"
)

// createSchema is the full store layout.
//
// symbols_fts is an external-content FTS5 table over symbols. The three
// triggers keep it synchronized on every insert, delete, and update, so
// the full-text index is never rebuilt in bulk and never drifts from the
// symbols table. search_text holds pre-split identifier tokens computed
// at write time; FTS5 cannot split camelCase itself.
const createSchema = `
CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	path         TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	language     TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT 'text',
	size         INTEGER NOT NULL DEFAULT 0,
	indexed_at   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS symbols (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	file_path    TEXT NOT NULL,
	start_line   INTEGER NOT NULL DEFAULT 0,
	start_col    INTEGER NOT NULL DEFAULT 0,
	end_line     INTEGER NOT NULL DEFAULT 0,
	end_col      INTEGER NOT NULL DEFAULT 0,
	signature    TEXT NOT NULL DEFAULT '',
	parent_id    TEXT NOT NULL DEFAULT '',
	visibility   TEXT NOT NULL DEFAULT '',
	doc_comment  TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT 'code',
	search_text  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path);

CREATE TABLE IF NOT EXISTS relationships (
	id             TEXT PRIMARY KEY,
	from_symbol_id TEXT NOT NULL,
	to_symbol_id   TEXT NOT NULL,
	kind           TEXT NOT NULL,
	confidence     REAL NOT NULL DEFAULT 1.0,
	file_path      TEXT NOT NULL DEFAULT '',
	line_number    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_rel_from ON relationships(from_symbol_id);
CREATE INDEX IF NOT EXISTS idx_rel_to ON relationships(to_symbol_id);
CREATE INDEX IF NOT EXISTS idx_rel_file ON relationships(file_path);

CREATE TABLE IF NOT EXISTS embeddings (
	symbol_id  TEXT PRIMARY KEY,
	dimensions INTEGER NOT NULL,
	vector     BLOB NOT NULL,
	model_name TEXT NOT NULL DEFAULT ''
);

CREATE VIRTUAL TABLE IF NOT EXISTS symbols_fts USING fts5(
	name,
	search_text,
	content='symbols',
	content_rowid='rowid',
	tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS symbols_fts_ai AFTER INSERT ON symbols BEGIN
	INSERT INTO symbols_fts(rowid, name, search_text)
	VALUES (new.rowid, new.name, new.search_text);
END;

CREATE TRIGGER IF NOT EXISTS symbols_fts_ad AFTER DELETE ON symbols BEGIN
	INSERT INTO symbols_fts(symbols_fts, rowid, name, search_text)
	VALUES ('delete', old.rowid, old.name, old.search_text);
END;

CREATE TRIGGER IF NOT EXISTS symbols_fts_au AFTER UPDATE ON symbols BEGIN
	INSERT INTO symbols_fts(symbols_fts, rowid, name, search_text)
	VALUES ('delete', old.rowid, old.name, old.search_text);
	INSERT INTO symbols_fts(rowid, name, search_text)
	VALUES (new.rowid, new.name, new.search_text);
END;

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

// vectorToBlob encodes an embedding as little-endian float32 bytes.
func vectorToBlob(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// blobToVector decodes a stored embedding, validating the declared
// dimension against the blob length.
func blobToVector(blob []byte, dims int) ([]float32, error) {
	if len(blob) != 4*dims {
		return nil, fmt.Errorf("embedding blob is %d bytes, want %d for %d dimensions", len(blob), 4*dims, dims)
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
