// Package extract turns file contents into symbols and relationships.
// Each language maps to one Extractor through a Registry; files whose
// language has no registered extractor contribute a bare file record
// with no symbols.
package extract

import (
	"context"
	"sync"

	"github.com/symdex-dev/symdex/internal/store"
)

// SourceFile is one file handed to an extractor. Content is the full
// file body; Path is workspace-relative with forward slashes.
type SourceFile struct {
	Path        string
	Language    string
	ContentType store.ContentType
	Content     []byte
}

// Extractor produces the symbols and structural relationships of one
// file. Implementations must be safe for concurrent use; the indexer
// calls Extract from parallel workers.
type Extractor interface {
	Extract(ctx context.Context, file *SourceFile) ([]store.Symbol, []store.Relationship, error)
}

// Registry maps language identifiers to extractors.
type Registry struct {
	mu         sync.RWMutex
	byLanguage map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byLanguage: make(map[string]Extractor)}
}

// DefaultRegistry returns a registry with the built-in extractors: the
// tree-sitter Go extractor plus the whole-file placeholder for plain
// text and configuration languages.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("go", NewGoExtractor())

	placeholder := NewPlaceholderExtractor()
	for lang := range placeholderLanguages {
		r.Register(lang, placeholder)
	}
	return r
}

// Register binds a language to an extractor, replacing any previous
// binding.
func (r *Registry) Register(language string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLanguage[language] = e
}

// Lookup returns the extractor for a language, if any.
func (r *Registry) Lookup(language string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byLanguage[language]
	return e, ok
}

// Languages returns every registered language identifier.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		langs = append(langs, lang)
	}
	return langs
}
